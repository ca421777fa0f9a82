// Package pipeline sequences the transform-and-load stages per run:
// fetch, normalize, compute indicators, quality gate, load. Symbol
// batches run in parallel worker tasks; per-symbol failures are
// isolated, and only store-wide or universal fetch outages fail the
// whole run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stock-etl/internal/indicator"
	"github.com/stockpipe/stock-etl/internal/models"
	"github.com/stockpipe/stock-etl/internal/normalize"
	"github.com/stockpipe/stock-etl/internal/quality"
)

// DefaultConcurrency bounds the worker pool so the external data
// provider's rate limits are respected.
const DefaultConcurrency = 4

// Fetcher is the external data provider collaborator
type Fetcher interface {
	FetchDailyBars(ctx context.Context, symbol string, since, until time.Time) ([]models.RawBar, error)
}

// Loader is the idempotent load stage
type Loader interface {
	Load(ctx context.Context, runID, symbol string, bars []models.DailyBar,
		points []models.IndicatorPoint, verdict quality.Verdict) (models.LoadOutcome, error)
}

// RunStore records execution and quality bookkeeping
type RunStore interface {
	CreateExecutionRun(run *models.ExecutionRun) error
	UpdateExecutionRunCounts(runID string, counts models.RunCounts) error
	FinishExecutionRun(run *models.ExecutionRun) error
	InsertQualityResults(runID string, results []models.QualityCheckResult) error
}

// EventPublisher announces run lifecycle events downstream
type EventPublisher interface {
	PublishRunStarted(ctx context.Context, run *models.ExecutionRun) error
	PublishRunCompleted(ctx context.Context, run *models.ExecutionRun) error
}

// Options configure one orchestrator
type Options struct {
	Concurrency      int
	QualityThreshold float64
	Indicators       indicator.Config
}

// Orchestrator drives the pipeline across the symbol universe
type Orchestrator struct {
	fetcher Fetcher
	loader  Loader
	store   RunStore
	events  EventPublisher
	opts    Options
	log     *logrus.Entry
}

// New creates an orchestrator. events may be nil.
func New(fetcher Fetcher, ld Loader, store RunStore, events EventPublisher, opts Options, log *logrus.Logger) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if len(opts.Indicators.SMAPeriods)+len(opts.Indicators.EMAPeriods)+
		len(opts.Indicators.RSIPeriods)+len(opts.Indicators.MACD) == 0 {
		opts.Indicators = indicator.DefaultConfig()
	}
	return &Orchestrator{
		fetcher: fetcher,
		loader:  ld,
		store:   store,
		events:  events,
		opts:    opts,
		log:     log.WithField("component", "orchestrator"),
	}
}

// Run executes one pipeline run over the universe and returns the
// finished ExecutionRun. The returned error is non-nil only when the
// bookkeeping itself failed; a FAILED run status is reported through
// the ExecutionRun, not the error.
func (o *Orchestrator) Run(ctx context.Context, symbols []string, since, until time.Time) (*models.ExecutionRun, error) {
	run := &models.ExecutionRun{
		RunID:        uuid.NewString(),
		StartedAt:    time.Now(),
		Status:       models.RunStatusRunning,
		SymbolsTotal: len(symbols),
	}
	if err := o.store.CreateExecutionRun(run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	o.publishStarted(ctx, run)

	log := o.log.WithField("run_id", run.RunID)
	log.WithFields(logrus.Fields{
		"symbols":     len(symbols),
		"since":       since.Format("2006-01-02"),
		"until":       until.Format("2006-01-02"),
		"concurrency": o.opts.Concurrency,
	}).Info("pipeline run started")

	jobs := make(chan string)
	results := make(chan symbolResult)

	var wg sync.WaitGroup
	for i := 0; i < o.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				results <- o.processSymbol(ctx, run.RunID, symbol, since, until)
			}
		}()
	}

	// Stop dispatching on cancellation; in-flight batches finish.
	go func() {
	dispatch:
		for _, symbol := range symbols {
			select {
			case jobs <- symbol:
			case <-ctx.Done():
				break dispatch
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var tally runTally
	for res := range results {
		tally.merge(res)
		if len(res.Quality) > 0 {
			if err := o.store.InsertQualityResults(run.RunID, res.Quality); err != nil {
				log.WithError(err).Error("failed to record quality results")
			}
		}
		if err := o.store.UpdateExecutionRunCounts(run.RunID, tally.counts); err != nil {
			log.WithError(err).Error("failed to update run counts")
		}
	}

	run.Counts = tally.counts
	run.Status, run.ErrorDetail = o.finalStatus(ctx, symbols, tally)

	if err := o.store.FinishExecutionRun(run); err != nil {
		return run, fmt.Errorf("failed to record run completion: %w", err)
	}
	o.publishCompleted(ctx, run)

	log.WithFields(logrus.Fields{
		"status":   run.Status,
		"read":     run.Counts.Read,
		"inserted": run.Counts.Inserted,
		"updated":  run.Counts.Updated,
		"rejected": run.Counts.Rejected,
	}).Info("pipeline run finished")
	return run, nil
}

// processSymbol runs the four stages sequentially for one symbol.
// Every failure mode is local: the result carries what happened and
// the orchestrator aggregates.
func (o *Orchestrator) processSymbol(ctx context.Context, runID, symbol string, since, until time.Time) symbolResult {
	res := symbolResult{Symbol: symbol}
	log := o.log.WithFields(logrus.Fields{"run_id": runID, "symbol": symbol})

	raws, err := o.fetcher.FetchDailyBars(ctx, symbol, since, until)
	if err != nil {
		res.FetchFailed = true
		res.Err = err
		log.WithError(err).Warn("fetch failed, skipping symbol")
		return res
	}

	norm := normalize.Normalize(symbol, raws)
	res.Counts.Read = norm.ReadCount
	res.Counts.Processed = len(norm.Bars)
	res.Counts.Rejected = len(norm.Rejected)
	for _, rej := range norm.Rejected {
		log.WithFields(logrus.Fields{"trade_date": rej.TradeDate, "reason": rej.Reason}).
			Warn("record rejected during normalization")
	}

	points, err := indicator.Compute(symbol, norm.Bars, o.opts.Indicators)
	if err != nil {
		res.Err = err
		log.WithError(err).Error("indicator computation failed")
		return res
	}

	verdict := quality.Run(symbol, norm.Bars, points, o.opts.QualityThreshold)
	for i := range verdict.Results {
		verdict.Results[i].RunID = runID
	}
	res.Quality = verdict.Results
	res.Blocked = verdict.Blocked

	outcome, err := o.loader.Load(ctx, runID, symbol, norm.Bars, points, verdict)
	if err != nil {
		res.StoreFailed = true
		res.Err = err
		log.WithError(err).Error("load failed for symbol batch")
		return res
	}

	res.Counts.Inserted = outcome.Inserted
	res.Counts.Updated = outcome.Updated
	res.Counts.Rejected += outcome.Rejected
	return res
}

// finalStatus aggregates the terminal run status per the propagation
// policy: record- and symbol-level trouble is WARNING; cancellation,
// a universal fetch outage, or store failures recurring across
// symbols or spanning the whole universe are FAILED.
func (o *Orchestrator) finalStatus(ctx context.Context, symbols []string, tally runTally) (string, string) {
	if err := ctx.Err(); err != nil {
		return models.RunStatusFailed, fmt.Sprintf("run cancelled: %v", err)
	}
	if len(symbols) > 0 && tally.fetchFailures == len(symbols) {
		return models.RunStatusFailed, "data provider unreachable for every symbol"
	}
	if tally.storeFailures > 1 || (tally.storeFailures > 0 && tally.storeFailures == len(symbols)) {
		return models.RunStatusFailed,
			fmt.Sprintf("store writes failed for %d symbol batches", tally.storeFailures)
	}
	if tally.warnings > 0 {
		return models.RunStatusWarning, ""
	}
	return models.RunStatusSuccess, ""
}

func (o *Orchestrator) publishStarted(ctx context.Context, run *models.ExecutionRun) {
	if o.events == nil {
		return
	}
	if err := o.events.PublishRunStarted(ctx, run); err != nil {
		o.log.WithError(err).Warn("failed to publish run started event")
	}
}

func (o *Orchestrator) publishCompleted(ctx context.Context, run *models.ExecutionRun) {
	if o.events == nil {
		return
	}
	// The run summary still goes out when the run was cancelled.
	ctx = context.WithoutCancel(ctx)
	if err := o.events.PublishRunCompleted(ctx, run); err != nil {
		o.log.WithError(err).Warn("failed to publish run completed event")
	}
}
