// Package loader performs the idempotent load stage: one transaction
// per symbol-batch, upsert-on-conflict writes, and insert/update/
// reject accounting. It is the sole writer of daily_prices,
// technical_indicators and market_overview.
package loader

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stock-etl/internal/database"
	"github.com/stockpipe/stock-etl/internal/models"
	"github.com/stockpipe/stock-etl/internal/quality"
)

// StoreError is a write failure that survived the retry. It fails the
// symbol's batch; the run only fails when it recurs across symbols.
type StoreError struct {
	Symbol string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store write failed for %s: %v", e.Symbol, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Coordinator loads one symbol-batch at a time under all-or-nothing
// transaction semantics
type Coordinator struct {
	db               *database.DB
	recomputeReturns bool
	log              *logrus.Entry
}

// New creates a load coordinator. recomputeReturns enables the
// cascading daily_return recompute on corrective reloads.
func New(db *database.DB, recomputeReturns bool, log *logrus.Logger) *Coordinator {
	return &Coordinator{
		db:               db,
		recomputeReturns: recomputeReturns,
		log:              log.WithField("component", "loader"),
	}
}

// Load writes a symbol's bars and indicator points and refreshes the
// overview snapshot from the stored history, all in a single
// transaction. A BLOCKED verdict skips the batch entirely and reports
// every candidate row as rejected. A store failure is retried once on
// a fresh transaction before surfacing as StoreError; either way no
// partial writes survive.
func (c *Coordinator) Load(ctx context.Context, runID, symbol string, bars []models.DailyBar,
	points []models.IndicatorPoint, verdict quality.Verdict) (models.LoadOutcome, error) {

	var outcome models.LoadOutcome

	if verdict.Blocked {
		outcome.Rejected = len(bars) + len(points)
		c.log.WithFields(logrus.Fields{
			"run_id":   runID,
			"symbol":   symbol,
			"rejected": outcome.Rejected,
		}).Warn("quality gate blocked load, skipping symbol batch")
		return outcome, nil
	}

	outcome, err := c.loadTx(ctx, runID, symbol, bars, points)
	if err != nil {
		c.log.WithError(err).WithField("symbol", symbol).Warn("load failed, retrying once")
		outcome, err = c.loadTx(ctx, runID, symbol, bars, points)
	}
	if err != nil {
		return models.LoadOutcome{}, &StoreError{Symbol: symbol, Err: err}
	}

	c.log.WithFields(logrus.Fields{
		"run_id":   runID,
		"symbol":   symbol,
		"inserted": outcome.Inserted,
		"updated":  outcome.Updated,
	}).Info("symbol batch loaded")
	return outcome, nil
}

func (c *Coordinator) loadTx(ctx context.Context, runID, symbol string, bars []models.DailyBar,
	points []models.IndicatorPoint) (models.LoadOutcome, error) {

	var outcome models.LoadOutcome

	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	tx, err := c.db.Begin()
	if err != nil {
		return outcome, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	barIns, barUpd, err := c.db.UpsertDailyBarsTx(tx, bars)
	if err != nil {
		return models.LoadOutcome{}, err
	}

	pointIns, pointUpd, err := c.db.UpsertIndicatorPointsTx(tx, points)
	if err != nil {
		return models.LoadOutcome{}, err
	}

	// The overview rollup reads the stored history through the
	// transaction so a narrow corrective reload still sees the full
	// trailing year, not just this run's window.
	if len(bars) > 0 {
		trailing, err := c.db.GetTrailingDailyBarsTx(tx, symbol, tradingYearBars)
		if err != nil {
			return models.LoadOutcome{}, err
		}
		if o := deriveOverview(runID, symbol, trailing); o != nil {
			if err := c.db.UpsertMarketOverviewTx(tx, o); err != nil {
				return models.LoadOutcome{}, err
			}
		}
	}

	// Corrective reloads can change closes that later-dated stored
	// bars derived their return from.
	if c.recomputeReturns && barUpd > 0 && len(bars) > 0 {
		if err := c.db.RecomputeDailyReturnsTx(tx, symbol, bars[0].TradeDate); err != nil {
			return models.LoadOutcome{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.LoadOutcome{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	outcome.Inserted = barIns + pointIns
	outcome.Updated = barUpd + pointUpd
	return outcome, nil
}
