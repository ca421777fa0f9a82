package pipeline

import "github.com/stockpipe/stock-etl/internal/models"

// symbolResult is one worker's outcome for one symbol. Results are
// merged by the orchestrator after the workers settle, so the run's
// counters are never mutated concurrently.
type symbolResult struct {
	Symbol      string
	Counts      models.RunCounts
	Quality     []models.QualityCheckResult
	Blocked     bool
	FetchFailed bool
	StoreFailed bool
	Err         error
}

// runTally accumulates merged results for status aggregation
type runTally struct {
	counts        models.RunCounts
	symbolsDone   int
	blocked       int
	fetchFailures int
	storeFailures int
	warnings      int
}

func (t *runTally) merge(res symbolResult) {
	t.counts.Add(res.Counts)
	t.symbolsDone++
	if res.Blocked {
		t.blocked++
	}
	if res.FetchFailed {
		t.fetchFailures++
	}
	if res.StoreFailed {
		t.storeFailures++
	}
	if res.Blocked || res.FetchFailed || res.StoreFailed || res.Err != nil || res.Counts.Rejected > 0 {
		t.warnings++
	}
}
