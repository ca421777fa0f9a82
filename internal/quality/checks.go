// Package quality runs the pre-load data quality checks over one
// symbol's normalized bars and computed indicators. NULL_CHECK,
// RANGE_CHECK and DUPLICATE_CHECK block the load when their failure
// ratio exceeds the threshold; CONTINUITY_CHECK is advisory only.
package quality

import (
	"fmt"
	"time"

	"github.com/stockpipe/stock-etl/internal/models"
)

// DefaultThreshold is the failure-ratio above which a blocking check
// blocks the symbol's load. Zero means zero tolerance.
const DefaultThreshold = 0.0

// maxTradingDayGap is the largest run of missing consecutive trading
// days CONTINUITY_CHECK tolerates before flagging.
const maxTradingDayGap = 10

// Verdict is the gate's decision for one symbol's batch
type Verdict struct {
	Symbol  string
	Blocked bool
	Results []models.QualityCheckResult
}

// Run executes the fixed check set and returns the verdict. A blocked
// verdict skips the symbol's load but never fails the run.
func Run(symbol string, bars []models.DailyBar, points []models.IndicatorPoint, threshold float64) Verdict {
	v := Verdict{Symbol: symbol}

	checks := []models.QualityCheckResult{
		nullCheck(bars),
		rangeCheck(bars),
		duplicateCheck(bars),
		continuityCheck(bars),
		indicatorDuplicateCheck(points),
	}

	for i := range checks {
		checks[i].Symbol = symbol
		if checks[i].CheckKind != models.CheckContinuity &&
			checks[i].FailureRatio > threshold {
			checks[i].Blocking = true
			v.Blocked = true
		}
	}
	v.Results = checks
	return v
}

// nullCheck verifies close and volume are present on every bar
func nullCheck(bars []models.DailyBar) models.QualityCheckResult {
	failed := 0
	for _, b := range bars {
		// Close is non-nullable in the model; a zero value only occurs
		// when the normalizer was bypassed.
		if b.Close.IsZero() || b.Volume == nil {
			failed++
		}
	}
	return result(models.CheckNull, models.TargetDailyPrices, len(bars), failed)
}

// rangeCheck verifies the price and volume bounds invariants
func rangeCheck(bars []models.DailyBar) models.QualityCheckResult {
	failed := 0
	for _, b := range bars {
		if !barInRange(b) {
			failed++
		}
	}
	return result(models.CheckRange, models.TargetDailyPrices, len(bars), failed)
}

func barInRange(b models.DailyBar) bool {
	if b.Close.Sign() <= 0 {
		return false
	}
	if b.Volume != nil && *b.Volume < 0 {
		return false
	}
	if b.High.Valid {
		if b.High.Decimal.LessThan(b.Close) ||
			(b.Open.Valid && b.High.Decimal.LessThan(b.Open.Decimal)) ||
			(b.Low.Valid && b.High.Decimal.LessThan(b.Low.Decimal)) {
			return false
		}
	}
	if b.Low.Valid {
		if b.Low.Decimal.GreaterThan(b.Close) ||
			(b.Open.Valid && b.Low.Decimal.GreaterThan(b.Open.Decimal)) {
			return false
		}
	}
	return true
}

// duplicateCheck verifies bar uniqueness on (symbol, trade_date)
func duplicateCheck(bars []models.DailyBar) models.QualityCheckResult {
	seen := make(map[string]bool, len(bars))
	failed := 0
	for _, b := range bars {
		key := b.TradeDate.Format("2006-01-02")
		if seen[key] {
			failed++
		}
		seen[key] = true
	}
	return result(models.CheckDuplicate, models.TargetDailyPrices, len(bars), failed)
}

// indicatorDuplicateCheck verifies point uniqueness on the full
// (symbol, date, kind, period) tuple
func indicatorDuplicateCheck(points []models.IndicatorPoint) models.QualityCheckResult {
	seen := make(map[string]bool, len(points))
	failed := 0
	for _, p := range points {
		period := -1
		if p.Period != nil {
			period = *p.Period
		}
		key := fmt.Sprintf("%s|%s|%d", p.TradeDate.Format("2006-01-02"), p.Kind, period)
		if seen[key] {
			failed++
		}
		seen[key] = true
	}
	return result(models.CheckDuplicate, models.TargetTechnicalIndicators, len(points), failed)
}

// continuityCheck flags bars preceded by a gap of more than
// maxTradingDayGap consecutive missing weekdays. Advisory only.
func continuityCheck(bars []models.DailyBar) models.QualityCheckResult {
	failed := 0
	for i := 1; i < len(bars); i++ {
		if weekdaysBetween(bars[i-1].TradeDate, bars[i].TradeDate) > maxTradingDayGap {
			failed++
		}
	}
	return result(models.CheckContinuity, models.TargetDailyPrices, len(bars), failed)
}

// weekdaysBetween counts the weekdays strictly between two dates
func weekdaysBetween(from, to time.Time) int {
	count := 0
	for d := from.AddDate(0, 0, 1); d.Before(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			count++
		}
	}
	return count
}

func result(kind, target string, checked, failed int) models.QualityCheckResult {
	r := models.QualityCheckResult{
		CheckKind:      kind,
		TargetTable:    target,
		RecordsChecked: checked,
		RecordsFailed:  failed,
	}
	if checked > 0 {
		r.FailureRatio = float64(failed) / float64(checked)
	}
	return r
}
