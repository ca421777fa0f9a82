// Package normalize turns raw provider records into canonical daily
// bars: last-write-wins deduplication, decimal coercion, per-record
// validation and the derived return fields.
package normalize

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockpipe/stock-etl/internal/models"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// ValidationError is a per-record failure. It is never fatal: the
// offending record is dropped and counted as rejected.
type ValidationError struct {
	Symbol    string
	TradeDate string
	Reason    string
	Detail    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid bar %s@%s: %s (%s)", e.Symbol, e.TradeDate, e.Reason, e.Detail)
}

// Rejection records one dropped raw record and why
type Rejection struct {
	Symbol    string
	TradeDate string
	Reason    string
	Err       error
}

// Result is the output of normalizing one symbol's raw batch
type Result struct {
	Bars      []models.DailyBar
	Rejected  []Rejection
	ReadCount int
}

// Normalize cleans a batch of raw records for one symbol into
// deduplicated, validated, date-ascending daily bars. Raw records
// sharing a trade date are resolved last-write-wins, which matches
// re-fetch and backfill semantics.
func Normalize(symbol string, raws []models.RawBar) Result {
	res := Result{ReadCount: len(raws)}

	// Last record for a date wins.
	byDate := make(map[string]models.RawBar, len(raws))
	for _, raw := range raws {
		byDate[raw.TradeDate] = raw
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	bars := make([]models.DailyBar, 0, len(dates))
	for _, d := range dates {
		bar, err := coerce(symbol, byDate[d])
		if err != nil {
			verr, ok := err.(*ValidationError)
			if !ok {
				verr = &ValidationError{Symbol: symbol, TradeDate: d, Reason: models.RejectMissingClose, Detail: err.Error()}
			}
			res.Rejected = append(res.Rejected, Rejection{
				Symbol:    symbol,
				TradeDate: d,
				Reason:    verr.Reason,
				Err:       verr,
			})
			continue
		}
		bars = append(bars, bar)
	}

	computeReturns(bars)
	res.Bars = bars
	return res
}

// coerce parses one raw record and enforces the bar invariants
func coerce(symbol string, raw models.RawBar) (models.DailyBar, error) {
	var bar models.DailyBar

	tradeDate, err := time.Parse(dateLayout, raw.TradeDate)
	if err != nil {
		return bar, &ValidationError{
			Symbol: symbol, TradeDate: raw.TradeDate,
			Reason: models.RejectMissingClose,
			Detail: fmt.Sprintf("unparsable trade date: %v", err),
		}
	}

	closePrice, err := decimal.NewFromString(raw.Close)
	if err != nil {
		return bar, &ValidationError{
			Symbol: symbol, TradeDate: raw.TradeDate,
			Reason: models.RejectMissingClose,
			Detail: fmt.Sprintf("missing or unparsable close %q", raw.Close),
		}
	}

	bar = models.DailyBar{
		Symbol:        symbol,
		TradeDate:     tradeDate,
		Open:          parseOptional(raw.Open),
		High:          parseOptional(raw.High),
		Low:           parseOptional(raw.Low),
		Close:         closePrice,
		AdjustedClose: parseOptional(raw.AdjustedClose),
	}

	if raw.Volume != "" {
		var vol decimal.Decimal
		if vol, err = decimal.NewFromString(raw.Volume); err == nil {
			v := vol.IntPart()
			bar.Volume = &v
		}
	}

	if err := validate(symbol, raw.TradeDate, &bar); err != nil {
		return models.DailyBar{}, err
	}

	if bar.Open.Valid && !bar.Open.Decimal.IsZero() {
		change := bar.Close.Sub(bar.Open.Decimal)
		bar.PriceChange = decimal.NullDecimal{Decimal: change, Valid: true}
		bar.PriceChangePct = decimal.NullDecimal{
			Decimal: change.Div(bar.Open.Decimal).Mul(hundred),
			Valid:   true,
		}
	}

	return bar, nil
}

// validate enforces the bar invariants: all prices positive,
// volume non-negative, high/low consistent with every other price.
func validate(symbol, tradeDate string, bar *models.DailyBar) error {
	reject := func(reason, detail string) error {
		return &ValidationError{Symbol: symbol, TradeDate: tradeDate, Reason: reason, Detail: detail}
	}

	prices := []decimal.NullDecimal{
		{Decimal: bar.Close, Valid: true},
		bar.Open, bar.High, bar.Low, bar.AdjustedClose,
	}
	for _, p := range prices {
		if p.Valid && p.Decimal.Sign() <= 0 {
			return reject(models.RejectNonPositivePrice, fmt.Sprintf("price %s is not positive", p.Decimal))
		}
	}

	if bar.Volume != nil && *bar.Volume < 0 {
		return reject(models.RejectNegativeVolume, fmt.Sprintf("volume %d", *bar.Volume))
	}

	if bar.High.Valid && bar.Low.Valid && bar.High.Decimal.LessThan(bar.Low.Decimal) {
		return reject(models.RejectHighLowInverted,
			fmt.Sprintf("high %s < low %s", bar.High.Decimal, bar.Low.Decimal))
	}

	if bar.High.Valid {
		for _, p := range []decimal.NullDecimal{bar.Open, {Decimal: bar.Close, Valid: true}} {
			if p.Valid && bar.High.Decimal.LessThan(p.Decimal) {
				return reject(models.RejectOHLCInconsistent,
					fmt.Sprintf("high %s below %s", bar.High.Decimal, p.Decimal))
			}
		}
	}
	if bar.Low.Valid {
		for _, p := range []decimal.NullDecimal{bar.Open, {Decimal: bar.Close, Valid: true}} {
			if p.Valid && bar.Low.Decimal.GreaterThan(p.Decimal) {
				return reject(models.RejectOHLCInconsistent,
					fmt.Sprintf("low %s above %s", bar.Low.Decimal, p.Decimal))
			}
		}
	}

	return nil
}

// computeReturns fills daily_return over the ordered, deduplicated
// series. The first bar has no previous close and stays null, as does
// any bar following a zero previous close.
func computeReturns(bars []models.DailyBar) {
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev.IsZero() {
			continue
		}
		bars[i].DailyReturn = decimal.NullDecimal{
			Decimal: bars[i].Close.Sub(prev).Div(prev),
			Valid:   true,
		}
	}
}

func parseOptional(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
