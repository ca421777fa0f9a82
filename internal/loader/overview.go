package loader

import (
	"github.com/shopspring/decimal"

	"github.com/stockpipe/stock-etl/internal/models"
)

// A trading year of daily bars, the window for the 52-week rollups.
const tradingYearBars = 252

// deriveOverview builds the per-symbol rollup snapshot from the stored
// trailing bar window, ascending by trade date. Returns nil for an
// empty window.
func deriveOverview(runID, symbol string, window []*models.DailyBar) *models.MarketOverview {
	if len(window) == 0 {
		return nil
	}

	latest := window[len(window)-1]
	o := &models.MarketOverview{
		Symbol:      symbol,
		LatestDate:  latest.TradeDate,
		LatestClose: latest.Close,
		High52w:     latest.Close,
		Low52w:      latest.Close,
		BarCount:    len(window),
		RunID:       runID,
	}

	var volSum, volCount int64
	for _, b := range window {
		if b.Close.GreaterThan(o.High52w) {
			o.High52w = b.Close
		}
		if b.Close.LessThan(o.Low52w) {
			o.Low52w = b.Close
		}
		if b.Volume != nil {
			volSum += *b.Volume
			volCount++
		}
	}
	if volCount > 0 {
		o.AvgVolume = volSum / volCount
	}

	if len(window) > 1 {
		prev := window[len(window)-2].Close
		o.PreviousClose = decimal.NullDecimal{Decimal: prev, Valid: true}
		if !prev.IsZero() {
			o.ChangePercent = decimal.NullDecimal{
				Decimal: latest.Close.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)),
				Valid:   true,
			}
		}
	}
	return o
}
