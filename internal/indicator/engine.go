// Package indicator computes technical indicator series from ordered
// daily bars. Every computation is a pure function of the input
// series: decimal arithmetic only, no wall-clock or store access, so
// recomputing over the same bars yields bit-identical output.
//
// Trading-date gaps are treated as absent days. Windows count
// available bars, never calendar-day spans.
package indicator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/stockpipe/stock-etl/internal/models"
)

// MACDParams are the fast/slow/signal EMA periods of one MACD variant
type MACDParams struct {
	Fast   int
	Slow   int
	Signal int
}

// Config enumerates which indicators and periods to compute
type Config struct {
	SMAPeriods []int
	EMAPeriods []int
	RSIPeriods []int
	MACD       []MACDParams
}

// DefaultConfig returns the standard daily indicator family
func DefaultConfig() Config {
	return Config{
		SMAPeriods: []int{10, 20, 50, 200},
		EMAPeriods: []int{12, 26},
		RSIPeriods: []int{14},
		MACD:       []MACDParams{{Fast: 12, Slow: 26, Signal: 9}},
	}
}

// Compute produces the full indicator family for one symbol's ordered
// bar series. Points are emitted only for dates where the computation
// window is satisfied; a series shorter than a period simply yields no
// points for that indicator.
func Compute(symbol string, bars []models.DailyBar, cfg Config) ([]models.IndicatorPoint, error) {
	closes := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	var points []models.IndicatorPoint
	emit := func(kind string, period *int, offset int, values []decimal.Decimal) {
		for i, v := range values {
			points = append(points, models.IndicatorPoint{
				Symbol:    symbol,
				TradeDate: bars[offset+i].TradeDate,
				Kind:      kind,
				Period:    period,
				Value:     v,
			})
		}
	}

	for _, n := range cfg.SMAPeriods {
		if err := checkPeriod(n); err != nil {
			return nil, err
		}
		p := n
		emit(models.IndicatorSMA, &p, n-1, sma(closes, n))
	}

	for _, n := range cfg.EMAPeriods {
		if err := checkPeriod(n); err != nil {
			return nil, err
		}
		p := n
		emit(models.IndicatorEMA, &p, n-1, ema(closes, n))
	}

	for _, n := range cfg.RSIPeriods {
		if err := checkPeriod(n); err != nil {
			return nil, err
		}
		p := n
		emit(models.IndicatorRSI, &p, n, rsi(closes, n))
	}

	for _, mp := range cfg.MACD {
		if err := checkMACD(mp); err != nil {
			return nil, err
		}
		line, signal := macd(closes, mp)
		emit(models.IndicatorMACD, nil, mp.Slow-1, line)
		emit(models.IndicatorMACDSignal, nil, mp.Slow+mp.Signal-2, signal)
	}

	return points, nil
}

func checkPeriod(n int) error {
	if n <= 0 {
		return fmt.Errorf("indicator period must be positive, got %d", n)
	}
	return nil
}

func checkMACD(p MACDParams) error {
	if p.Fast <= 0 || p.Slow <= 0 || p.Signal <= 0 {
		return fmt.Errorf("macd periods must be positive, got (%d,%d,%d)", p.Fast, p.Slow, p.Signal)
	}
	if p.Fast >= p.Slow {
		return fmt.Errorf("macd fast period %d must be shorter than slow period %d", p.Fast, p.Slow)
	}
	return nil
}
