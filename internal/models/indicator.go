package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Indicator kind constants
const (
	IndicatorSMA        = "SMA"
	IndicatorEMA        = "EMA"
	IndicatorRSI        = "RSI"
	IndicatorMACD       = "MACD"
	IndicatorMACDSignal = "MACD_SIGNAL"
)

// IndicatorPoint represents one computed indicator value. Period is the
// lookback window and is nil for the fixed-parameter MACD variants.
type IndicatorPoint struct {
	ID        int             `json:"id"`
	Symbol    string          `json:"symbol"`
	TradeDate time.Time       `json:"trade_date"`
	Kind      string          `json:"indicator_kind"`
	Period    *int            `json:"period,omitempty"`
	Value     decimal.Decimal `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}
