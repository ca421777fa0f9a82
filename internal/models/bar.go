package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rejection reason constants
const (
	RejectMissingClose     = "MISSING_CLOSE"
	RejectNonPositivePrice = "NON_POSITIVE_PRICE"
	RejectNegativeVolume   = "NEGATIVE_VOLUME"
	RejectHighLowInverted  = "HIGH_LOW_INVERTED"
	RejectOHLCInconsistent = "OHLC_INCONSISTENT"
)

// RawBar is a provider-shaped price record before coercion. Numeric
// fields arrive as strings and any of them may be empty or garbage;
// duplicates for the same trade date happen on re-fetches.
type RawBar struct {
	Symbol        string `json:"symbol"`
	TradeDate     string `json:"date"`
	Open          string `json:"open,omitempty"`
	High          string `json:"high,omitempty"`
	Low           string `json:"low,omitempty"`
	Close         string `json:"close,omitempty"`
	AdjustedClose string `json:"adjusted_close,omitempty"`
	Volume        string `json:"volume,omitempty"`
}

// DailyBar represents one normalized trading day for a symbol.
// Close is always present; the remaining OHLC components may be null.
type DailyBar struct {
	ID             int                 `json:"id"`
	Symbol         string              `json:"symbol"`
	TradeDate      time.Time           `json:"trade_date"`
	Open           decimal.NullDecimal `json:"open"`
	High           decimal.NullDecimal `json:"high"`
	Low            decimal.NullDecimal `json:"low"`
	Close          decimal.Decimal     `json:"close"`
	AdjustedClose  decimal.NullDecimal `json:"adjusted_close"`
	Volume         *int64              `json:"volume"`
	DailyReturn    decimal.NullDecimal `json:"daily_return"`
	PriceChange    decimal.NullDecimal `json:"price_change"`
	PriceChangePct decimal.NullDecimal `json:"price_change_pct"`
	CreatedAt      time.Time           `json:"created_at"`
}

// MarketOverview is a per-symbol rollup derived from the loaded bar
// history, refreshed on every run that touches the symbol.
type MarketOverview struct {
	Symbol        string              `json:"symbol"`
	LatestDate    time.Time           `json:"latest_date"`
	LatestClose   decimal.Decimal     `json:"latest_close"`
	PreviousClose decimal.NullDecimal `json:"previous_close"`
	ChangePercent decimal.NullDecimal `json:"change_percent"`
	High52w       decimal.Decimal     `json:"high_52w"`
	Low52w        decimal.Decimal     `json:"low_52w"`
	AvgVolume     int64               `json:"avg_volume"`
	BarCount      int                 `json:"bar_count"`
	RunID         string              `json:"run_id"`
	UpdatedAt     time.Time           `json:"updated_at"`
}
