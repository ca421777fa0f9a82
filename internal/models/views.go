package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LatestPrice is a row of the latest_prices view
type LatestPrice struct {
	Symbol         string              `json:"symbol"`
	TradeDate      time.Time           `json:"trade_date"`
	Close          decimal.Decimal     `json:"close"`
	Volume         *int64              `json:"volume"`
	DailyReturn    decimal.NullDecimal `json:"daily_return"`
	PriceChangePct decimal.NullDecimal `json:"price_change_pct"`
}

// PerformanceSummary is a row of the stock_performance_summary view
type PerformanceSummary struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	BarCount  int             `json:"bar_count"`
	FirstDate time.Time       `json:"first_date"`
	LastDate  time.Time       `json:"last_date"`
	MinClose  decimal.Decimal `json:"min_close"`
	MaxClose  decimal.Decimal `json:"max_close"`
	LastClose decimal.Decimal `json:"last_close"`
	AvgVolume int64           `json:"avg_volume"`
	TotalGain decimal.Decimal `json:"total_gain_pct"`
}

// ExecutionSummary is a row of the execution_summary view
type ExecutionSummary struct {
	RunID         string     `json:"run_id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Status        string     `json:"status"`
	SymbolsTotal  int        `json:"symbols_total"`
	Counts        RunCounts  `json:"counts"`
	ChecksFailed  int        `json:"checks_failed"`
	ChecksBlocked int        `json:"checks_blocked"`
}
