package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpipe/stock-etl/internal/models"
)

func rawBar(date, open, high, low, close, volume string) models.RawBar {
	return models.RawBar{
		Symbol:    "AAPL",
		TradeDate: date,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}

func TestNormalize(t *testing.T) {
	t.Run("orders bars by trade date ascending", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-17", "12", "13", "11", "12.5", "100"),
			rawBar("2024-01-15", "10", "11", "9", "10.5", "100"),
			rawBar("2024-01-16", "11", "12", "10", "11.5", "100"),
		})

		require.Len(t, res.Bars, 3)
		assert.Equal(t, 3, res.ReadCount)
		assert.Equal(t, "2024-01-15", res.Bars[0].TradeDate.Format("2006-01-02"))
		assert.Equal(t, "2024-01-16", res.Bars[1].TradeDate.Format("2006-01-02"))
		assert.Equal(t, "2024-01-17", res.Bars[2].TradeDate.Format("2006-01-02"))
	})

	t.Run("duplicate trade dates resolve last-write-wins", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "11", "9", "10.5", "100"),
			rawBar("2024-01-15", "10", "12", "9", "11.0", "200"),
		})

		require.Len(t, res.Bars, 1)
		assert.Empty(t, res.Rejected)
		assert.True(t, decimal.RequireFromString("11.0").Equal(res.Bars[0].Close))
		require.NotNil(t, res.Bars[0].Volume)
		assert.Equal(t, int64(200), *res.Bars[0].Volume)
	})

	t.Run("missing close drops the record with MISSING_CLOSE", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "11", "9", "", "100"),
			rawBar("2024-01-16", "10", "11", "9", "not-a-number", "100"),
			rawBar("2024-01-17", "10", "11", "9", "10.5", "100"),
		})

		require.Len(t, res.Bars, 1)
		require.Len(t, res.Rejected, 2)
		for _, rej := range res.Rejected {
			assert.Equal(t, models.RejectMissingClose, rej.Reason)
		}
	})

	t.Run("missing non-close fields are tolerated as null", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "", "", "", "10.5", ""),
		})

		require.Len(t, res.Bars, 1)
		bar := res.Bars[0]
		assert.False(t, bar.Open.Valid)
		assert.False(t, bar.High.Valid)
		assert.False(t, bar.Low.Valid)
		assert.Nil(t, bar.Volume)
		assert.False(t, bar.PriceChange.Valid)
		assert.False(t, bar.PriceChangePct.Valid)
	})

	t.Run("negative close rejects only that record", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "11", "9", "10.5", "100"),
			rawBar("2024-01-16", "10", "11", "9", "-5", "100"),
			rawBar("2024-01-17", "10", "11", "9", "10.8", "100"),
		})

		require.Len(t, res.Bars, 2)
		require.Len(t, res.Rejected, 1)
		assert.Equal(t, models.RejectNonPositivePrice, res.Rejected[0].Reason)
		assert.Equal(t, "2024-01-16", res.Rejected[0].TradeDate)
	})

	t.Run("high below low is rejected", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			{Symbol: "AAPL", TradeDate: "2024-01-15", High: "9", Low: "11", Close: "10"},
		})

		assert.Empty(t, res.Bars)
		require.Len(t, res.Rejected, 1)
		assert.Equal(t, models.RejectHighLowInverted, res.Rejected[0].Reason)
	})

	t.Run("high below close is rejected as inconsistent", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "10.2", "9.5", "10.5", "100"),
		})

		assert.Empty(t, res.Bars)
		require.Len(t, res.Rejected, 1)
		assert.Equal(t, models.RejectOHLCInconsistent, res.Rejected[0].Reason)
	})

	t.Run("negative volume is rejected", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "11", "9", "10.5", "-42"),
		})

		assert.Empty(t, res.Bars)
		require.Len(t, res.Rejected, 1)
		assert.Equal(t, models.RejectNegativeVolume, res.Rejected[0].Reason)
	})

	t.Run("rejection errors carry a ValidationError", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "11", "9", "-5", "100"),
		})

		require.Len(t, res.Rejected, 1)
		var verr *ValidationError
		require.ErrorAs(t, res.Rejected[0].Err, &verr)
		assert.Equal(t, "AAPL", verr.Symbol)
	})

	t.Run("daily return derives from the previous trading day", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "11", "9", "10", "100"),
			rawBar("2024-01-16", "10", "12", "9", "11", "100"),
			// Holiday gap: window is by available bars, not calendar days.
			rawBar("2024-01-22", "10", "12", "9", "9.9", "100"),
		})

		require.Len(t, res.Bars, 3)
		assert.False(t, res.Bars[0].DailyReturn.Valid, "first day has no previous close")

		require.True(t, res.Bars[1].DailyReturn.Valid)
		assert.True(t, decimal.RequireFromString("0.1").Equal(res.Bars[1].DailyReturn.Decimal))

		require.True(t, res.Bars[2].DailyReturn.Valid)
		assert.True(t, decimal.RequireFromString("-0.1").Equal(res.Bars[2].DailyReturn.Decimal))
	})

	t.Run("price change fields derive from open", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "11", "9", "10.5", "100"),
		})

		require.Len(t, res.Bars, 1)
		bar := res.Bars[0]
		require.True(t, bar.PriceChange.Valid)
		assert.True(t, decimal.RequireFromString("0.5").Equal(bar.PriceChange.Decimal))
		require.True(t, bar.PriceChangePct.Valid)
		assert.True(t, decimal.RequireFromString("5").Equal(bar.PriceChangePct.Decimal))
	})

	t.Run("daily return after a deduplicated reload uses the winning close", func(t *testing.T) {
		res := Normalize("AAPL", []models.RawBar{
			rawBar("2024-01-15", "10", "11", "9", "10", "100"),
			rawBar("2024-01-16", "10", "13", "9", "11", "100"),
			rawBar("2024-01-15", "10", "13", "9", "12.5", "100"), // re-fetch wins
		})

		require.Len(t, res.Bars, 2)
		require.True(t, res.Bars[1].DailyReturn.Valid)
		assert.True(t, decimal.RequireFromString("-0.12").Equal(res.Bars[1].DailyReturn.Decimal))
	})
}
