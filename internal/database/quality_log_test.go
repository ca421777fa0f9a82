package database

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpipe/stock-etl/internal/models"
)

func TestQualityLogRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("insert and retrieve check results", func(t *testing.T) {
		testDB.TruncateAll(t)

		run := startRun(t, testDB, 1)
		results := []models.QualityCheckResult{
			{
				Symbol:         "AAPL",
				TargetTable:    models.TargetDailyPrices,
				CheckKind:      models.CheckNull,
				RecordsChecked: 100,
				RecordsFailed:  2,
				FailureRatio:   0.02,
				Blocking:       true,
			},
			{
				Symbol:         "AAPL",
				TargetTable:    models.TargetDailyPrices,
				CheckKind:      models.CheckContinuity,
				RecordsChecked: 100,
				RecordsFailed:  1,
				FailureRatio:   0.01,
			},
			{
				Symbol:         "AAPL",
				TargetTable:    models.TargetTechnicalIndicators,
				CheckKind:      models.CheckDuplicate,
				RecordsChecked: 40,
			},
		}
		require.NoError(t, testDB.InsertQualityResults(run.RunID, results))

		stored, err := testDB.GetQualityResults(run.RunID)
		require.NoError(t, err)
		require.Len(t, stored, 3)

		// Ordered by symbol, target table, check kind.
		assert.Equal(t, models.CheckContinuity, stored[0].CheckKind)
		assert.Equal(t, models.CheckNull, stored[1].CheckKind)
		assert.Equal(t, models.CheckDuplicate, stored[2].CheckKind)

		assert.Equal(t, run.RunID, stored[1].RunID)
		assert.True(t, stored[1].Blocking)
		assert.InDelta(t, 0.02, stored[1].FailureRatio, 1e-9)
		assert.False(t, stored[0].Blocking)
	})

	t.Run("rows require an existing run", func(t *testing.T) {
		testDB.TruncateAll(t)

		err := testDB.InsertQualityResults(uuid.NewString(), []models.QualityCheckResult{
			{Symbol: "AAPL", TargetTable: models.TargetDailyPrices, CheckKind: models.CheckNull},
		})
		assert.Error(t, err)
	})

	t.Run("duplicate check rows for one run are rejected", func(t *testing.T) {
		testDB.TruncateAll(t)

		run := startRun(t, testDB, 1)
		row := models.QualityCheckResult{
			Symbol:      "AAPL",
			TargetTable: models.TargetDailyPrices,
			CheckKind:   models.CheckNull,
		}
		require.NoError(t, testDB.InsertQualityResults(run.RunID, []models.QualityCheckResult{row}))

		err := testDB.InsertQualityResults(run.RunID, []models.QualityCheckResult{row})
		assert.Error(t, err)
	})

	t.Run("no results for unknown run", func(t *testing.T) {
		testDB.TruncateAll(t)

		stored, err := testDB.GetQualityResults(uuid.NewString())
		require.NoError(t, err)
		assert.Empty(t, stored)
	})
}
