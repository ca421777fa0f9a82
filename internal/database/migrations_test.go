package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("all tables exist", func(t *testing.T) {
		expectedTables := []string{
			"stocks",
			"daily_prices",
			"technical_indicators",
			"market_overview",
			"etl_execution_log",
			"data_quality_log",
		}

		for _, tableName := range expectedTables {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err, "failed to check table existence for %s", tableName)
			assert.True(t, exists, "table %s should exist", tableName)
		}
	})

	t.Run("all views exist", func(t *testing.T) {
		expectedViews := []string{
			"latest_prices",
			"stock_performance_summary",
			"execution_summary",
		}

		for _, viewName := range expectedViews {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.views
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, viewName).Scan(&exists)

			require.NoError(t, err, "failed to check view existence for %s", viewName)
			assert.True(t, exists, "view %s should exist", viewName)
		}
	})

	t.Run("daily_prices natural key is unique", func(t *testing.T) {
		var count int
		err := testDB.GetRawConn().QueryRow(`
			SELECT count(*)
			FROM information_schema.table_constraints
			WHERE table_name = 'daily_prices' AND constraint_type = 'UNIQUE'
		`).Scan(&count)

		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("etl_execution_log status is constrained", func(t *testing.T) {
		_, err := testDB.GetRawConn().Exec(`
			INSERT INTO etl_execution_log (run_id, started_at, status)
			VALUES (gen_random_uuid(), NOW(), 'BOGUS')
		`)
		assert.Error(t, err)
	})

	t.Run("migrations are recorded", func(t *testing.T) {
		var version int
		var dirty bool
		err := testDB.GetRawConn().QueryRow(
			`SELECT version, dirty FROM schema_migrations`,
		).Scan(&version, &dirty)

		require.NoError(t, err)
		assert.False(t, dirty)
		assert.GreaterOrEqual(t, version, 1)
	})
}
