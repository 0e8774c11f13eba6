package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The queries in this package and the DDL the service applies at startup must
// agree on column names; sqlmock cannot catch a drift between them.

func migrationColumns(t *testing.T, table string) map[string]bool {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "000001_init_schema.up.sql"))
	require.NoError(t, err)

	re := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS ` + table + ` \((.*?)\);`)
	m := re.FindSubmatch(raw)
	require.NotNil(t, m, "table %s not found in migration", table)

	cols := make(map[string]bool)
	for _, line := range strings.Split(string(m[1]), "\n") {
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) == 0 {
			continue
		}
		cols[strings.ToLower(fields[0])] = true
	}
	return cols
}

func TestMigration_DefinesEveryQueriedColumn(t *testing.T) {
	queried := map[string][]string{
		"users": {"id", "email", "password_hash", "full_name", "created_at"},
		"profiles": {"id", "email", "full_name", "risk_tolerance", "created_at", "updated_at"},
		"portfolios": {
			"id", "user_id", "name", "total_value", "total_pnl", "total_pnl_percent",
			"available_cash", "is_active", "created_at", "updated_at",
		},
		"positions": {
			"id", "portfolio_id", "symbol", "quantity", "average_price", "current_price",
			"pnl", "pnl_percent", "market_value", "position_type", "created_at", "updated_at",
		},
		"trades": {
			"id", "portfolio_id", "symbol", "trade_type", "quantity", "price",
			"total_amount", "status", "strategy_id", "created_at",
		},
		"strategies": {
			"id", "user_id", "name", "description", "status", "performance",
			"backtest_results", "created_at", "updated_at",
		},
	}

	for table, cols := range queried {
		t.Run(table, func(t *testing.T) {
			defined := migrationColumns(t, table)
			for _, col := range cols {
				assert.True(t, defined[col], "column %q referenced by queries is missing from the %s DDL", col, table)
			}
		})
	}
}
