package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TradesByPortfolios retrieves up to limit trades across the given
// portfolios, newest first. An empty id list yields no trades.
func (db *DB) TradesByPortfolios(ctx context.Context, portfolioIDs []string, limit int) ([]TradeRecord, error) {
	if len(portfolioIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, portfolio_id, symbol, trade_type, quantity, price,
		       total_amount, status, strategy_id, created_at
		FROM trades
		WHERE portfolio_id = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, pq.Array(portfolioIDs), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	var trades []TradeRecord
	for rows.Next() {
		var t TradeRecord
		err := rows.Scan(
			&t.ID, &t.PortfolioID, &t.Symbol, &t.TradeType, &t.Quantity, &t.Price,
			&t.TotalAmount, &t.Status, &t.StrategyID, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// InsertTrade inserts a new trade row, filling in id and created_at
func (db *DB) InsertTrade(ctx context.Context, t *TradeRecord) error {
	query := `
		INSERT INTO trades (
			id, portfolio_id, symbol, trade_type, quantity, price,
			total_amount, status, strategy_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		t.ID, t.PortfolioID, t.Symbol, t.TradeType, t.Quantity, t.Price,
		t.TotalAmount, t.Status, t.StrategyID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}
