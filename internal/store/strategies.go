package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StrategiesByUser retrieves all of a user's strategies, most recent first
func (db *DB) StrategiesByUser(ctx context.Context, userID string) ([]StrategyRecord, error) {
	query := `
		SELECT id, user_id, name, description, status, performance,
		       backtest_results, created_at, updated_at
		FROM strategies
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get strategies: %w", err)
	}
	defer rows.Close()

	var strategies []StrategyRecord
	for rows.Next() {
		var s StrategyRecord
		err := rows.Scan(
			&s.ID, &s.UserID, &s.Name, &s.Description, &s.Status, &s.Performance,
			&s.BacktestResults, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		strategies = append(strategies, s)
	}
	return strategies, rows.Err()
}

// InsertStrategy inserts a new strategy row, filling in id and timestamps
func (db *DB) InsertStrategy(ctx context.Context, s *StrategyRecord) error {
	query := `
		INSERT INTO strategies (
			id, user_id, name, description, status, performance,
			backtest_results, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err := db.conn.ExecContext(ctx, query,
		s.ID, s.UserID, s.Name, s.Description, s.Status, s.Performance,
		s.BacktestResults, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert strategy: %w", err)
	}
	return nil
}
