package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ActivePortfolio retrieves the user's single active portfolio. It returns
// (nil, nil) when no active portfolio exists; that is a valid empty state,
// not an error.
func (db *DB) ActivePortfolio(ctx context.Context, userID string) (*PortfolioRecord, error) {
	query := `
		SELECT id, user_id, name, total_value, total_pnl, total_pnl_percent,
		       available_cash, is_active, created_at, updated_at
		FROM portfolios
		WHERE user_id = $1 AND is_active = TRUE
		LIMIT 1
	`
	var p PortfolioRecord
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&p.ID, &p.UserID, &p.Name, &p.TotalValue, &p.TotalPnL, &p.TotalPnLPercent,
		&p.AvailableCash, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active portfolio: %w", err)
	}
	return &p, nil
}

// PortfolioIDs returns the ids of every portfolio owned by the user
func (db *DB) PortfolioIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT id FROM portfolios WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PositionsByPortfolio retrieves a portfolio's positions, most recent first
func (db *DB) PositionsByPortfolio(ctx context.Context, portfolioID string) ([]PositionRecord, error) {
	query := `
		SELECT id, portfolio_id, symbol, quantity, average_price, current_price,
		       pnl, pnl_percent, market_value, position_type, created_at, updated_at
		FROM positions
		WHERE portfolio_id = $1
		ORDER BY created_at DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer rows.Close()

	var positions []PositionRecord
	for rows.Next() {
		var p PositionRecord
		err := rows.Scan(
			&p.ID, &p.PortfolioID, &p.Symbol, &p.Quantity, &p.AveragePrice, &p.CurrentPrice,
			&p.PnL, &p.PnLPercent, &p.MarketValue, &p.PositionType, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// CreatePortfolio inserts a new active portfolio for the user
func (db *DB) CreatePortfolio(ctx context.Context, userID, name string, availableCash decimal.Decimal) (*PortfolioRecord, error) {
	query := `
		INSERT INTO portfolios (
			id, user_id, name, total_value, total_pnl, total_pnl_percent,
			available_cash, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)
	`
	now := time.Now()
	p := &PortfolioRecord{
		ID:            uuid.NewString(),
		UserID:        userID,
		Name:          name,
		AvailableCash: availableCash,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := db.conn.ExecContext(ctx, query,
		p.ID, p.UserID, p.Name, p.TotalValue, p.TotalPnL, p.TotalPnLPercent,
		p.AvailableCash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}
	return p, nil
}
