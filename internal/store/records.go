package store

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// Raw row shapes as returned by the remote store. Columns are snake_case and
// partially nullable; the watch package transforms them into view models.

// PortfolioRecord mirrors a row of the portfolios table
type PortfolioRecord struct {
	ID              string
	UserID          string
	Name            string
	TotalValue      decimal.Decimal
	TotalPnL        decimal.Decimal
	TotalPnLPercent decimal.Decimal
	AvailableCash   decimal.Decimal
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PositionRecord mirrors a row of the positions table
type PositionRecord struct {
	ID           string
	PortfolioID  string
	Symbol       string
	Quantity     decimal.Decimal
	AveragePrice decimal.Decimal
	CurrentPrice decimal.Decimal
	PnL          decimal.Decimal
	PnLPercent   decimal.Decimal
	MarketValue  decimal.Decimal
	PositionType string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TradeRecord mirrors a row of the trades table
type TradeRecord struct {
	ID          string
	PortfolioID string
	Symbol      string
	TradeType   string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	TotalAmount decimal.Decimal
	Status      string
	StrategyID  sql.NullString
	CreatedAt   time.Time
}

// StrategyRecord mirrors a row of the strategies table. Performance and
// BacktestResults carry raw JSON and may be empty.
type StrategyRecord struct {
	ID              string
	UserID          string
	Name            string
	Description     sql.NullString
	Status          string
	Performance     []byte
	BacktestResults []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProfileRecord mirrors a row of the profiles table
type ProfileRecord struct {
	ID            string
	Email         string
	FullName      sql.NullString
	RiskTolerance string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// UserRecord mirrors a row of the users table (auth primitive internals)
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     sql.NullString
	CreatedAt    time.Time
}
