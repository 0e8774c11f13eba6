package models

import (
	"github.com/shopspring/decimal"
)

// TradeType is the direction of a trade
type TradeType string

const (
	TradeTypeBuy  TradeType = "BUY"
	TradeTypeSell TradeType = "SELL"
)

// TradeStatus reflects the remote row's current execution status. Status
// transitions happen externally; this service only displays them.
type TradeStatus string

const (
	TradeStatusPending  TradeStatus = "PENDING"
	TradeStatusExecuted TradeStatus = "EXECUTED"
	TradeStatusFailed   TradeStatus = "FAILED"
)

// StrategyStatus is the lifecycle state of a trading strategy
type StrategyStatus string

const (
	StrategyStatusActive  StrategyStatus = "ACTIVE"
	StrategyStatusPaused  StrategyStatus = "PAUSED"
	StrategyStatusStopped StrategyStatus = "STOPPED"
)

// Portfolio is the assembled view model for a user's active portfolio,
// positions ordered most-recent-created-first.
type Portfolio struct {
	ID              string          `json:"id"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	TotalPnL        decimal.Decimal `json:"totalPnL"`
	TotalPnLPercent decimal.Decimal `json:"totalPnLPercent"`
	AvailableCash   decimal.Decimal `json:"availableCash"`
	Positions       []Position      `json:"positions"`
}

// Position is a single holding within a portfolio. Derived values (pnl,
// marketValue) are trusted from the remote store, not recomputed.
type Position struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnlPercent"`
	MarketValue  decimal.Decimal `json:"marketValue"`
}

// Trade is an immutable snapshot of a trade row
type Trade struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Type      TradeType       `json:"type"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
	Status    TradeStatus     `json:"status"`
	Strategy  string          `json:"strategy,omitempty"`
}

// StrategyPerformance holds live performance metrics for a strategy
type StrategyPerformance struct {
	TotalReturn float64 `json:"totalReturn"`
	WinRate     float64 `json:"winRate"`
	SharpeRatio float64 `json:"sharpeRatio"`
	MaxDrawdown float64 `json:"maxDrawdown"`
}

// BacktestResults holds the strategy's backtest summary
type BacktestResults struct {
	Accuracy         float64 `json:"accuracy"`
	TotalTrades      int     `json:"totalTrades"`
	ProfitableTrades int     `json:"profitableTrades"`
}

// TradingStrategy is the view model for a user-defined strategy
type TradingStrategy struct {
	ID              string              `json:"id"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	Status          StrategyStatus      `json:"status"`
	Performance     StrategyPerformance `json:"performance"`
	BacktestResults BacktestResults     `json:"backtestResults"`
}

// MarketData is one synthetic ticker produced by the polling simulator.
// It is never persisted; every tick replaces the whole set.
type MarketData struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        float64 `json:"volume"`
	High24h       float64 `json:"high24h"`
	Low24h        float64 `json:"low24h"`
	Timestamp     int64   `json:"timestamp"`
}

// ChartDataPoint is one OHLCV candle of generated chart data
type ChartDataPoint struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// ChatMessage is a chat-widget message, local to a session
type ChatMessage struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"` // "user" or "ai"
	Content     string   `json:"content"`
	Timestamp   int64    `json:"timestamp"`
	Suggestions []string `json:"suggestions,omitempty"`
}
