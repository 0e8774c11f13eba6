package watch

import (
	"encoding/json"

	"tradedeck/internal/models"
	"tradedeck/internal/store"
)

// Transformers mapping raw store records to the camelCase, non-null view
// models the dashboard consumes. All of them are pure.

// aiStrategyLabel is the display label for trades placed by a strategy
const aiStrategyLabel = "AI Strategy"

// PositionFromRecord maps a position row to its view model
func PositionFromRecord(rec store.PositionRecord) models.Position {
	return models.Position{
		ID:           rec.ID,
		Symbol:       rec.Symbol,
		Quantity:     rec.Quantity,
		AveragePrice: rec.AveragePrice,
		CurrentPrice: rec.CurrentPrice,
		PnL:          rec.PnL,
		PnLPercent:   rec.PnLPercent,
		MarketValue:  rec.MarketValue,
	}
}

// PositionsFromRecords maps position rows preserving the store's order
func PositionsFromRecords(recs []store.PositionRecord) []models.Position {
	positions := make([]models.Position, 0, len(recs))
	for _, rec := range recs {
		positions = append(positions, PositionFromRecord(rec))
	}
	return positions
}

// PortfolioFromRecord assembles the full Portfolio view model
func PortfolioFromRecord(rec store.PortfolioRecord, positions []models.Position) models.Portfolio {
	return models.Portfolio{
		ID:              rec.ID,
		TotalValue:      rec.TotalValue,
		TotalPnL:        rec.TotalPnL,
		TotalPnLPercent: rec.TotalPnLPercent,
		AvailableCash:   rec.AvailableCash,
		Positions:       positions,
	}
}

// TradeFromRecord maps a trade row to its view model. The strategy label is
// derived from the presence of a strategy id.
func TradeFromRecord(rec store.TradeRecord) models.Trade {
	t := models.Trade{
		ID:        rec.ID,
		Symbol:    rec.Symbol,
		Type:      models.TradeType(rec.TradeType),
		Quantity:  rec.Quantity,
		Price:     rec.Price,
		Timestamp: rec.CreatedAt.UnixMilli(),
		Status:    models.TradeStatus(rec.Status),
	}
	if rec.StrategyID.Valid {
		t.Strategy = aiStrategyLabel
	}
	return t
}

// TradesFromRecords maps trade rows preserving the store's order
func TradesFromRecords(recs []store.TradeRecord) []models.Trade {
	trades := make([]models.Trade, 0, len(recs))
	for _, rec := range recs {
		trades = append(trades, TradeFromRecord(rec))
	}
	return trades
}

// StrategyFromRecord maps a strategy row to its view model. Absent or
// malformed performance/backtest JSON yields zero-valued metrics rather than
// an error.
func StrategyFromRecord(rec store.StrategyRecord) models.TradingStrategy {
	s := models.TradingStrategy{
		ID:     rec.ID,
		Name:   rec.Name,
		Status: models.StrategyStatus(rec.Status),
	}
	if rec.Description.Valid {
		s.Description = rec.Description.String
	}
	s.Performance = performanceFromJSON(rec.Performance)
	s.BacktestResults = backtestFromJSON(rec.BacktestResults)
	return s
}

// StrategiesFromRecords maps strategy rows preserving the store's order
func StrategiesFromRecords(recs []store.StrategyRecord) []models.TradingStrategy {
	strategies := make([]models.TradingStrategy, 0, len(recs))
	for _, rec := range recs {
		strategies = append(strategies, StrategyFromRecord(rec))
	}
	return strategies
}

func performanceFromJSON(raw []byte) models.StrategyPerformance {
	var p models.StrategyPerformance
	if len(raw) == 0 || string(raw) == "null" {
		return p
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.StrategyPerformance{}
	}
	return p
}

func backtestFromJSON(raw []byte) models.BacktestResults {
	var b models.BacktestResults
	if len(raw) == 0 || string(raw) == "null" {
		return b
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return models.BacktestResults{}
	}
	return b
}
