package market

import (
	"math"
	"math/rand"
	"time"

	"tradedeck/internal/models"
)

// Chart generation constants: daily volatility, upward drift per candle
const (
	chartBasePrice  = 45000.0
	chartVolatility = 0.02
	chartTrend      = 0.001
)

// GenerateChartData produces a random-walk OHLCV series of days+1 daily
// candles ending now, each candle's open chained to the previous close.
// A nil rng falls back to a time-seeded source.
func GenerateChartData(days int, rng *rand.Rand) []models.ChartDataPoint {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	data := make([]models.ChartDataPoint, 0, days+1)
	basePrice := chartBasePrice
	now := time.Now().UnixMilli()

	for i := days; i >= 0; i-- {
		timestamp := now - int64(i)*24*int64(time.Hour/time.Millisecond)

		change := (rng.Float64()-0.5)*chartVolatility + chartTrend
		open := basePrice
		close := basePrice * (1 + change)
		high := math.Max(open, close) * (1 + rng.Float64()*0.01)
		low := math.Min(open, close) * (1 - rng.Float64()*0.01)
		volume := rng.Float64()*1000000 + 500000

		data = append(data, models.ChartDataPoint{
			Timestamp: timestamp,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		})

		basePrice = close
	}

	return data
}
