// Package chat implements the dashboard's AI assistant widget backend:
// canned responses served after a fixed typing delay. Messages are local to
// a session and never persisted.
package chat

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"tradedeck/internal/models"
)

// DefaultResponseDelay simulates the assistant typing
const DefaultResponseDelay = 2 * time.Second

var responses = []string{
	"Based on current market conditions, I recommend increasing your BTC position by 15%. The momentum indicators are showing strong bullish signals.",
	"Risk alert: ETH is approaching oversold territory. Consider taking partial profits on your current position.",
	"Market analysis suggests a potential reversal in AAPL. The AI model indicates 78% probability of upward movement in the next 24 hours.",
	"Portfolio optimization: Your current allocation shows high correlation risk. I suggest diversifying into defensive sectors.",
	"Technical analysis indicates a golden cross formation in BTC/USD. This could signal a strong uptrend continuation.",
	"Risk management alert: Your portfolio exposure to crypto is 65%. Consider rebalancing to maintain optimal risk levels.",
}

var welcomeSuggestions = []string{"Analyze my portfolio", "Market trends", "Risk assessment"}
var replySuggestions = []string{"Tell me more", "Show analysis", "Execute trade"}

// Assistant serves canned AI responses with a simulated typing delay
type Assistant struct {
	delay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewAssistant creates an assistant. A non-positive delay falls back to the
// default.
func NewAssistant(delay time.Duration) *Assistant {
	if delay <= 0 {
		delay = DefaultResponseDelay
	}
	return &Assistant{
		delay: delay,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Welcome returns the greeting shown when the chat widget opens
func (a *Assistant) Welcome() models.ChatMessage {
	return models.ChatMessage{
		ID:          uuid.NewString(),
		Type:        "ai",
		Content:     "Hello! I'm your AI trading assistant. I can help you analyze markets, suggest strategies, and provide risk management advice. What would you like to know?",
		Timestamp:   time.Now().UnixMilli(),
		Suggestions: welcomeSuggestions,
	}
}

// Reply answers a user message after the typing delay. Cancelling the
// context before the delay elapses aborts the reply; the pending timer is
// released.
func (a *Assistant) Reply(ctx context.Context, _ string) (models.ChatMessage, error) {
	timer := time.NewTimer(a.delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return models.ChatMessage{}, ctx.Err()
	case <-timer.C:
	}

	a.mu.Lock()
	content := responses[a.rng.Intn(len(responses))]
	a.mu.Unlock()

	return models.ChatMessage{
		ID:          "ai-" + uuid.NewString(),
		Type:        "ai",
		Content:     content,
		Timestamp:   time.Now().UnixMilli(),
		Suggestions: replySuggestions,
	}, nil
}
