package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradedeck/internal/auth"
	"tradedeck/internal/chat"
	"tradedeck/internal/market"
	"tradedeck/internal/models"
	"tradedeck/internal/realtime"
	"tradedeck/internal/watch"
)

// MarketCache serves the most recent ticker set written by any instance.
// Nil when Redis is unavailable.
type MarketCache interface {
	GetMarketSnapshot(ctx context.Context) ([]models.MarketData, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	auth      *auth.Service
	manager   *watch.Manager
	simulator *market.Simulator
	cache     MarketCache
	assistant *chat.Assistant
	broker    *realtime.Broker
	apiKey    string
	log       zerolog.Logger
}

// NewHandler creates a new Handler
func NewHandler(authSvc *auth.Service, manager *watch.Manager, simulator *market.Simulator, cache MarketCache, assistant *chat.Assistant, broker *realtime.Broker, apiKey string, log zerolog.Logger) *Handler {
	return &Handler{
		auth:      authSvc,
		manager:   manager,
		simulator: simulator,
		cache:     cache,
		assistant: assistant,
		broker:    broker,
		apiKey:    apiKey,
		log:       log.With().Str("component", "api").Logger(),
	}
}

type ctxKey int

const sessionKey ctxKey = 0

func sessionFrom(ctx context.Context) *auth.Session {
	s, _ := ctx.Value(sessionKey).(*auth.Session)
	return s
}

// SignUp handles POST /auth/signup
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// SignIn handles POST /auth/signin
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// SignOut handles POST /auth/signout
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if err := h.auth.SignOut(r.Context(), session.Token); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSession handles GET /auth/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionFrom(r.Context()))
}

// GetPortfolio handles GET /portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	ds := h.manager.Acquire(session.User.ID)
	defer h.manager.Release(ds)

	snap := ds.Portfolio.Refetch(r.Context())
	if snap.Err != "" {
		http.Error(w, snap.Err, http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetTrades handles GET /trades
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	ds := h.manager.Acquire(session.User.ID)
	defer h.manager.Release(ds)

	snap := ds.Trades.Refetch(r.Context())
	if snap.Err != "" {
		http.Error(w, snap.Err, http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// CreateTrade handles POST /trades
func (h *Handler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol   string          `json:"symbol"`
		Type     string          `json:"type"`
		Quantity decimal.Decimal `json:"quantity"`
		Price    decimal.Decimal `json:"price"`
		Status   string          `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	tradeType := models.TradeType(req.Type)
	if tradeType != models.TradeTypeBuy && tradeType != models.TradeTypeSell {
		http.Error(w, "type must be BUY or SELL", http.StatusBadRequest)
		return
	}
	if req.Quantity.IsZero() || req.Quantity.IsNegative() {
		http.Error(w, "quantity must be positive", http.StatusBadRequest)
		return
	}

	session := sessionFrom(r.Context())
	ds := h.manager.Acquire(session.User.ID)
	defer h.manager.Release(ds)

	rec, err := ds.Trades.CreateTrade(r.Context(), watch.CreateTradeRequest{
		Symbol:   req.Symbol,
		Type:     tradeType,
		Quantity: req.Quantity,
		Price:    req.Price,
		Status:   models.TradeStatus(req.Status),
	})
	if err != nil {
		if errors.Is(err, watch.ErrNoActivePortfolio) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, watch.TradeFromRecord(*rec))
}

// GetStrategies handles GET /strategies
func (h *Handler) GetStrategies(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	ds := h.manager.Acquire(session.User.ID)
	defer h.manager.Release(ds)

	snap := ds.Strategies.Refetch(r.Context())
	if snap.Err != "" {
		http.Error(w, snap.Err, http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// CreateStrategy handles POST /strategies
func (h *Handler) CreateStrategy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name            string                     `json:"name"`
		Description     string                     `json:"description"`
		Status          string                     `json:"status"`
		Performance     models.StrategyPerformance `json:"performance"`
		BacktestResults models.BacktestResults     `json:"backtestResults"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	session := sessionFrom(r.Context())
	ds := h.manager.Acquire(session.User.ID)
	defer h.manager.Release(ds)

	rec, err := ds.Strategies.CreateStrategy(r.Context(), watch.CreateStrategyRequest{
		Name:            req.Name,
		Description:     req.Description,
		Status:          models.StrategyStatus(req.Status),
		Performance:     req.Performance,
		BacktestResults: req.BacktestResults,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, watch.StrategyFromRecord(*rec))
}

// GetMarket handles GET /market. The cached snapshot carries ticks from
// whichever instance published last; the local simulator is the fallback.
func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		data, err := h.cache.GetMarketSnapshot(r.Context())
		if err == nil && len(data) > 0 {
			respondJSON(w, http.StatusOK, data)
			return
		}
	}
	respondJSON(w, http.StatusOK, h.simulator.Snapshot())
}

// GetChart handles GET /market/{symbol}/chart
func (h *Handler) GetChart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			http.Error(w, "days must be between 1 and 365", http.StatusBadRequest)
			return
		}
		days = parsed
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": vars["symbol"],
		"points": market.GenerateChartData(days, nil),
	})
}

// ChatWelcome handles GET /chat
func (h *Handler) ChatWelcome(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.assistant.Welcome())
}

// Chat handles POST /chat
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	reply, err := h.assistant.Reply(r.Context(), req.Message)
	if err != nil {
		// Client went away before the typing delay elapsed
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

// Stream handles GET /stream: the dashboard's live event feed. Attaching
// starts the user's watcher set; disconnecting releases it.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	ds := h.manager.Acquire(session.User.ID)
	defer h.manager.Release(ds)

	h.broker.ServeHTTP(w, r)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// respondJSON writes data as a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
