package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedeck/internal/auth"
	"tradedeck/internal/chat"
	"tradedeck/internal/market"
	"tradedeck/internal/models"
	"tradedeck/internal/store"
)

// ---------------------------------------------------------------------------
// Test fixtures
// ---------------------------------------------------------------------------

type memUserStore struct {
	mu    sync.Mutex
	users map[string]*store.UserRecord
}

func (m *memUserStore) InsertUser(_ context.Context, u *store.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[string]*store.UserRecord)
	}
	cp := *u
	m.users[u.Email] = &cp
	return nil
}

func (m *memUserStore) UserByEmail(_ context.Context, email string) (*store.UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func newTestHandler() *Handler {
	svc := auth.NewService(&memUserStore{}, auth.NewMemorySessionCache(), zerolog.Nop())
	return &Handler{
		auth:      svc,
		simulator: market.NewSimulator(time.Hour, market.DefaultTickers(), zerolog.Nop()),
		assistant: chat.NewAssistant(time.Millisecond),
		apiKey:    "test-key",
		log:       zerolog.Nop(),
	}
}

func withSession(r *http.Request, session *auth.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionKey, session))
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestRequireAPIKey(t *testing.T) {
	h := newTestHandler()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := h.requireAPIKey(next)

	t.Run("missing key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/market", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/market", nil)
		req.Header.Set("X-Api-Key", "nope")
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("header key", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/market", nil)
		req.Header.Set("X-Api-Key", "test-key")
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("query key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/market?apikey=test-key", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireSession(t *testing.T) {
	h := newTestHandler()
	session, err := h.auth.SignUp(context.Background(), "user@example.com", "secret", "")
	require.NoError(t, err)

	var seen *auth.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = sessionFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	wrapped := h.requireSession(next)

	t.Run("valid bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/portfolio", nil)
		req.Header.Set("Authorization", "Bearer "+session.Token)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, session.User.ID, seen.User.ID)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/portfolio", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/portfolio", nil)
		req.Header.Set("Authorization", "Bearer bogus")
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("token via query for SSE clients", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/stream?token="+session.Token, nil)
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Bearer tok-123")
	assert.Equal(t, "tok-123", bearerToken(req))

	req.Header.Set("Authorization", "bearer tok-123")
	assert.Equal(t, "tok-123", bearerToken(req))
}

// ---------------------------------------------------------------------------
// Auth handlers
// ---------------------------------------------------------------------------

func TestSignUpHandler(t *testing.T) {
	h := newTestHandler()

	body := `{"email":"user@example.com","password":"secret","fullName":"Test User"}`
	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest("POST", "/api/v1/auth/signup", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)
	var session auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "user@example.com", session.User.Email)
}

func TestSignUpHandler_DuplicateEmail(t *testing.T) {
	h := newTestHandler()
	body := `{"email":"user@example.com","password":"secret"}`

	rec := httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest("POST", "/api/v1/auth/signup", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	h.SignUp(rec, httptest.NewRequest("POST", "/api/v1/auth/signup", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSignInHandler_WrongPassword(t *testing.T) {
	h := newTestHandler()
	_, err := h.auth.SignUp(context.Background(), "user@example.com", "secret", "")
	require.NoError(t, err)

	body := `{"email":"user@example.com","password":"wrong"}`
	rec := httptest.NewRecorder()
	h.SignIn(rec, httptest.NewRequest("POST", "/api/v1/auth/signin", strings.NewReader(body)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetSessionHandler(t *testing.T) {
	h := newTestHandler()
	session, err := h.auth.SignUp(context.Background(), "user@example.com", "secret", "")
	require.NoError(t, err)

	req := withSession(httptest.NewRequest("GET", "/api/v1/auth/session", nil), session)
	rec := httptest.NewRecorder()
	h.GetSession(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got auth.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, session.User.ID, got.User.ID)
}

// ---------------------------------------------------------------------------
// Trade validation
// ---------------------------------------------------------------------------

func TestCreateTradeHandler_Validation(t *testing.T) {
	h := newTestHandler()

	cases := map[string]string{
		"missing symbol":    `{"type":"BUY","quantity":"1","price":"100"}`,
		"bad type":          `{"symbol":"BTC/USD","type":"HOLD","quantity":"1","price":"100"}`,
		"zero quantity":     `{"symbol":"BTC/USD","type":"BUY","quantity":"0","price":"100"}`,
		"negative quantity": `{"symbol":"BTC/USD","type":"BUY","quantity":"-1","price":"100"}`,
		"invalid body":      `{nope`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.CreateTrade(rec, httptest.NewRequest("POST", "/api/v1/trades", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// ---------------------------------------------------------------------------
// Market and chat
// ---------------------------------------------------------------------------

func TestGetMarketHandler(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.GetMarket(rec, httptest.NewRequest("GET", "/api/v1/market", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var tickers []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickers))
	assert.Len(t, tickers, 5)
}

type stubMarketCache struct {
	data []models.MarketData
	err  error
}

func (s *stubMarketCache) GetMarketSnapshot(context.Context) ([]models.MarketData, error) {
	return s.data, s.err
}

func TestGetMarketHandler_PrefersCachedSnapshot(t *testing.T) {
	h := newTestHandler()
	h.cache = &stubMarketCache{data: []models.MarketData{{
		Symbol: "ETH/USD",
		Price:  3200,
	}}}

	rec := httptest.NewRecorder()
	h.GetMarket(rec, httptest.NewRequest("GET", "/api/v1/market", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var tickers []models.MarketData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickers))
	require.Len(t, tickers, 1)
	assert.Equal(t, "ETH/USD", tickers[0].Symbol)
}

func TestGetMarketHandler_FallsBackToSimulator(t *testing.T) {
	h := newTestHandler()
	h.cache = &stubMarketCache{err: errors.New("redis: connection refused")}

	rec := httptest.NewRecorder()
	h.GetMarket(rec, httptest.NewRequest("GET", "/api/v1/market", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var tickers []models.MarketData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickers))
	assert.Len(t, tickers, 5)
}

func TestGetChartHandler(t *testing.T) {
	h := newTestHandler()

	req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/market/BTC-USD/chart?days=7", nil),
		map[string]string{"symbol": "BTC-USD"})
	rec := httptest.NewRecorder()
	h.GetChart(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Symbol string            `json:"symbol"`
		Points []json.RawMessage `json:"points"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "BTC-USD", resp.Symbol)
	assert.Len(t, resp.Points, 8)
}

func TestGetChartHandler_InvalidDays(t *testing.T) {
	h := newTestHandler()

	for _, days := range []string{"0", "-1", "366", "abc"} {
		req := mux.SetURLVars(httptest.NewRequest("GET", "/api/v1/market/BTC-USD/chart?days="+days, nil),
			map[string]string{"symbol": "BTC-USD"})
		rec := httptest.NewRecorder()
		h.GetChart(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "days=%s", days)
	}
}

func TestChatHandler(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(`{"message":"analyze my portfolio"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	var msg struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, "ai", msg.Type)
	assert.NotEmpty(t, msg.Content)
}

func TestChatHandler_EmptyMessage(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.Chat(rec, httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(`{"message":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ---------------------------------------------------------------------------
// Routing
// ---------------------------------------------------------------------------

func TestRoutes_HealthBypassesAPIKey(t *testing.T) {
	router := SetupRoutes(newTestHandler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRoutes_APIKeyEnforced(t *testing.T) {
	router := SetupRoutes(newTestHandler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/market", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("GET", "/api/v1/market", nil)
	req.Header.Set("X-Api-Key", "test-key")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
