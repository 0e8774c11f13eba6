package watch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradedeck/internal/metrics"
	"tradedeck/internal/models"
	"tradedeck/internal/store"
)

// tradeFetchLimit caps how many trades a refetch returns
const tradeFetchLimit = 50

// ErrNoActivePortfolio is returned by CreateTrade when the user has no
// active portfolio to trade against.
var ErrNoActivePortfolio = errors.New("no active portfolio")

// ErrNoUser is returned by mutations on an inert watcher
var ErrNoUser = errors.New("no authenticated user")

// TradesStore is the slice of the remote store the trades watcher needs
type TradesStore interface {
	PortfolioIDs(ctx context.Context, userID string) ([]string, error)
	ActivePortfolio(ctx context.Context, userID string) (*store.PortfolioRecord, error)
	TradesByPortfolios(ctx context.Context, portfolioIDs []string, limit int) ([]store.TradeRecord, error)
	InsertTrade(ctx context.Context, t *store.TradeRecord) error
}

// TradesSnapshot is the watcher's current state
type TradesSnapshot struct {
	Trades  []models.Trade `json:"trades"`
	Loading bool           `json:"loading"`
	Err     string         `json:"error,omitempty"`
}

// CreateTradeRequest describes a user-initiated trade insert
type CreateTradeRequest struct {
	Symbol     string
	Type       models.TradeType
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Status     models.TradeStatus
	StrategyID string
}

// TradesWatcher keeps one user's recent-trade list in sync with the remote
// store using a two-phase fetch: portfolio ids first, then trades.
type TradesWatcher struct {
	userID    string
	store     TradesStore
	feed      ChangeSource
	publisher ChangePublisher
	log       zerolog.Logger

	guard  fetchGuard
	ctx    context.Context
	cancel context.CancelFunc
	subs   []*store.Subscription

	mu      sync.RWMutex
	trades  []models.Trade
	loading bool
	err     string
}

// NewTradesWatcher creates a watcher for the given user. The publisher may
// be nil; publishing change events for local inserts is best-effort.
func NewTradesWatcher(userID string, st TradesStore, feed ChangeSource, publisher ChangePublisher, log zerolog.Logger) *TradesWatcher {
	return &TradesWatcher{
		userID:    userID,
		store:     st,
		feed:      feed,
		publisher: publisher,
		log:       log.With().Str("watcher", "trades").Str("user_id", userID).Logger(),
		loading:   userID != "",
	}
}

// Start issues the initial fetch and subscribes to trade-table changes.
// The subscription is deliberately unfiltered: any trade change anywhere
// triggers the full two-phase refetch.
func (w *TradesWatcher) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	if w.userID == "" {
		return
	}
	go w.Refetch(w.ctx)
	w.subs = append(w.subs, w.feed.Subscribe("trades", nil, w.onChange))
}

// Stop unsubscribes from change events and prevents any in-flight fetch
// from applying its result.
func (w *TradesWatcher) Stop() {
	for _, sub := range w.subs {
		sub.Unsubscribe()
	}
	w.subs = nil
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *TradesWatcher) onChange(store.ChangeEvent) {
	go w.Refetch(w.ctx)
}

// Refetch re-runs the two-phase fetch. The result is applied only when it is
// the most recently issued fetch and the watcher has not been stopped.
func (w *TradesWatcher) Refetch(ctx context.Context) TradesSnapshot {
	if w.userID == "" {
		return w.Snapshot()
	}
	seq := w.guard.begin()
	metrics.Fetches.WithLabelValues("trades").Inc()

	var (
		fetchErr string
		trades   []models.Trade
	)

	ids, err := w.store.PortfolioIDs(ctx, w.userID)
	if err != nil {
		fetchErr = err.Error()
	} else {
		recs, terr := w.store.TradesByPortfolios(ctx, ids, tradeFetchLimit)
		if terr != nil {
			fetchErr = terr.Error()
		} else {
			trades = TradesFromRecords(recs)
		}
	}
	if fetchErr != "" {
		metrics.FetchErrors.WithLabelValues("trades").Inc()
		w.log.Error().Str("error", fetchErr).Msg("trades fetch failed")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil || !w.guard.latest(seq) {
		return w.snapshotLocked()
	}
	w.loading = false
	w.err = fetchErr
	if fetchErr == "" {
		w.trades = trades
	}
	return w.snapshotLocked()
}

// CreateTrade inserts a trade against the user's active portfolio with a
// computed total amount, then refetches the list. There is no optimistic
// local insert.
func (w *TradesWatcher) CreateTrade(ctx context.Context, req CreateTradeRequest) (*store.TradeRecord, error) {
	if w.userID == "" {
		return nil, ErrNoUser
	}

	portfolio, err := w.store.ActivePortfolio(ctx, w.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active portfolio: %w", err)
	}
	if portfolio == nil {
		return nil, ErrNoActivePortfolio
	}

	status := req.Status
	if status == "" {
		status = models.TradeStatusPending
	}
	rec := &store.TradeRecord{
		PortfolioID: portfolio.ID,
		Symbol:      req.Symbol,
		TradeType:   string(req.Type),
		Quantity:    req.Quantity,
		Price:       req.Price,
		TotalAmount: req.Quantity.Mul(req.Price),
		Status:      string(status),
		StrategyID:  sql.NullString{String: req.StrategyID, Valid: req.StrategyID != ""},
	}
	if err := w.store.InsertTrade(ctx, rec); err != nil {
		return nil, err
	}

	if w.publisher != nil {
		ev := store.ChangeEvent{Table: "trades", Op: "INSERT", RowID: rec.ID, UserID: w.userID}
		if perr := w.publisher.PublishChange(ctx, ev); perr != nil {
			w.log.Error().Err(perr).Msg("failed to publish trade change event")
		}
	}

	w.Refetch(ctx)
	return rec, nil
}

// Snapshot returns the watcher's current state
func (w *TradesWatcher) Snapshot() TradesSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *TradesWatcher) snapshotLocked() TradesSnapshot {
	return TradesSnapshot{
		Trades:  w.trades,
		Loading: w.loading,
		Err:     w.err,
	}
}
