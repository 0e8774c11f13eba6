package watch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"tradedeck/internal/metrics"
	"tradedeck/internal/models"
	"tradedeck/internal/store"
)

// StrategiesStore is the slice of the remote store the strategies watcher
// needs
type StrategiesStore interface {
	StrategiesByUser(ctx context.Context, userID string) ([]store.StrategyRecord, error)
	InsertStrategy(ctx context.Context, s *store.StrategyRecord) error
}

// StrategiesSnapshot is the watcher's current state
type StrategiesSnapshot struct {
	Strategies []models.TradingStrategy `json:"strategies"`
	Loading    bool                     `json:"loading"`
	Err        string                   `json:"error,omitempty"`
}

// CreateStrategyRequest describes a user-initiated strategy insert
type CreateStrategyRequest struct {
	Name            string
	Description     string
	Status          models.StrategyStatus
	Performance     models.StrategyPerformance
	BacktestResults models.BacktestResults
}

// StrategiesWatcher keeps one user's strategy list in sync with the remote
// store.
type StrategiesWatcher struct {
	userID    string
	store     StrategiesStore
	feed      ChangeSource
	publisher ChangePublisher
	log       zerolog.Logger

	guard  fetchGuard
	ctx    context.Context
	cancel context.CancelFunc
	subs   []*store.Subscription

	mu         sync.RWMutex
	strategies []models.TradingStrategy
	loading    bool
	err        string
}

// NewStrategiesWatcher creates a watcher for the given user
func NewStrategiesWatcher(userID string, st StrategiesStore, feed ChangeSource, publisher ChangePublisher, log zerolog.Logger) *StrategiesWatcher {
	return &StrategiesWatcher{
		userID:    userID,
		store:     st,
		feed:      feed,
		publisher: publisher,
		log:       log.With().Str("watcher", "strategies").Str("user_id", userID).Logger(),
		loading:   userID != "",
	}
}

// Start issues the initial fetch and subscribes to strategy changes
// filtered to this user.
func (w *StrategiesWatcher) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	if w.userID == "" {
		return
	}
	go w.Refetch(w.ctx)
	w.subs = append(w.subs, w.feed.Subscribe("strategies", store.FilterUser(w.userID), w.onChange))
}

// Stop unsubscribes from change events and prevents any in-flight fetch
// from applying its result.
func (w *StrategiesWatcher) Stop() {
	for _, sub := range w.subs {
		sub.Unsubscribe()
	}
	w.subs = nil
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *StrategiesWatcher) onChange(store.ChangeEvent) {
	go w.Refetch(w.ctx)
}

// Refetch re-reads the user's strategies. The result is applied only when it
// is the most recently issued fetch and the watcher has not been stopped.
func (w *StrategiesWatcher) Refetch(ctx context.Context) StrategiesSnapshot {
	if w.userID == "" {
		return w.Snapshot()
	}
	seq := w.guard.begin()
	metrics.Fetches.WithLabelValues("strategies").Inc()

	var (
		fetchErr   string
		strategies []models.TradingStrategy
	)

	recs, err := w.store.StrategiesByUser(ctx, w.userID)
	if err != nil {
		fetchErr = err.Error()
		metrics.FetchErrors.WithLabelValues("strategies").Inc()
		w.log.Error().Str("error", fetchErr).Msg("strategies fetch failed")
	} else {
		strategies = StrategiesFromRecords(recs)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil || !w.guard.latest(seq) {
		return w.snapshotLocked()
	}
	w.loading = false
	w.err = fetchErr
	if fetchErr == "" {
		w.strategies = strategies
	}
	return w.snapshotLocked()
}

// CreateStrategy inserts a new strategy row and refetches the list
func (w *StrategiesWatcher) CreateStrategy(ctx context.Context, req CreateStrategyRequest) (*store.StrategyRecord, error) {
	if w.userID == "" {
		return nil, ErrNoUser
	}

	performance, err := json.Marshal(req.Performance)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal performance: %w", err)
	}
	backtest, err := json.Marshal(req.BacktestResults)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backtest results: %w", err)
	}

	status := req.Status
	if status == "" {
		status = models.StrategyStatusActive
	}
	rec := &store.StrategyRecord{
		UserID:          w.userID,
		Name:            req.Name,
		Description:     sql.NullString{String: req.Description, Valid: req.Description != ""},
		Status:          string(status),
		Performance:     performance,
		BacktestResults: backtest,
	}
	if err := w.store.InsertStrategy(ctx, rec); err != nil {
		return nil, err
	}

	if w.publisher != nil {
		ev := store.ChangeEvent{Table: "strategies", Op: "INSERT", RowID: rec.ID, UserID: w.userID}
		if perr := w.publisher.PublishChange(ctx, ev); perr != nil {
			w.log.Error().Err(perr).Msg("failed to publish strategy change event")
		}
	}

	w.Refetch(ctx)
	return rec, nil
}

// Snapshot returns the watcher's current state
func (w *StrategiesWatcher) Snapshot() StrategiesSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *StrategiesWatcher) snapshotLocked() StrategiesSnapshot {
	return StrategiesSnapshot{
		Strategies: w.strategies,
		Loading:    w.loading,
		Err:        w.err,
	}
}
