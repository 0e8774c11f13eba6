package watch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"tradedeck/internal/metrics"
	"tradedeck/internal/models"
	"tradedeck/internal/store"
)

// PortfolioStore is the slice of the remote store the portfolio watcher needs
type PortfolioStore interface {
	ActivePortfolio(ctx context.Context, userID string) (*store.PortfolioRecord, error)
	PositionsByPortfolio(ctx context.Context, portfolioID string) ([]store.PositionRecord, error)
}

// PortfolioSnapshot is the watcher's current state. A nil Portfolio with an
// empty Err is the valid "no active portfolio" state.
type PortfolioSnapshot struct {
	Portfolio *models.Portfolio `json:"portfolio"`
	Positions []models.Position `json:"positions"`
	Loading   bool              `json:"loading"`
	Err       string            `json:"error,omitempty"`
}

// PortfolioWatcher keeps one user's portfolio view model in sync with the
// remote store. Without a user id it is inert.
type PortfolioWatcher struct {
	userID string
	store  PortfolioStore
	feed   ChangeSource
	log    zerolog.Logger

	guard  fetchGuard
	ctx    context.Context
	cancel context.CancelFunc
	subs   []*store.Subscription

	mu        sync.RWMutex
	portfolio *models.Portfolio
	positions []models.Position
	loading   bool
	err       string
}

// NewPortfolioWatcher creates a watcher for the given user. An empty userID
// yields an inert watcher that reports loading=false and no data.
func NewPortfolioWatcher(userID string, st PortfolioStore, feed ChangeSource, log zerolog.Logger) *PortfolioWatcher {
	return &PortfolioWatcher{
		userID:  userID,
		store:   st,
		feed:    feed,
		log:     log.With().Str("watcher", "portfolio").Str("user_id", userID).Logger(),
		loading: userID != "",
	}
}

// Start issues the initial fetch and subscribes to change events: portfolio
// rows filtered to this user, and position rows unfiltered (any position
// change anywhere triggers a refetch).
func (w *PortfolioWatcher) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	if w.userID == "" {
		return
	}
	go w.Refetch(w.ctx)
	w.subs = append(w.subs,
		w.feed.Subscribe("portfolios", store.FilterUser(w.userID), w.onChange),
		w.feed.Subscribe("positions", nil, w.onChange),
	)
}

// Stop unsubscribes from change events and prevents any in-flight fetch from
// applying its result.
func (w *PortfolioWatcher) Stop() {
	for _, sub := range w.subs {
		sub.Unsubscribe()
	}
	w.subs = nil
	if w.cancel != nil {
		w.cancel()
	}
}

func (w *PortfolioWatcher) onChange(store.ChangeEvent) {
	go w.Refetch(w.ctx)
}

// Refetch re-reads the portfolio and its positions. The result is applied
// only when it is the most recently issued fetch and the watcher has not
// been stopped. Returns the snapshot current after the attempt.
func (w *PortfolioWatcher) Refetch(ctx context.Context) PortfolioSnapshot {
	if w.userID == "" {
		return w.Snapshot()
	}
	seq := w.guard.begin()
	metrics.Fetches.WithLabelValues("portfolio").Inc()

	var (
		fetchErr  string
		portfolio *models.Portfolio
		positions []models.Position
	)

	rec, err := w.store.ActivePortfolio(ctx, w.userID)
	if err != nil {
		fetchErr = err.Error()
	} else if rec != nil {
		posRecs, perr := w.store.PositionsByPortfolio(ctx, rec.ID)
		if perr != nil {
			fetchErr = perr.Error()
		} else {
			positions = PositionsFromRecords(posRecs)
			p := PortfolioFromRecord(*rec, positions)
			portfolio = &p
		}
	}
	if fetchErr != "" {
		metrics.FetchErrors.WithLabelValues("portfolio").Inc()
		w.log.Error().Str("error", fetchErr).Msg("portfolio fetch failed")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if ctx.Err() != nil || !w.guard.latest(seq) {
		return w.snapshotLocked()
	}
	w.loading = false
	w.err = fetchErr
	if fetchErr == "" {
		w.portfolio = portfolio
		w.positions = positions
	}
	return w.snapshotLocked()
}

// Snapshot returns the watcher's current state
func (w *PortfolioWatcher) Snapshot() PortfolioSnapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *PortfolioWatcher) snapshotLocked() PortfolioSnapshot {
	return PortfolioSnapshot{
		Portfolio: w.portfolio,
		Positions: w.positions,
		Loading:   w.loading,
		Err:       w.err,
	}
}
