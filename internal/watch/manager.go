package watch

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Stores bundles the store slices the per-user watcher set needs. *store.DB
// satisfies it.
type Stores interface {
	PortfolioStore
	TradesStore
	StrategiesStore
}

// DashboardSession is the watcher set backing one user's mounted dashboard
type DashboardSession struct {
	UserID     string
	Portfolio  *PortfolioWatcher
	Trades     *TradesWatcher
	Strategies *StrategiesWatcher

	refs int
}

// Manager owns the per-user watcher sets. Sessions are reference counted:
// the first Acquire for a user starts the watchers, the last Release stops
// them and unsubscribes everything. A different user always gets a fresh
// watcher set, so no subscription ever outlives its user id.
type Manager struct {
	ctx       context.Context
	stores    Stores
	feed      ChangeSource
	publisher ChangePublisher
	log       zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*DashboardSession
}

// NewManager creates a session manager. Watchers started by Acquire inherit
// ctx; cancelling it stops them all.
func NewManager(ctx context.Context, stores Stores, feed ChangeSource, publisher ChangePublisher, log zerolog.Logger) *Manager {
	return &Manager{
		ctx:       ctx,
		stores:    stores,
		feed:      feed,
		publisher: publisher,
		log:       log.With().Str("component", "watch-manager").Logger(),
		sessions:  make(map[string]*DashboardSession),
	}
}

// Acquire returns the user's watcher set, creating and starting it on first
// use.
func (m *Manager) Acquire(userID string) *DashboardSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		s.refs++
		return s
	}

	s := &DashboardSession{
		UserID:     userID,
		Portfolio:  NewPortfolioWatcher(userID, m.stores, m.feed, m.log),
		Trades:     NewTradesWatcher(userID, m.stores, m.feed, m.publisher, m.log),
		Strategies: NewStrategiesWatcher(userID, m.stores, m.feed, m.publisher, m.log),
		refs:       1,
	}
	s.Portfolio.Start(m.ctx)
	s.Trades.Start(m.ctx)
	s.Strategies.Start(m.ctx)
	m.sessions[userID] = s
	m.log.Debug().Str("user_id", userID).Msg("dashboard session started")
	return s
}

// Release drops one reference; the last release stops and removes the
// watcher set.
func (m *Manager) Release(s *DashboardSession) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s.refs--
	if s.refs > 0 {
		return
	}
	s.stop()
	delete(m.sessions, s.UserID)
	m.log.Debug().Str("user_id", s.UserID).Msg("dashboard session stopped")
}

// Close stops every active session
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		s.stop()
	}
	m.sessions = make(map[string]*DashboardSession)
}

func (s *DashboardSession) stop() {
	s.Portfolio.Stop()
	s.Trades.Stop()
	s.Strategies.Stop()
}
