package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedeck/internal/models"
	"tradedeck/internal/store"
)

type mockStrategiesStore struct {
	mu         sync.Mutex
	strategies []store.StrategyRecord
	inserted   []store.StrategyRecord
	fetches    int
}

func (m *mockStrategiesStore) StrategiesByUser(_ context.Context, _ string) ([]store.StrategyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	return m.strategies, nil
}

func (m *mockStrategiesStore) InsertStrategy(_ context.Context, s *store.StrategyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = "generated-id"
	m.inserted = append(m.inserted, *s)
	return nil
}

func (m *mockStrategiesStore) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches
}

func TestStrategiesWatcher_Refetch(t *testing.T) {
	st := &mockStrategiesStore{
		strategies: []store.StrategyRecord{
			{ID: "s1", Name: "Momentum", Status: "ACTIVE", Performance: []byte(`{"totalReturn":5}`)},
			{ID: "s2", Name: "Mean Reversion", Status: "PAUSED"},
		},
	}
	w := NewStrategiesWatcher("u1", st, store.NewChangeFeed(zerolog.Nop()), nil, zerolog.Nop())

	snap := w.Refetch(context.Background())

	require.Len(t, snap.Strategies, 2)
	assert.Equal(t, "Momentum", snap.Strategies[0].Name)
	assert.Equal(t, 5.0, snap.Strategies[0].Performance.TotalReturn)
	// Missing metrics come through as zero values, never nulls
	assert.Equal(t, models.StrategyPerformance{}, snap.Strategies[1].Performance)
	assert.False(t, snap.Loading)
}

func TestStrategiesWatcher_ChangeEventsFilteredByUser(t *testing.T) {
	st := &mockStrategiesStore{}
	feed := store.NewChangeFeed(zerolog.Nop())
	w := NewStrategiesWatcher("u1", st, feed, nil, zerolog.Nop())
	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool { return st.fetchCount() >= 1 }, time.Second, time.Millisecond)
	before := st.fetchCount()

	feed.Dispatch(store.ChangeEvent{Table: "strategies", Op: "INSERT", UserID: "someone-else"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, st.fetchCount())

	feed.Dispatch(store.ChangeEvent{Table: "strategies", Op: "INSERT", UserID: "u1"})
	require.Eventually(t, func() bool { return st.fetchCount() > before }, time.Second, time.Millisecond)
}

func TestStrategiesWatcher_CreateStrategy(t *testing.T) {
	st := &mockStrategiesStore{}
	pub := &mockPublisher{}
	w := NewStrategiesWatcher("u1", st, store.NewChangeFeed(zerolog.Nop()), pub, zerolog.Nop())

	rec, err := w.CreateStrategy(context.Background(), CreateStrategyRequest{
		Name:        "Momentum",
		Description: "trend following",
		Performance: models.StrategyPerformance{TotalReturn: 12.5, WinRate: 0.6},
	})
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.Len(t, st.inserted, 1)
	ins := st.inserted[0]
	assert.Equal(t, "u1", ins.UserID)
	// Missing status defaults to ACTIVE
	assert.Equal(t, "ACTIVE", ins.Status)
	assert.JSONEq(t, `{"totalReturn":12.5,"winRate":0.6,"sharpeRatio":0,"maxDrawdown":0}`, string(ins.Performance))

	events := pub.published()
	require.Len(t, events, 1)
	assert.Equal(t, "strategies", events[0].Table)
	assert.Equal(t, "u1", events[0].UserID)
}

func TestStrategiesWatcher_CreateStrategy_NoUser(t *testing.T) {
	w := NewStrategiesWatcher("", &mockStrategiesStore{}, store.NewChangeFeed(zerolog.Nop()), nil, zerolog.Nop())

	_, err := w.CreateStrategy(context.Background(), CreateStrategyRequest{Name: "Momentum"})
	require.ErrorIs(t, err, ErrNoUser)
}
