// Package watch implements the dashboard's synchronization layer: one
// watcher per entity, each owning the fetch-on-start, subscribe-to-changes,
// refetch-on-event, unsubscribe-on-stop lifecycle.
package watch

import (
	"context"
	"sync"

	"tradedeck/internal/store"
)

// ChangeSource is the remote store's change-subscription primitive
type ChangeSource interface {
	Subscribe(table string, filter func(store.ChangeEvent) bool, fn func(store.ChangeEvent)) *store.Subscription
}

// ChangePublisher publishes row-change events after local writes. May be nil
// when no event transport is configured.
type ChangePublisher interface {
	PublishChange(ctx context.Context, ev store.ChangeEvent) error
}

// fetchGuard hands out monotonic sequence numbers for overlapping fetches.
// A response is applied only when it belongs to the most recently issued
// fetch, so a slow stale response can never overwrite a newer snapshot.
type fetchGuard struct {
	mu     sync.Mutex
	issued uint64
}

// begin registers a new fetch and returns its sequence number
func (g *fetchGuard) begin() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	return g.issued
}

// latest reports whether seq is the most recently issued fetch
func (g *fetchGuard) latest(seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return seq == g.issued
}
