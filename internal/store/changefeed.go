package store

import (
	"sync"

	"github.com/rs/zerolog"
)

// ChangeEvent describes a row change in a named table. UserID is set when
// the changed row is attributable to a user, so subscriptions can filter.
type ChangeEvent struct {
	Table  string `json:"table"`
	Op     string `json:"op"` // INSERT, UPDATE or DELETE
	RowID  string `json:"row_id"`
	UserID string `json:"user_id,omitempty"`
}

// FilterUser returns a subscription filter matching events for one user
func FilterUser(userID string) func(ChangeEvent) bool {
	return func(ev ChangeEvent) bool {
		return ev.UserID == userID
	}
}

// ChangeFeed is the remote store's change-subscription primitive: callbacks
// registered per table are invoked for every matching row change dispatched
// into the feed.
type ChangeFeed struct {
	log zerolog.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]*Subscription
}

// Subscription is a single registered change listener
type Subscription struct {
	id     int
	table  string
	filter func(ChangeEvent) bool
	fn     func(ChangeEvent)
	feed   *ChangeFeed
}

// NewChangeFeed creates an empty feed
func NewChangeFeed(log zerolog.Logger) *ChangeFeed {
	return &ChangeFeed{
		log:  log.With().Str("component", "changefeed").Logger(),
		subs: make(map[int]*Subscription),
	}
}

// Subscribe registers fn for changes on table. An empty table matches every
// table; a nil filter matches every event on the table.
func (f *ChangeFeed) Subscribe(table string, filter func(ChangeEvent) bool, fn func(ChangeEvent)) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	sub := &Subscription{
		id:     f.nextID,
		table:  table,
		filter: filter,
		fn:     fn,
		feed:   f,
	}
	f.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the listener. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.feed == nil {
		return
	}
	s.feed.mu.Lock()
	delete(s.feed.subs, s.id)
	s.feed.mu.Unlock()
	s.feed = nil
}

// Dispatch delivers the event to every matching subscription. Callbacks run
// on the caller's goroutine and must not block.
func (f *ChangeFeed) Dispatch(ev ChangeEvent) {
	f.mu.RLock()
	matched := make([]*Subscription, 0, len(f.subs))
	for _, sub := range f.subs {
		if sub.table != "" && sub.table != ev.Table {
			continue
		}
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		matched = append(matched, sub)
	}
	f.mu.RUnlock()

	f.log.Debug().Str("table", ev.Table).Str("op", ev.Op).Int("listeners", len(matched)).Msg("dispatching change event")
	for _, sub := range matched {
		sub.fn(ev)
	}
}
