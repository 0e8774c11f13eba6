package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeFeed_DispatchToMatchingTable(t *testing.T) {
	feed := NewChangeFeed(zerolog.Nop())

	var got []ChangeEvent
	feed.Subscribe("trades", nil, func(ev ChangeEvent) { got = append(got, ev) })

	feed.Dispatch(ChangeEvent{Table: "trades", Op: "INSERT", RowID: "t1"})
	feed.Dispatch(ChangeEvent{Table: "portfolios", Op: "UPDATE", RowID: "p1"})

	require.Len(t, got, 1)
	assert.Equal(t, "t1", got[0].RowID)
}

func TestChangeFeed_WildcardTable(t *testing.T) {
	feed := NewChangeFeed(zerolog.Nop())

	var got []ChangeEvent
	feed.Subscribe("", nil, func(ev ChangeEvent) { got = append(got, ev) })

	feed.Dispatch(ChangeEvent{Table: "trades", Op: "INSERT"})
	feed.Dispatch(ChangeEvent{Table: "strategies", Op: "DELETE"})

	assert.Len(t, got, 2)
}

func TestChangeFeed_UserFilter(t *testing.T) {
	feed := NewChangeFeed(zerolog.Nop())

	var got []ChangeEvent
	feed.Subscribe("portfolios", FilterUser("u1"), func(ev ChangeEvent) { got = append(got, ev) })

	feed.Dispatch(ChangeEvent{Table: "portfolios", Op: "UPDATE", UserID: "u1"})
	feed.Dispatch(ChangeEvent{Table: "portfolios", Op: "UPDATE", UserID: "u2"})
	feed.Dispatch(ChangeEvent{Table: "portfolios", Op: "UPDATE"})

	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].UserID)
}

func TestChangeFeed_MultipleSubscribers(t *testing.T) {
	feed := NewChangeFeed(zerolog.Nop())

	var a, b int
	feed.Subscribe("trades", nil, func(ChangeEvent) { a++ })
	feed.Subscribe("trades", nil, func(ChangeEvent) { b++ })

	feed.Dispatch(ChangeEvent{Table: "trades", Op: "INSERT"})
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestChangeFeed_Unsubscribe(t *testing.T) {
	feed := NewChangeFeed(zerolog.Nop())

	var calls int
	sub := feed.Subscribe("trades", nil, func(ChangeEvent) { calls++ })

	feed.Dispatch(ChangeEvent{Table: "trades", Op: "INSERT"})
	sub.Unsubscribe()
	feed.Dispatch(ChangeEvent{Table: "trades", Op: "INSERT"})

	assert.Equal(t, 1, calls)
}

func TestChangeFeed_UnsubscribeTwiceIsSafe(t *testing.T) {
	feed := NewChangeFeed(zerolog.Nop())
	sub := feed.Subscribe("trades", nil, func(ChangeEvent) {})

	sub.Unsubscribe()
	assert.NotPanics(t, func() { sub.Unsubscribe() })

	var nilSub *Subscription
	assert.NotPanics(t, func() { nilSub.Unsubscribe() })
}
