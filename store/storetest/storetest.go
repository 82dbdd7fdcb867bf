// Package storetest holds the behaviour every store.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises s against the store.Store contract.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("get missing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), "explanations", "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, err, trade.ErrNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

		require.NoError(t, s.Set(ctx, "positions", "p1", map[string]any{
			"symbol":      "FX:EURUSD",
			"entry_price": 1.0923,
			"entry_ts":    ts,
			"exit_ts":     nil,
		}))

		doc, err := s.Get(ctx, "positions", "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", doc.ID)
		assert.Equal(t, "FX:EURUSD", doc.Data["symbol"])
		assert.Equal(t, 1.0923, doc.Data["entry_price"])
		assert.Contains(t, doc.Data, "exit_ts")
		assert.Nil(t, doc.Data["exit_ts"])
	})

	t.Run("merge keeps other fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "explanations", "e1", map[string]any{
			"position_id":             "p1",
			"plain_english_entry":     "Bought EUR/USD.",
			"beginner_friendly_entry": "",
			"exit_reason":             "take profit",
			"model_notes":             "v1",
		}))
		require.NoError(t, s.SetMerge(ctx, "explanations", "e1", map[string]any{
			"beginner_friendly_entry": "We bought euros with dollars.",
		}))

		doc, err := s.Get(ctx, "explanations", "e1")
		require.NoError(t, err)
		assert.Equal(t, "We bought euros with dollars.", doc.Data["beginner_friendly_entry"])
		assert.Equal(t, "Bought EUR/USD.", doc.Data["plain_english_entry"])
		assert.Equal(t, "take profit", doc.Data["exit_reason"])
		assert.Equal(t, "v1", doc.Data["model_notes"])
		assert.Equal(t, "p1", doc.Data["position_id"])
	})

	t.Run("merge creates missing document", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.SetMerge(ctx, "explanations", "new", map[string]any{"model_notes": "x"}))
		doc, err := s.Get(ctx, "explanations", "new")
		require.NoError(t, err)
		assert.Equal(t, "x", doc.Data["model_notes"])
	})

	t.Run("query all, ordered, limited", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for id, n := range map[string]float64{"a": 3, "b": 1, "c": 2} {
			require.NoError(t, s.Set(ctx, "positions", id, map[string]any{"qty": n}))
		}
		require.NoError(t, s.Set(ctx, "strategies", "other", map[string]any{"qty": 9.0}))

		all, err := s.Query(ctx, "positions", store.QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		ordered, err := s.Query(ctx, "positions", store.QueryOptions{OrderBy: "qty"})
		require.NoError(t, err)
		require.Len(t, ordered, 3)
		assert.Equal(t, []string{"b", "c", "a"}, ids(ordered))

		top, err := s.Query(ctx, "positions", store.QueryOptions{OrderBy: "qty", Descending: true, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "c"}, ids(top))

		empty, err := s.Query(ctx, "nothing-here", store.QueryOptions{})
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Set(ctx, "positions", "p1", map[string]any{"qty": 1.0}))
		require.NoError(t, s.Delete(ctx, "positions", "p1"))
		_, err := s.Get(ctx, "positions", "p1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, s.Delete(ctx, "positions", "p1"))
	})

	t.Run("typed round trip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		p := trade.Position{
			ID:         "p9",
			Status:     trade.StatusOpen,
			Side:       trade.Short,
			Symbol:     "FX:GBPUSD",
			EntryTS:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			EntryPrice: 1.2650,
			StopPrice:  1.2700,
			TPPrice:    1.2550,
			Qty:        5000,
			StrategyID: trade.AIGeneratedStrategyID,
		}
		require.NoError(t, store.SavePosition(ctx, s, p))

		got, err := store.LoadPosition(ctx, s, "p9")
		require.NoError(t, err)
		assert.Equal(t, p.Side, got.Side)
		assert.Equal(t, p.EntryPrice, got.EntryPrice)
		assert.True(t, p.EntryTS.Equal(got.EntryTS))
		assert.Nil(t, got.ExitTS)
	})
}

func ids(docs []store.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}
