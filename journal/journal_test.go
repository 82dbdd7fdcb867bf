package journal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/store/memstore"
	"github.com/rustyeddy/papertrade/trade"
)

func closedPosition(id string, entry time.Time, pnl, r float64) trade.Position {
	p := trade.Position{
		ID:         id,
		Status:     trade.StatusOpen,
		Side:       trade.Long,
		Symbol:     "FX:EURUSD",
		EntryTS:    entry,
		EntryPrice: 1.0850,
		StopPrice:  1.0800,
		TPPrice:    1.0950,
		Qty:        1000,
		StrategyID: trade.AIGeneratedStrategyID,
		MethodName: "ATR Trend",
	}
	_ = p.Close(entry.Add(4*time.Hour), 1.0875, pnl, r)
	return p
}

func seed(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()
	day := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SavePosition(ctx, s, closedPosition("p1", day, 2.5, 0.5)))
	require.NoError(t, store.SavePosition(ctx, s, closedPosition("p2", day.Add(24*time.Hour), -5, -1)))
	open := closedPosition("p3", day.Add(48*time.Hour), 0, 0)
	open.Status, open.ExitTS, open.ExitPrice, open.PnLGBP, open.RMultiple = trade.StatusOpen, nil, nil, nil, nil
	require.NoError(t, store.SavePosition(ctx, s, open))
	require.NoError(t, s.Set(ctx, trade.PositionsCollection, "broken", map[string]any{"status": "MAYBE"}))

	reason := "take profit hit"
	require.NoError(t, store.SaveExplanation(ctx, s, trade.Explanation{
		ID:                    "legacy-1",
		PositionID:            "p1",
		PlainEnglishEntry:     "Bought EUR/USD at 1.08500.",
		BeginnerFriendlyEntry: "We bought euros expecting them to rise.",
		ExitReason:            &reason,
	}))
	return s
}

func TestList(t *testing.T) {
	t.Parallel()
	s := seed(t)

	all, invalid, err := List(context.Background(), s, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, invalid)
	require.Len(t, all, 3)
	assert.Equal(t, "p3", all[0].Position.ID)
	assert.Equal(t, "p1", all[2].Position.ID)
	require.NotNil(t, all[2].Explanation)
	assert.Equal(t, "legacy-1", all[2].Explanation.ID)

	open, _, err := List(context.Background(), s, Filter{Status: trade.StatusOpen})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "p3", open[0].Position.ID)

	day, _, err := List(context.Background(), s, Filter{
		ClosedSince: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		ClosedUntil: time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, "p1", day[0].Position.ID)
}

func TestGet(t *testing.T) {
	t.Parallel()
	s := seed(t)

	e, err := Get(context.Background(), s, "p1")
	require.NoError(t, err)
	require.NotNil(t, e.Explanation)
	assert.Equal(t, "We bought euros expecting them to rise.", e.Explanation.BeginnerFriendlyEntry)

	e, err = Get(context.Background(), s, "p2")
	require.NoError(t, err)
	assert.Nil(t, e.Explanation)

	_, err = Get(context.Background(), s, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	s := seed(t)

	all, _, err := List(context.Background(), s, Filter{})
	require.NoError(t, err)
	st := Summarize(all)

	assert.Equal(t, 2, st.Closed)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.Equal(t, 2.5, st.GrossProfit)
	assert.Equal(t, 5.0, st.GrossLoss)
	assert.Equal(t, 0.5, st.ProfitFactor)
	assert.Equal(t, 0.5, st.WinRate())
	assert.Equal(t, -0.25, st.AvgR())
	assert.Contains(t, FormatStats(st), "profit factor: 0.50")
}

func TestFormatEntryOrg(t *testing.T) {
	t.Parallel()
	s := seed(t)

	e, err := Get(context.Background(), s, "p1")
	require.NoError(t, err)
	result := FormatEntryOrg(e)

	assert.Contains(t, result, "** LONG FX:EURUSD (p1) CLOSED")
	assert.Contains(t, result, ":PROPERTIES:")
	assert.Contains(t, result, ":ID: p1")
	assert.Contains(t, result, ":QTY: 1000")
	assert.Contains(t, result, ":ENTRY_PRICE: 1.08500")
	assert.Contains(t, result, ":EXIT_PRICE: 1.08750")
	assert.Contains(t, result, ":ENTRY_TIME: 2024-03-15T09:00:00Z")
	assert.Contains(t, result, ":EXIT_TIME: 2024-03-15T13:00:00Z")
	assert.Contains(t, result, ":PNL_GBP: 2.50")
	assert.Contains(t, result, ":R_MULTIPLE: 0.50")
	assert.Contains(t, result, ":END:")
	assert.Contains(t, result, "*** In plain words\nWe bought euros expecting them to rise.")
	assert.Contains(t, result, "*** Exit\ntake profit hit")
	assert.NotContains(t, result, ":BROKER_TRADE_ID:")
}

func TestFormatEntryOrgWithoutExplanation(t *testing.T) {
	t.Parallel()

	p := closedPosition("0123456789abcdef", time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC), 1, 0.2)
	result := FormatEntryOrg(Entry{Position: p})
	assert.Contains(t, result, "(01234567)")
	assert.Contains(t, result, "*** Entry\n- \n")

	both := FormatEntriesOrg([]Entry{{Position: p}, {Position: p}})
	assert.Equal(t, 2, strings.Count(both, ":PROPERTIES:"))
}
