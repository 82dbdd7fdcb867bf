package trade

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positionDoc() map[string]any {
	return map[string]any{
		"status":       "OPEN",
		"side":         "LONG",
		"symbol":       "FX:EURUSD",
		"entry_ts":     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		"entry_price":  1.0923,
		"stop_price":   1.0880,
		"tp_price":     1.1009,
		"qty":          int64(10000),
		"strategy_id":  "ai-generated",
		"slippage_bps": 1.0,
		"fee_bps":      0.5,
		"method_name":  "Demo Seed",
		"exit_ts":      nil,
	}
}

func TestParseEnums(t *testing.T) {
	t.Parallel()

	s, err := ParseStatus("closed")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, s)

	side, err := ParseSide("short")
	require.NoError(t, err)
	assert.Equal(t, Short, side)
	assert.Equal(t, -1.0, side.Sign())

	l, err := ParseStopLogic("swing")
	require.NoError(t, err)
	assert.Equal(t, StopSwing, l)

	_, err = ParseStatus("PENDING")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseSide("sideways")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseStopLogic("FIBONACCI")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecodePosition(t *testing.T) {
	t.Parallel()

	p, err := DecodePosition("pos-1", positionDoc())
	require.NoError(t, err)
	assert.Equal(t, "pos-1", p.ID)
	assert.Equal(t, StatusOpen, p.Status)
	assert.Equal(t, Long, p.Side)
	assert.Equal(t, 10000.0, p.Qty)
	assert.Equal(t, 1.0923, p.EntryPrice)
	assert.Nil(t, p.ExitTS)
	assert.False(t, p.HasStrategyDoc())
	assert.True(t, p.IsOpen())
}

func TestDecodePosition_MissingPricesAreNaN(t *testing.T) {
	t.Parallel()

	doc := positionDoc()
	delete(doc, "entry_price")
	doc["stop_price"] = nil

	p, err := DecodePosition("pos-2", doc)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(p.EntryPrice))
	assert.True(t, math.IsNaN(p.StopPrice))

	f := p.Fields()
	assert.NotContains(t, f, "entry_price")
	assert.NotContains(t, f, "stop_price")
}

func TestDecodePosition_RejectsBadEnums(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"bad status", "status", "PENDING"},
		{"bad side", "side", "FLAT"},
		{"missing status", "status", nil},
		{"negative fee", "fee_bps", -2.0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := positionDoc()
			doc[tt.key] = tt.value
			_, err := DecodePosition("pos", doc)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestPositionClose(t *testing.T) {
	t.Parallel()

	p, err := DecodePosition("pos-3", positionDoc())
	require.NoError(t, err)

	ts := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	require.NoError(t, p.Close(ts, 1.1009, 86, 2))
	assert.Equal(t, StatusClosed, p.Status)
	require.NotNil(t, p.ExitPrice)
	assert.Equal(t, 1.1009, *p.ExitPrice)
	assert.Equal(t, 86.0, *p.PnLGBP)
	assert.Equal(t, 2.0, *p.RMultiple)
	assert.Equal(t, ts, *p.ExitTS)

	err = p.Close(ts.Add(time.Hour), 1.2, 1, 1)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1.1009, *p.ExitPrice, "second close must not change exit fields")

	f := p.ExitFields()
	assert.Equal(t, "CLOSED", f["status"])
	assert.Equal(t, 86.0, f["pnl_gbp"])
}

func TestDecodeStrategy(t *testing.T) {
	t.Parallel()

	s, err := DecodeStrategy("s1", map[string]any{
		"name":          "London Breakout",
		"stop_logic":    "swing",
		"atr_mult":      2.0,
		"take_profit_R": 3,
		"enabled":       true,
	})
	require.NoError(t, err)
	assert.Equal(t, StopSwing, s.StopLogic)
	assert.Equal(t, 3.0, s.TakeProfitR)

	_, err = DecodeStrategy("s2", map[string]any{"stop_logic": "MAGIC"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DecodeStrategy("s3", map[string]any{"risk_per_trade_gbp": -1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecodeExplanation(t *testing.T) {
	t.Parallel()

	e, err := DecodeExplanation("e1", map[string]any{
		"position_id":             "pos-1",
		"plain_english_entry":     "Bought EUR/USD on a breakout.",
		"beginner_friendly_entry": "   ",
	})
	require.NoError(t, err)
	assert.True(t, e.NeedsBackfill())
	assert.Nil(t, e.ExitReason)

	e.BeginnerFriendlyEntry = "We bought euros."
	assert.False(t, e.NeedsBackfill())

	_, err = DecodeExplanation("e2", map[string]any{"plain_english_entry": "x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDecode_LenientTimestamps(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   any
		want time.Time
	}{
		{name: "time value", ts: want, want: want},
		{name: "rfc3339", ts: "2024-03-01T09:00:00Z", want: want},
		{name: "rfc3339 with offset", ts: "2024-03-01T10:00:00+01:00", want: want},
		{name: "space separated", ts: "2024-03-01 09:00:00", want: want},
		{name: "date only", ts: "2024-03-01", want: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "epoch millis int64", ts: int64(1709283600000), want: want},
		{name: "epoch millis float", ts: float64(1709283600000), want: want},
		{name: "epoch millis string", ts: "1709283600000", want: want},
		{name: "unreadable", ts: "last tuesday", want: time.Time{}},
		{name: "wrong type", ts: true, want: time.Time{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc := positionDoc()
			doc["entry_ts"] = tt.ts
			p, err := DecodePosition("pos-1", doc)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(p.EntryTS), "entry_ts = %v", p.EntryTS)

			e, err := DecodeExplanation("e1", map[string]any{
				"position_id": "pos-1",
				"created_ts":  tt.ts,
			})
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(e.CreatedTS), "created_ts = %v", e.CreatedTS)
		})
	}
}

func TestDecodePosition_UnreadableExitTSIsNil(t *testing.T) {
	t.Parallel()

	doc := positionDoc()
	doc["exit_ts"] = "not a time"
	p, err := DecodePosition("pos-1", doc)
	require.NoError(t, err)
	assert.Nil(t, p.ExitTS)

	doc["exit_ts"] = int64(1709287200000)
	p, err = DecodePosition("pos-1", doc)
	require.NoError(t, err)
	require.NotNil(t, p.ExitTS)
	assert.True(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC).Equal(*p.ExitTS))
}
