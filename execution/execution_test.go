package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/papertrade/backfill"
	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/explain"
	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/store/memstore"
	"github.com/rustyeddy/papertrade/trade"
)

var clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(b *fakeBroker, st store.Store) *Service {
	n := 0
	return New(b, st,
		WithIDs(func() string { n++; return fmt.Sprintf("tag-%d", n) }),
		WithClock(func() time.Time { return clock }),
	)
}

func TestOpenSynthesizedATR(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	mem := memstore.New()
	svc := newService(b, mem)

	got, err := svc.Open(context.Background(), OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long})
	require.NoError(t, err)

	require.Len(t, b.orders, 1)
	o := b.orders[0]
	assert.Equal(t, "EUR_USD", o.Instrument)
	assert.Equal(t, "tag-1", o.ClientTag)
	assert.InDelta(t, 1.0970, o.StopLoss, 1e-9)
	assert.InDelta(t, 1.1060, o.TakeProfit, 1e-9)
	assert.Equal(t, 1666.0, o.Units)

	p, err := store.LoadPosition(context.Background(), mem, "tag-1")
	require.NoError(t, err)
	assert.Equal(t, trade.StatusOpen, p.Status)
	assert.Equal(t, trade.Long, p.Side)
	assert.Equal(t, 1.1002, p.EntryPrice)
	assert.Equal(t, 1666.0, p.Qty)
	assert.Equal(t, trade.AIGeneratedStrategyID, p.StrategyID)
	assert.Equal(t, "AI Generated", p.MethodName)
	assert.Equal(t, "T100", p.BrokerTradeID)
	assert.Equal(t, "tag-1", p.ClientTag)
	assert.Equal(t, got.Position.ID, p.ID)

	e, err := store.LoadExplanation(context.Background(), mem, "tag-1")
	require.NoError(t, err)
	assert.Equal(t, "tag-1", e.PositionID)
	assert.True(t, e.NeedsBackfill())
	assert.Contains(t, e.PlainEnglishEntry, "Bought 1666 EUR/USD at 1.10020")
	assert.True(t, clock.Equal(e.CreatedTS))
}

func TestOpenSwingStrategyDocument(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	b.candles[len(b.candles)-3].Low = 1.0950
	mem := memstore.New()
	require.NoError(t, store.SaveStrategy(context.Background(), mem, trade.Strategy{
		ID:              "s1",
		Name:            "Swing Pullback",
		Timeframe:       "1H",
		RiskPerTradeGBP: 10,
		StopLogic:       trade.StopSwing,
		TakeProfitR:     3,
		FeeBps:          1.5,
		Enabled:         true,
	}))

	got, err := newService(b, mem).Open(context.Background(), OpenRequest{Symbol: "EUR/USD", Side: trade.Long, StrategyID: "s1"})
	require.NoError(t, err)

	o := b.orders[0]
	assert.InDelta(t, 1.0950, o.StopLoss, 1e-9)
	assert.InDelta(t, 1.1150, o.TakeProfit, 1e-9)
	assert.InDelta(t, 2000, o.Units, 1)
	assert.Equal(t, "s1", got.Position.StrategyID)
	assert.Equal(t, "Swing Pullback", got.Position.MethodName)
	assert.Equal(t, 1.5, got.Position.FeeBps)
}

func TestOpenShortExplicitLevels(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	_, err := newService(b, memstore.New()).Open(context.Background(), OpenRequest{
		Symbol:     "FX:EURUSD",
		Side:       trade.Short,
		Units:      1000,
		Stop:       1.1050,
		TakeProfit: 1.0900,
	})
	require.NoError(t, err)
	o := b.orders[0]
	assert.Equal(t, -1000.0, o.Units)
	assert.Equal(t, 1.1050, o.StopLoss)
	assert.Equal(t, 1.0900, o.TakeProfit)
}

func TestOpenRefusedBeforeSubmitting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		req   OpenRequest
		setup func(*testing.T, store.Store)
		want  error
	}{
		{
			name: "unsupported symbol",
			req:  OpenRequest{Symbol: "FX:BTCUSD", Side: trade.Long},
			want: broker.ErrUnsupportedSymbol,
		},
		{
			name: "missing side",
			req:  OpenRequest{Symbol: "FX:EURUSD"},
			want: trade.ErrValidation,
		},
		{
			name: "too many units",
			req:  OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long, Units: 1_000_000},
			want: trade.ErrValidation,
		},
		{
			name: "stop on the wrong side",
			req:  OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long, Units: 100, Stop: 1.2},
			want: trade.ErrValidation,
		},
		{
			name: "unknown strategy",
			req:  OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long, StrategyID: "nope"},
			want: store.ErrNotFound,
		},
		{
			name: "disabled strategy",
			req:  OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long, StrategyID: "off"},
			setup: func(t *testing.T, s store.Store) {
				require.NoError(t, store.SaveStrategy(context.Background(), s, trade.Strategy{ID: "off", Name: "Off", Enabled: false}))
			},
			want: trade.ErrValidation,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := newFakeBroker()
			mem := memstore.New()
			if tt.setup != nil {
				tt.setup(t, mem)
			}
			_, err := newService(b, mem).Open(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, b.orders)
		})
	}
}

func TestOpenRejected(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	b.orderErr = &broker.Error{Kind: broker.ErrOrderRejected, Op: "place market order", Reason: "INSUFFICIENT_MARGIN", Status: 201}
	mem := memstore.New()

	_, err := newService(b, mem).Open(context.Background(), OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long})
	require.ErrorIs(t, err, broker.ErrOrderRejected)
	assert.Equal(t, "INSUFFICIENT_MARGIN", broker.Reason(err))

	var unknown *UnknownOutcomeError
	assert.False(t, errors.As(err, &unknown))
	docs, _ := mem.Query(context.Background(), trade.PositionsCollection, store.QueryOptions{})
	assert.Empty(t, docs)
}

// A lost acknowledgement must surface as unknown and must not be resubmitted.
func TestOpenNetworkErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	b.orderErr = &broker.Error{Kind: broker.ErrNetwork, Op: "place market order", Err: context.DeadlineExceeded}
	mem := memstore.New()

	_, err := newService(b, mem).Open(context.Background(), OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long})

	var unknown *UnknownOutcomeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "tag-1", unknown.ClientTag)
	assert.ErrorIs(t, err, broker.ErrNetwork)
	assert.Len(t, b.orders, 1)

	docs, _ := mem.Query(context.Background(), trade.PositionsCollection, store.QueryOptions{})
	assert.Empty(t, docs)
}

func TestOpenNotSentIsPlainFailure(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	b.orderErr = &broker.Error{Kind: broker.ErrNotSent, Op: "place order", Err: context.DeadlineExceeded}

	_, err := newService(b, memstore.New()).Open(context.Background(), OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long})
	require.ErrorIs(t, err, broker.ErrNotSent)

	var unknown *UnknownOutcomeError
	assert.False(t, errors.As(err, &unknown))
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	mem := memstore.New()
	svc := newService(b, mem)
	ctx := context.Background()

	got, err := svc.Reconcile(ctx, "lost", OpenRequest{})
	require.NoError(t, err)
	assert.False(t, got.Placed)

	b.trades["@lost"] = broker.TradeState{
		ID:           "T7",
		ClientID:     "lost",
		Instrument:   "GBP_USD",
		State:        "OPEN",
		InitialUnits: -500,
		Price:        1.2650,
		OpenTime:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	got, err = svc.Reconcile(ctx, "lost", OpenRequest{Stop: 1.2700})
	require.NoError(t, err)
	assert.True(t, got.Placed)
	assert.True(t, got.Recorded)
	assert.Equal(t, "FX:GBPUSD", got.Position.Symbol)
	assert.Equal(t, trade.Short, got.Position.Side)
	assert.Equal(t, 500.0, got.Position.Qty)
	assert.Equal(t, "T7", got.Position.BrokerTradeID)

	p, err := store.LoadPosition(ctx, mem, "lost")
	require.NoError(t, err)
	assert.Equal(t, 1.2650, p.EntryPrice)
	assert.Equal(t, 1.2700, p.StopPrice)

	again, err := svc.Reconcile(ctx, "lost", OpenRequest{})
	require.NoError(t, err)
	assert.True(t, again.Placed)
	assert.False(t, again.Recorded)
	assert.Empty(t, b.orders)
}

// flakyStore fails explanation writes while failExplanations is set.
type flakyStore struct {
	store.Store
	failExplanations bool
}

func (f *flakyStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if f.failExplanations && collection == trade.ExplanationsCollection {
		return fmt.Errorf("%w: write refused", store.ErrPersistence)
	}
	return f.Store.Set(ctx, collection, id, data)
}

func TestReconcileRecordsMissingExplanation(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	fs := &flakyStore{Store: memstore.New(), failExplanations: true}
	svc := newService(b, fs)
	ctx := context.Background()

	opened, err := svc.Open(ctx, OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long, Units: 1000, Stop: 1.0950, TakeProfit: 1.1100})
	require.ErrorIs(t, err, store.ErrPersistence)
	assert.Equal(t, "T100", opened.Fill.TradeID)

	_, err = store.LoadPosition(ctx, fs, "tag-1")
	require.NoError(t, err)
	_, err = store.LoadExplanation(ctx, fs, "tag-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	b.trades["@tag-1"] = broker.TradeState{ID: "T100", ClientID: "tag-1", Instrument: "EUR_USD", State: "OPEN", InitialUnits: 1000, Price: 1.1002}

	// still failing: reported, nothing claimed
	_, err = svc.Reconcile(ctx, "tag-1", OpenRequest{})
	require.ErrorIs(t, err, store.ErrPersistence)

	fs.failExplanations = false
	got, err := svc.Reconcile(ctx, "tag-1", OpenRequest{})
	require.NoError(t, err)
	assert.True(t, got.Placed)
	assert.True(t, got.Recorded)
	assert.Equal(t, "tag-1", got.Position.ID)

	e, err := store.LoadExplanation(ctx, fs, "tag-1")
	require.NoError(t, err)
	assert.Equal(t, "tag-1", e.PositionID)
	assert.Contains(t, e.PlainEnglishEntry, "Bought")
	assert.True(t, e.NeedsBackfill())

	again, err := svc.Reconcile(ctx, "tag-1", OpenRequest{})
	require.NoError(t, err)
	assert.False(t, again.Recorded)
	assert.Len(t, b.orders, 1)
}

func TestClose(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	mem := memstore.New()
	svc := newService(b, mem)
	ctx := context.Background()

	_, err := svc.Open(ctx, OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long, Units: 1000, Stop: 1.0950, TakeProfit: 1.1100})
	require.NoError(t, err)

	b.closeResult = broker.CloseResult{
		Status:     broker.Closed,
		Price:      1.1052,
		RealizedPL: 5.0,
		Time:       time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC),
	}
	got, err := svc.Close(ctx, "tag-1", "")
	require.NoError(t, err)
	assert.Equal(t, broker.Closed, got.Status)
	assert.Equal(t, []string{"T100"}, b.closes)

	p, err := store.LoadPosition(ctx, mem, "tag-1")
	require.NoError(t, err)
	assert.Equal(t, trade.StatusClosed, p.Status)
	require.NotNil(t, p.ExitPrice)
	assert.Equal(t, 1.1052, *p.ExitPrice)
	require.NotNil(t, p.PnLGBP)
	assert.Equal(t, 5.0, *p.PnLGBP)
	// risk is |1.1002 - 1.0950| * 1000 = 5.20
	require.NotNil(t, p.RMultiple)
	assert.Equal(t, 0.96, *p.RMultiple)

	e, err := store.LoadExplanation(ctx, mem, "tag-1")
	require.NoError(t, err)
	require.NotNil(t, e.ExitReason)
	assert.Equal(t, "closed manually", *e.ExitReason)
	assert.Contains(t, e.PlainEnglishEntry, "Bought")

	_, err = svc.Close(ctx, "tag-1", "")
	assert.ErrorIs(t, err, trade.ErrValidation)
	assert.Len(t, b.closes, 1)
}

func TestCloseWritesExitReasonToLinkedExplanation(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	mem := memstore.New()
	svc := newService(b, mem)
	ctx := context.Background()

	require.NoError(t, store.SavePosition(ctx, mem, trade.Position{
		ID:            "pos-old",
		Status:        trade.StatusOpen,
		Side:          trade.Long,
		Symbol:        "FX:EURUSD",
		EntryTS:       time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		EntryPrice:    1.0800,
		StopPrice:     1.0750,
		TPPrice:       1.0900,
		Qty:           1000,
		StrategyID:    trade.AIGeneratedStrategyID,
		BrokerTradeID: "T55",
	}))
	require.NoError(t, store.SaveExplanation(ctx, mem, trade.Explanation{
		ID:                "expl-legacy",
		PositionID:        "pos-old",
		PlainEnglishEntry: "Bought EUR/USD.",
	}))

	b.closeResult = broker.CloseResult{Status: broker.Closed, Price: 1.0850, RealizedPL: 5.0}
	_, err := svc.Close(ctx, "pos-old", "target reached early")
	require.NoError(t, err)

	e, err := store.LoadExplanation(ctx, mem, "expl-legacy")
	require.NoError(t, err)
	require.NotNil(t, e.ExitReason)
	assert.Equal(t, "target reached early", *e.ExitReason)

	_, err = mem.Get(ctx, trade.ExplanationsCollection, "pos-old")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCloseAlreadyClosedAtBroker(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	mem := memstore.New()
	svc := newService(b, mem)
	ctx := context.Background()

	_, err := svc.Open(ctx, OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long, Units: 1000, Stop: 1.0950, TakeProfit: 1.1100})
	require.NoError(t, err)

	b.closeResult = broker.CloseResult{Status: broker.AlreadyClosed}
	b.trades["T100"] = broker.TradeState{
		ID:                "T100",
		State:             "CLOSED",
		AverageClosePrice: 1.1100,
		RealizedPL:        9.8,
		CloseTime:         time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
	}

	got, err := svc.Close(ctx, "tag-1", "")
	require.NoError(t, err)
	assert.Equal(t, broker.AlreadyClosed, got.Status)
	assert.Equal(t, 1.1100, *got.Position.ExitPrice)
	assert.Equal(t, 9.8, *got.Position.PnLGBP)

	e, err := store.LoadExplanation(ctx, mem, "tag-1")
	require.NoError(t, err)
	assert.Equal(t, "take profit hit", *e.ExitReason)
}

func TestCloseBrokerRejection(t *testing.T) {
	t.Parallel()

	b := newFakeBroker()
	mem := memstore.New()
	svc := newService(b, mem)
	ctx := context.Background()

	_, err := svc.Open(ctx, OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long, Units: 1000, Stop: 1.0950})
	require.NoError(t, err)

	b.closeErr = &broker.Error{Kind: broker.ErrOrderRejected, Op: "close trade", Reason: "MARKET_HALTED", Status: 400}
	_, err = svc.Close(ctx, "tag-1", "")
	require.ErrorIs(t, err, broker.ErrOrderRejected)

	p, err := store.LoadPosition(ctx, mem, "tag-1")
	require.NoError(t, err)
	assert.True(t, p.IsOpen())
}

func TestOpenedPositionIsBackfilled(t *testing.T) {
	t.Parallel()

	mem := memstore.New()
	_, err := newService(newFakeBroker(), mem).Open(context.Background(), OpenRequest{Symbol: "FX:EURUSD", Side: trade.Long})
	require.NoError(t, err)

	sum, err := backfill.New(mem, explain.Template{}, backfill.WithDelay(0)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Updated)

	e, err := store.LoadExplanation(context.Background(), mem, "tag-1")
	require.NoError(t, err)
	assert.False(t, e.NeedsBackfill())
}

func TestExitReason(t *testing.T) {
	t.Parallel()

	p := trade.Position{StopPrice: 1.0950, TPPrice: 1.1100}
	assert.Equal(t, "take profit hit", exitReason(p, 1.1098))
	assert.Equal(t, "stop loss hit", exitReason(p, 1.0951))
	assert.Equal(t, "closed at broker", exitReason(p, 0))
}
