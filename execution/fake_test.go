package execution

import (
	"context"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/market"
)

// fakeBroker records calls and answers from its fields.
type fakeBroker struct {
	mid     float64
	candles []market.Candle

	fillPrice float64
	orderErr  error
	orders    []broker.MarketOrderRequest

	closeResult broker.CloseResult
	closeErr    error
	closes      []string

	trades   map[string]broker.TradeState
	tradeErr error
}

var _ broker.Broker = (*fakeBroker)(nil)

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		mid:       1.1000,
		candles:   flatCandles(30, 1.1000, 0.0010),
		fillPrice: 1.1002,
		trades:    map[string]broker.TradeState{},
	}
}

// flatCandles gives every candle a true range of 2*half.
func flatCandles(n int, mid, half float64) []market.Candle {
	out := make([]market.Candle, n)
	t0 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = market.Candle{Open: mid, High: mid + half, Low: mid - half, Close: mid, Time: t0.Add(time.Duration(i) * time.Hour)}
	}
	return out
}

func (f *fakeBroker) MapSymbol(symbol string) (string, error) {
	name, err := market.Instrument(symbol)
	if err != nil {
		return "", &broker.Error{Kind: broker.ErrUnsupportedSymbol, Op: "map symbol", Reason: symbol}
	}
	return name, nil
}

func (f *fakeBroker) GetMidPrice(context.Context, string) (float64, error) {
	return f.mid, nil
}

func (f *fakeBroker) PlaceMarketOrder(_ context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	f.orders = append(f.orders, req)
	if f.orderErr != nil {
		return broker.OrderFill{}, f.orderErr
	}
	return broker.OrderFill{
		TradeID:    "T100",
		Instrument: req.Instrument,
		Units:      req.Units,
		FillPrice:  f.fillPrice,
		Time:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeBroker) CloseTrade(_ context.Context, tradeID string) (broker.CloseResult, error) {
	f.closes = append(f.closes, tradeID)
	if f.closeErr != nil {
		return broker.CloseResult{}, f.closeErr
	}
	res := f.closeResult
	res.TradeID = tradeID
	return res, nil
}

func (f *fakeBroker) Trade(_ context.Context, specifier string) (broker.TradeState, error) {
	if f.tradeErr != nil {
		return broker.TradeState{}, f.tradeErr
	}
	st, ok := f.trades[specifier]
	if !ok {
		return broker.TradeState{}, &broker.Error{Kind: broker.ErrTradeNotFound, Op: "get trade", Status: 404}
	}
	return st, nil
}

func (f *fakeBroker) Candles(context.Context, string, string, int) ([]market.Candle, error) {
	return f.candles, nil
}
