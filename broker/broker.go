package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/papertrade/market"
)

// Broker translates trading intents into one broker's order protocol.
//
// No method retries. A PlaceMarketOrder that fails with ErrNetwork may or
// may not have reached the broker; callers look the order up by its client
// tag (Trade with "@"+tag) before deciding to submit again.
type Broker interface {
	MapSymbol(symbol string) (string, error)
	GetMidPrice(ctx context.Context, instrument string) (float64, error)
	PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (OrderFill, error)
	CloseTrade(ctx context.Context, tradeID string) (CloseResult, error)
	Trade(ctx context.Context, specifier string) (TradeState, error)
	Candles(ctx context.Context, instrument, granularity string, count int) ([]market.Candle, error)
}

type MarketOrderRequest struct {
	Instrument string
	Units      float64 // positive = long, negative = short
	StopLoss   float64
	TakeProfit float64
	ClientTag  string
}

type OrderFill struct {
	TradeID    string
	Instrument string
	Units      float64
	FillPrice  float64
	Time       time.Time
}

// CloseStatus is the outcome of a CloseTrade call.
type CloseStatus string

const (
	Closed        CloseStatus = "CLOSED"
	AlreadyClosed CloseStatus = "ALREADY_CLOSED"
)

type CloseResult struct {
	Status     CloseStatus
	TradeID    string
	Price      float64 // zero when AlreadyClosed
	RealizedPL float64
	Time       time.Time
}

// TradeState is the broker's view of one trade.
type TradeState struct {
	ID                string
	ClientID          string
	Instrument        string
	State             string // OPEN, CLOSED, CLOSE_WHEN_TRADEABLE
	InitialUnits      float64
	Price             float64
	AverageClosePrice float64
	RealizedPL        float64
	OpenTime          time.Time
	CloseTime         time.Time
}

func (t TradeState) IsOpen() bool { return t.State == "OPEN" }
