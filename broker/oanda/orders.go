package oanda

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/market"
)

type priceDetails struct {
	Price string `json:"price"`
}

type clientExtensions struct {
	ID      string `json:"id,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Comment string `json:"comment,omitempty"`
}

type marketOrder struct {
	Type                  string            `json:"type"`
	Instrument            string            `json:"instrument"`
	Units                 string            `json:"units"`
	TimeInForce           string            `json:"timeInForce"`
	PositionFill          string            `json:"positionFill"`
	StopLossOnFill        *priceDetails     `json:"stopLossOnFill,omitempty"`
	TakeProfitOnFill      *priceDetails     `json:"takeProfitOnFill,omitempty"`
	ClientExtensions      *clientExtensions `json:"clientExtensions,omitempty"`
	TradeClientExtensions *clientExtensions `json:"tradeClientExtensions,omitempty"`
}

type orderRequest struct {
	Order marketOrder `json:"order"`
}

type transaction struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Time         string `json:"time"`
	Reason       string `json:"reason"`
	RejectReason string `json:"rejectReason"`
}

type tradeOpen struct {
	TradeID string `json:"tradeID"`
	Units   string `json:"units"`
	Price   string `json:"price"`
}

type tradeReduce struct {
	TradeID    string `json:"tradeID"`
	Units      string `json:"units"`
	Price      string `json:"price"`
	RealizedPL string `json:"realizedPL"`
}

type fillTransaction struct {
	transaction
	Instrument   string        `json:"instrument"`
	Units        string        `json:"units"`
	Price        string        `json:"price"`
	PL           string        `json:"pl"`
	TradeOpened  *tradeOpen    `json:"tradeOpened"`
	TradesClosed []tradeReduce `json:"tradesClosed"`
}

type orderResponse struct {
	OrderCreateTransaction *transaction     `json:"orderCreateTransaction"`
	OrderFillTransaction   *fillTransaction `json:"orderFillTransaction"`
	OrderCancelTransaction *transaction     `json:"orderCancelTransaction"`
	RelatedTransactionIDs  []string         `json:"relatedTransactionIDs"`
}

// PlaceMarketOrder submits a fill-or-kill market order with attached stop
// loss and take profit. The client tag becomes the trade's client id so the
// trade can later be found with Trade(ctx, "@"+tag).
func (c *Client) PlaceMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	const op = "place order"

	meta, ok := market.Instruments[req.Instrument]
	if !ok {
		return broker.OrderFill{}, &broker.Error{Kind: broker.ErrUnsupportedSymbol, Op: op, Reason: req.Instrument}
	}
	// OANDA takes whole units; anything that rounds to zero is no order
	if math.Round(req.Units) == 0 {
		return broker.OrderFill{}, &broker.Error{Kind: broker.ErrOrderRejected, Op: op, Reason: "UNITS_ZERO"}
	}

	order := marketOrder{
		Type:         "MARKET",
		Instrument:   req.Instrument,
		Units:        strconv.FormatFloat(req.Units, 'f', 0, 64),
		TimeInForce:  "FOK",
		PositionFill: "OPEN_ONLY",
	}
	if req.StopLoss > 0 {
		order.StopLossOnFill = &priceDetails{Price: meta.FormatPrice(req.StopLoss)}
	}
	if req.TakeProfit > 0 {
		order.TakeProfitOnFill = &priceDetails{Price: meta.FormatPrice(req.TakeProfit)}
	}
	if req.ClientTag != "" {
		order.ClientExtensions = &clientExtensions{ID: req.ClientTag, Tag: "papertrade"}
		order.TradeClientExtensions = &clientExtensions{ID: req.ClientTag, Tag: "papertrade"}
	}

	resp, err := c.do(ctx, http.MethodPost, c.accountPath("/orders"), nil, orderRequest{Order: order})
	if err != nil {
		return broker.OrderFill{}, transportError(op, err)
	}

	switch {
	case resp.status >= 500:
		return broker.OrderFill{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Reason: parseAPIError(resp.body).reason()}
	case resp.status >= 400:
		return broker.OrderFill{}, &broker.Error{Kind: broker.ErrOrderRejected, Op: op, Status: resp.status, Reason: parseAPIError(resp.body).reason()}
	}

	var or orderResponse
	if err := json.Unmarshal(resp.body, &or); err != nil {
		// The broker answered 2xx but the acknowledgement is unreadable.
		return broker.OrderFill{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Err: err}
	}

	fill := or.OrderFillTransaction
	if fill == nil || fill.TradeOpened == nil {
		if or.OrderCancelTransaction != nil {
			return broker.OrderFill{}, &broker.Error{Kind: broker.ErrOrderRejected, Op: op, Status: resp.status, Reason: or.OrderCancelTransaction.Reason}
		}
		return broker.OrderFill{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Reason: "NO_FILL_IN_RESPONSE"}
	}

	price, err := parseFloat(firstNonEmpty(fill.TradeOpened.Price, fill.Price))
	if err != nil {
		return broker.OrderFill{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Reason: "BAD_FILL_PRICE", Err: err}
	}
	units, err := parseFloat(firstNonEmpty(fill.TradeOpened.Units, fill.Units))
	if err != nil {
		units = req.Units
	}

	return broker.OrderFill{
		TradeID:    fill.TradeOpened.TradeID,
		Instrument: req.Instrument,
		Units:      units,
		FillPrice:  price,
		Time:       parseTime(fill.Time),
	}, nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
