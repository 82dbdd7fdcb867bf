package oanda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rustyeddy/papertrade/broker"
)

// Reject reasons meaning the trade is no longer open.
var goneReasons = map[string]bool{
	"NO_SUCH_TRADE":                  true,
	"TRADE_DOESNT_EXIST":             true,
	"CLOSEOUT_POSITION_DOESNT_EXIST": true,
}

type closeRequest struct {
	Units string `json:"units"`
}

type closeResponse struct {
	OrderCreateTransaction *transaction     `json:"orderCreateTransaction"`
	OrderFillTransaction   *fillTransaction `json:"orderFillTransaction"`
	OrderCancelTransaction *transaction     `json:"orderCancelTransaction"`
}

// CloseTrade closes an open trade at market. A trade that no longer exists
// or is already closed yields AlreadyClosed and no error.
func (c *Client) CloseTrade(ctx context.Context, tradeID string) (broker.CloseResult, error) {
	const op = "close trade"

	if strings.TrimSpace(tradeID) == "" {
		return broker.CloseResult{}, &broker.Error{Kind: broker.ErrOrderRejected, Op: op, Reason: "TRADE_ID_UNSPECIFIED"}
	}
	already := broker.CloseResult{Status: broker.AlreadyClosed, TradeID: tradeID}

	path := c.accountPath("/trades/%s/close", url.PathEscape(tradeID))
	resp, err := c.do(ctx, http.MethodPut, path, nil, closeRequest{Units: "ALL"})
	if err != nil {
		return broker.CloseResult{}, transportError(op, err)
	}

	switch {
	case resp.status == http.StatusNotFound:
		return already, nil
	case resp.status >= 500:
		return broker.CloseResult{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Reason: parseAPIError(resp.body).reason()}
	case resp.status >= 400:
		reason := parseAPIError(resp.body).reason()
		if goneReasons[reason] {
			return already, nil
		}
		return broker.CloseResult{}, &broker.Error{Kind: broker.ErrOrderRejected, Op: op, Status: resp.status, Reason: reason}
	}

	var cr closeResponse
	if err := json.Unmarshal(resp.body, &cr); err != nil {
		return broker.CloseResult{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Err: err}
	}

	fill := cr.OrderFillTransaction
	if fill == nil {
		if cr.OrderCancelTransaction != nil {
			reason := cr.OrderCancelTransaction.Reason
			if goneReasons[reason] {
				return already, nil
			}
			return broker.CloseResult{}, &broker.Error{Kind: broker.ErrOrderRejected, Op: op, Status: resp.status, Reason: reason}
		}
		return broker.CloseResult{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Reason: "NO_FILL_IN_RESPONSE"}
	}

	res := broker.CloseResult{Status: broker.Closed, TradeID: tradeID, Time: parseTime(fill.Time)}
	price := fill.Price
	pl := fill.PL
	for _, tc := range fill.TradesClosed {
		if tc.TradeID == tradeID {
			price = firstNonEmpty(tc.Price, price)
			pl = firstNonEmpty(tc.RealizedPL, pl)
		}
	}
	res.Price, _ = parseFloat(price)
	res.RealizedPL, _ = parseFloat(pl)
	return res, nil
}

type apiTrade struct {
	ID                string            `json:"id"`
	Instrument        string            `json:"instrument"`
	Price             string            `json:"price"`
	OpenTime          string            `json:"openTime"`
	State             string            `json:"state"`
	InitialUnits      string            `json:"initialUnits"`
	RealizedPL        string            `json:"realizedPL"`
	AverageClosePrice string            `json:"averageClosePrice"`
	CloseTime         string            `json:"closeTime"`
	ClientExtensions  *clientExtensions `json:"clientExtensions"`
}

type tradeResponse struct {
	Trade apiTrade `json:"trade"`
}

// Trade fetches one trade. The specifier is a trade id or "@" followed by
// the client id the trade was opened with.
func (c *Client) Trade(ctx context.Context, specifier string) (broker.TradeState, error) {
	const op = "get trade"

	resp, err := c.read(ctx, op, c.accountPath("/trades/%s", url.PathEscape(specifier)), nil)
	if err != nil {
		return broker.TradeState{}, err
	}
	switch {
	case resp.status == http.StatusNotFound:
		return broker.TradeState{}, &broker.Error{Kind: broker.ErrTradeNotFound, Op: op, Status: resp.status, Reason: specifier}
	case resp.status != http.StatusOK:
		return broker.TradeState{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Reason: parseAPIError(resp.body).reason()}
	}

	var tr tradeResponse
	if err := json.Unmarshal(resp.body, &tr); err != nil {
		return broker.TradeState{}, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Err: err}
	}

	t := tr.Trade
	st := broker.TradeState{
		ID:         t.ID,
		Instrument: t.Instrument,
		State:      t.State,
		OpenTime:   parseTime(t.OpenTime),
		CloseTime:  parseTime(t.CloseTime),
	}
	if t.ClientExtensions != nil {
		st.ClientID = t.ClientExtensions.ID
	}
	st.InitialUnits, _ = parseFloat(t.InitialUnits)
	st.Price, _ = parseFloat(t.Price)
	st.RealizedPL, _ = parseFloat(t.RealizedPL)
	if t.AverageClosePrice != "" {
		st.AverageClosePrice, _ = parseFloat(t.AverageClosePrice)
	}
	return st, nil
}
