package oanda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rustyeddy/papertrade/broker"
)

type priceBucket struct {
	Price     string `json:"price"`
	Liquidity int64  `json:"liquidity"`
}

type clientPrice struct {
	Instrument string        `json:"instrument"`
	Time       string        `json:"time"`
	Tradeable  bool          `json:"tradeable"`
	Bids       []priceBucket `json:"bids"`
	Asks       []priceBucket `json:"asks"`
}

type pricingResponse struct {
	Prices []clientPrice `json:"prices"`
}

// GetMidPrice returns the midpoint of the best bid and ask.
func (c *Client) GetMidPrice(ctx context.Context, instrument string) (float64, error) {
	const op = "get price"
	q := url.Values{}
	q.Set("instruments", instrument)

	resp, err := c.read(ctx, op, c.accountPath("/pricing"), q)
	if err != nil {
		return 0, err
	}
	if resp.status != http.StatusOK {
		e := parseAPIError(resp.body)
		return 0, &broker.Error{Kind: broker.ErrPriceUnavailable, Op: op, Reason: e.reason(), Status: resp.status}
	}

	var pr pricingResponse
	if err := json.Unmarshal(resp.body, &pr); err != nil {
		return 0, &broker.Error{Kind: broker.ErrNetwork, Op: op, Status: resp.status, Err: err}
	}

	for _, p := range pr.Prices {
		if p.Instrument != instrument {
			continue
		}
		if !p.Tradeable || len(p.Bids) == 0 || len(p.Asks) == 0 {
			return 0, &broker.Error{Kind: broker.ErrPriceUnavailable, Op: op, Reason: "NOT_TRADEABLE"}
		}
		bid, err := strconv.ParseFloat(p.Bids[0].Price, 64)
		if err != nil {
			return 0, &broker.Error{Kind: broker.ErrPriceUnavailable, Op: op, Reason: "BAD_QUOTE", Err: err}
		}
		ask, err := strconv.ParseFloat(p.Asks[0].Price, 64)
		if err != nil {
			return 0, &broker.Error{Kind: broker.ErrPriceUnavailable, Op: op, Reason: "BAD_QUOTE", Err: err}
		}
		return (bid + ask) / 2, nil
	}

	return 0, &broker.Error{Kind: broker.ErrPriceUnavailable, Op: op, Reason: "NO_PRICE"}
}
