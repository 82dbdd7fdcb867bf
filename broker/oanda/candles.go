package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/market"
)

// Granularity represents the time frame for candles
type Granularity string

const (
	M1  Granularity = "M1"
	M5  Granularity = "M5"
	M15 Granularity = "M15"
	M30 Granularity = "M30"
	H1  Granularity = "H1"
	H4  Granularity = "H4"
	D   Granularity = "D"
)

// timeframes maps strategy timeframe notation to OANDA granularities.
var timeframes = map[string]Granularity{
	"1M":  M1,
	"5M":  M5,
	"15M": M15,
	"30M": M30,
	"1H":  H1,
	"4H":  H4,
	"1D":  D,
	"D":   D,
}

// GranularityFor converts a strategy timeframe ("1H", "15M") to a granularity.
// OANDA spellings ("H1") are accepted as-is.
func GranularityFor(timeframe string) (Granularity, error) {
	tf := strings.ToUpper(strings.TrimSpace(timeframe))
	if g, ok := timeframes[tf]; ok {
		return g, nil
	}
	for _, g := range timeframes {
		if string(g) == tf {
			return g, nil
		}
	}
	return "", fmt.Errorf("unsupported timeframe %q", timeframe)
}

// candleData represents the OHLC data in the API response
type candleData struct {
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
}

type apiCandle struct {
	Complete bool       `json:"complete"`
	Volume   int        `json:"volume"`
	Time     string     `json:"time"`
	Mid      candleData `json:"mid"`
}

type candlesResponse struct {
	Instrument  string      `json:"instrument"`
	Granularity string      `json:"granularity"`
	Candles     []apiCandle `json:"candles"`
}

// Candles fetches the last count complete midpoint candles.
func (c *Client) Candles(ctx context.Context, instrument, timeframe string, count int) ([]market.Candle, error) {
	const op = "get candles"

	g, err := GranularityFor(timeframe)
	if err != nil {
		return nil, err
	}
	if count <= 0 || count > 5000 {
		return nil, fmt.Errorf("count must be between 1 and 5000, got %d", count)
	}

	params := url.Values{}
	params.Set("price", "M")
	params.Set("granularity", string(g))
	params.Set("count", fmt.Sprintf("%d", count))

	resp, err := c.read(ctx, op, "/v3/instruments/"+url.PathEscape(instrument)+"/candles", params)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, &broker.Error{Kind: broker.ErrPriceUnavailable, Op: op, Status: resp.status, Reason: parseAPIError(resp.body).reason()}
	}

	var apiResp candlesResponse
	if err := json.Unmarshal(resp.body, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	candles := make([]market.Candle, 0, len(apiResp.Candles))
	for _, ac := range apiResp.Candles {
		// Skip incomplete candles
		if !ac.Complete {
			continue
		}

		t := parseTime(ac.Time)
		if t.IsZero() {
			return nil, fmt.Errorf("parse time %q", ac.Time)
		}

		open, err := parseFloat(ac.Mid.O)
		if err != nil {
			return nil, fmt.Errorf("parse open price: %w", err)
		}
		high, err := parseFloat(ac.Mid.H)
		if err != nil {
			return nil, fmt.Errorf("parse high price: %w", err)
		}
		low, err := parseFloat(ac.Mid.L)
		if err != nil {
			return nil, fmt.Errorf("parse low price: %w", err)
		}
		cls, err := parseFloat(ac.Mid.C)
		if err != nil {
			return nil, fmt.Errorf("parse close price: %w", err)
		}

		candles = append(candles, market.Candle{
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Time:   t,
			Volume: float64(ac.Volume),
		})
	}

	return candles, nil
}
