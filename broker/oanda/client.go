package oanda

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/market"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"
)

// BaseURL resolves an environment name. This is a paper-trading tool, so
// the live environment is refused.
func BaseURL(env string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "practice", "demo":
		return PracticeURL, nil
	case "live":
		return "", errors.New("live trading is not allowed")
	default:
		return "", fmt.Errorf("unknown OANDA env %q (want practice|live)", env)
	}
}

// Client is the OANDA v20 REST implementation of broker.Broker.
type Client struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

var _ broker.Broker = (*Client)(nil)

type Option func(*Client)

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// NewClient creates a new OANDA API client for one account.
func NewClient(env, token, accountID string, opts ...Option) (*Client, error) {
	baseURL, err := BaseURL(env)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, errors.New("oanda: missing token")
	}
	if accountID == "" {
		return nil, errors.New("oanda: missing account id")
	}

	c := &Client{
		baseURL:    baseURL,
		token:      token,
		accountID:  accountID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(20), 5),
		breaker:    newBreaker("oanda-read"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newBreaker trips after repeated transport or 5xx failures on reads. Writes
// never go through it.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	return gobreaker.NewCircuitBreaker(st)
}

// MapSymbol maps an internal symbol (FX:EURUSD) to an OANDA instrument.
func (c *Client) MapSymbol(symbol string) (string, error) {
	name, err := market.Instrument(symbol)
	if err != nil {
		return "", &broker.Error{Kind: broker.ErrUnsupportedSymbol, Op: "map symbol", Reason: symbol}
	}
	return name, nil
}

func (c *Client) accountPath(format string, args ...any) string {
	return "/v3/accounts/" + url.PathEscape(c.accountID) + fmt.Sprintf(format, args...)
}

// response is a raw HTTP answer from the API.
type response struct {
	status int
	body   []byte
}

// apiError is the error body OANDA returns with 4xx answers.
type apiError struct {
	ErrorCode              string       `json:"errorCode"`
	ErrorMessage           string       `json:"errorMessage"`
	RejectReason           string       `json:"rejectReason"`
	OrderRejectTransaction *transaction `json:"orderRejectTransaction"`
	OrderCancelTransaction *transaction `json:"orderCancelTransaction"`
}

func (e apiError) reason() string {
	switch {
	case e.OrderRejectTransaction != nil && e.OrderRejectTransaction.RejectReason != "":
		return e.OrderRejectTransaction.RejectReason
	case e.OrderCancelTransaction != nil && e.OrderCancelTransaction.Reason != "":
		return e.OrderCancelTransaction.Reason
	case e.RejectReason != "":
		return e.RejectReason
	case e.ErrorCode != "":
		return e.ErrorCode
	}
	return ""
}

func parseAPIError(body []byte) apiError {
	var e apiError
	_ = json.Unmarshal(body, &e)
	return e
}

// errNotSent marks failures that happen before the request is written.
var errNotSent = errors.New("not sent")

// do sends one request. It returns an error only when no HTTP answer was
// received; status codes are left to the caller.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) (response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return response{}, fmt.Errorf("%w: rate limit wait: %w", errNotSent, err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return response{}, fmt.Errorf("%w: encode request: %w", errNotSent, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return response{}, fmt.Errorf("%w: create request: %w", errNotSent, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return response{}, fmt.Errorf("read response: %w", err)
	}
	return response{status: resp.StatusCode, body: b}, nil
}

// read sends a GET through the circuit breaker. Transport failures and 5xx
// answers count against the breaker; 4xx answers are returned normally.
func (c *Client) read(ctx context.Context, op, path string, query url.Values) (response, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.do(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return nil, err
		}
		if resp.status >= 500 {
			return resp, fmt.Errorf("server error: %s", trimForErr(string(resp.body)))
		}
		return resp, nil
	})
	if err != nil {
		be := &broker.Error{Kind: broker.ErrNetwork, Op: op, Err: err}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			be.Reason = "CIRCUIT_OPEN"
		}
		if r, ok := out.(response); ok {
			be.Status = r.status
		}
		return response{}, be
	}
	return out.(response), nil
}

// transportError classifies a failed write. Only a request that may have
// reached the broker leaves its outcome unknown.
func transportError(op string, err error) *broker.Error {
	if errors.Is(err, errNotSent) {
		return &broker.Error{Kind: broker.ErrNotSent, Op: op, Err: err}
	}
	return &broker.Error{Kind: broker.ErrNetwork, Op: op, Err: err}
}

func trimForErr(s string) string {
	const n = 200
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
