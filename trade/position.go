package trade

import (
	"fmt"
	"math"
	"time"
)

// Collection names in the document store.
const (
	PositionsCollection    = "positions"
	StrategiesCollection   = "strategies"
	ExplanationsCollection = "explanations"
)

// AIGeneratedStrategyID is the strategy_id sentinel meaning no Strategy
// document exists and one has to be synthesized from the Position.
const AIGeneratedStrategyID = "ai-generated"

// Position is one trading position, open or closed.
//
// EntryPrice and StopPrice are NaN when the stored document has no value
// for them.
type Position struct {
	ID     string `json:"-"`
	Status Status `json:"status"`
	Side   Side   `json:"side"`
	Symbol string `json:"symbol"`

	EntryTS    time.Time `json:"entry_ts"`
	EntryPrice float64   `json:"entry_price"`
	Qty        float64   `json:"qty"`
	StopPrice  float64   `json:"stop_price"`
	TPPrice    float64   `json:"tp_price"`

	ExitTS    *time.Time `json:"exit_ts"`
	ExitPrice *float64   `json:"exit_price"`
	PnLGBP    *float64   `json:"pnl_gbp"`
	RMultiple *float64   `json:"R_multiple"`

	StrategyID  string  `json:"strategy_id"`
	SignalID    string  `json:"signal_id"`
	SlippageBps float64 `json:"slippage_bps"`
	FeeBps      float64 `json:"fee_bps"`
	MethodName  string  `json:"method_name"`

	BrokerTradeID string `json:"broker_trade_id"`
	ClientTag     string `json:"client_tag"`
}

// DecodePosition builds a Position from a stored document.
func DecodePosition(id string, data map[string]any) (Position, error) {
	var p Position
	if err := decode(timestamps(data, "entry_ts", "exit_ts"), &p); err != nil {
		return Position{}, fmt.Errorf("position %s: %w", id, err)
	}
	p.ID = id
	if !present(data, "entry_price") {
		p.EntryPrice = math.NaN()
	}
	if !present(data, "stop_price") {
		p.StopPrice = math.NaN()
	}
	if err := p.Validate(); err != nil {
		return Position{}, fmt.Errorf("position %s: %w", id, err)
	}
	return p, nil
}

func (p Position) Validate() error {
	if p.Status == "" {
		return fmt.Errorf("%w: status is required", ErrValidation)
	}
	if p.Side == "" {
		return fmt.Errorf("%w: side is required", ErrValidation)
	}
	if p.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrValidation)
	}
	if p.SlippageBps < 0 || p.FeeBps < 0 {
		return fmt.Errorf("%w: slippage_bps and fee_bps must be non-negative", ErrValidation)
	}
	return nil
}

func (p Position) IsOpen() bool { return p.Status == StatusOpen }

// HasStrategyDoc reports whether StrategyID references a persisted Strategy.
func (p Position) HasStrategyDoc() bool {
	return p.StrategyID != "" && p.StrategyID != AIGeneratedStrategyID
}

// Close moves an OPEN position to CLOSED, setting all exit fields together.
func (p *Position) Close(ts time.Time, exitPrice, pnl, r float64) error {
	if p.Status != StatusOpen {
		return fmt.Errorf("%w: position %s is %s", ErrValidation, p.ID, p.Status)
	}
	p.Status = StatusClosed
	p.ExitTS = &ts
	p.ExitPrice = &exitPrice
	p.PnLGBP = &pnl
	p.RMultiple = &r
	return nil
}

// Fields returns the full document for a new Position.
func (p Position) Fields() map[string]any {
	f := map[string]any{
		"status":          string(p.Status),
		"side":            string(p.Side),
		"symbol":          p.Symbol,
		"entry_ts":        p.EntryTS,
		"qty":             p.Qty,
		"tp_price":        p.TPPrice,
		"strategy_id":     p.StrategyID,
		"signal_id":       p.SignalID,
		"slippage_bps":    p.SlippageBps,
		"fee_bps":         p.FeeBps,
		"method_name":     p.MethodName,
		"broker_trade_id": p.BrokerTradeID,
		"client_tag":      p.ClientTag,
	}
	if finite(p.EntryPrice) {
		f["entry_price"] = p.EntryPrice
	}
	if finite(p.StopPrice) {
		f["stop_price"] = p.StopPrice
	}
	for k, v := range p.ExitFields() {
		f[k] = v
	}
	return f
}

// ExitFields returns status plus the four exit fields, the partial update
// written when a position closes.
func (p Position) ExitFields() map[string]any {
	f := map[string]any{
		"status":     string(p.Status),
		"exit_ts":    nil,
		"exit_price": nil,
		"pnl_gbp":    nil,
		"R_multiple": nil,
	}
	if p.ExitTS != nil {
		f["exit_ts"] = *p.ExitTS
	}
	if p.ExitPrice != nil {
		f["exit_price"] = *p.ExitPrice
	}
	if p.PnLGBP != nil {
		f["pnl_gbp"] = *p.PnLGBP
	}
	if p.RMultiple != nil {
		f["R_multiple"] = *p.RMultiple
	}
	return f
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
