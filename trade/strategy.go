package trade

import "fmt"

// Strategy is the risk/stop/target policy governing a Position.
type Strategy struct {
	ID              string    `json:"-"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	Timeframe       string    `json:"timeframe"`
	RiskPerTradeGBP float64   `json:"risk_per_trade_gbp"`
	StopLogic       StopLogic `json:"stop_logic"`
	ATRMult         float64   `json:"atr_mult"`
	TakeProfitR     float64   `json:"take_profit_R"`
	SlippageBps     float64   `json:"slippage_bps"`
	FeeBps          float64   `json:"fee_bps"`
	Enabled         bool      `json:"enabled"`
}

func DecodeStrategy(id string, data map[string]any) (Strategy, error) {
	var s Strategy
	if err := decode(data, &s); err != nil {
		return Strategy{}, fmt.Errorf("strategy %s: %w", id, err)
	}
	s.ID = id
	if err := s.Validate(); err != nil {
		return Strategy{}, fmt.Errorf("strategy %s: %w", id, err)
	}
	return s, nil
}

// Validate rejects negative figures. Zero means the field was not set.
func (s Strategy) Validate() error {
	switch {
	case s.RiskPerTradeGBP < 0:
		return fmt.Errorf("%w: risk_per_trade_gbp must be non-negative", ErrValidation)
	case s.ATRMult < 0:
		return fmt.Errorf("%w: atr_mult must be positive", ErrValidation)
	case s.TakeProfitR < 0:
		return fmt.Errorf("%w: take_profit_R must be positive", ErrValidation)
	case s.SlippageBps < 0 || s.FeeBps < 0:
		return fmt.Errorf("%w: slippage_bps and fee_bps must be non-negative", ErrValidation)
	}
	return nil
}

func (s Strategy) Fields() map[string]any {
	return map[string]any{
		"name":               s.Name,
		"symbol":             s.Symbol,
		"timeframe":          s.Timeframe,
		"risk_per_trade_gbp": s.RiskPerTradeGBP,
		"stop_logic":         string(s.StopLogic),
		"atr_mult":           s.ATRMult,
		"take_profit_R":      s.TakeProfitR,
		"slippage_bps":       s.SlippageBps,
		"fee_bps":            s.FeeBps,
		"enabled":            s.Enabled,
	}
}
