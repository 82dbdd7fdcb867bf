package risk

// Policy holds the pre-trade limits applied before an order is sent.
type Policy struct {
	MaxRiskGBP float64 `json:"max_risk_gbp" yaml:"max_risk_gbp"` // 0 disables the check
	MinRR      float64 `json:"min_rr" yaml:"min_rr"`             // 0 disables the check
	MaxUnits   float64 `json:"max_units" yaml:"max_units"`       // 0 disables the check
}

// TradeIntent is an order about to be placed.
type TradeIntent struct {
	Instrument string
	Units      float64 // signed

	Entry      float64
	Stop       float64
	TakeProfit float64

	QuoteToAccount float64 // 0 is treated as 1.0
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRiskGBP: 50,
		MinRR:      1.0,
		MaxUnits:   100_000,
	}
}
