package risk

import (
	"math"
	"strings"

	"github.com/rustyeddy/papertrade/trade"
	"github.com/shopspring/decimal"
)

// Defaults applied when a strategy has to be synthesized.
const (
	FallbackRiskGBP    = 5.0
	DefaultName        = "AI Generated"
	DefaultTimeframe   = "1H"
	DefaultATRMult     = 1.5
	DefaultTakeProfitR = 2.0
)

// ComputeRiskGBP returns |entry - stop| * qty rounded to two decimals, or
// FallbackRiskGBP when the result is not a finite number.
func ComputeRiskGBP(p trade.Position) float64 {
	r := math.Abs(p.EntryPrice-p.StopPrice) * p.Qty
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return FallbackRiskGBP
	}
	return round2(r)
}

// InferStopLogic picks SWING when the method name mentions it, ATR otherwise.
func InferStopLogic(methodName string) trade.StopLogic {
	if strings.Contains(strings.ToUpper(methodName), "SWING") {
		return trade.StopSwing
	}
	return trade.StopATR
}

// BuildStrategy returns a complete Strategy for p. Fields set on doc win;
// everything else is filled from the position or the package defaults. doc
// may be nil, in which case the strategy is synthesized and enabled.
func BuildStrategy(p trade.Position, doc *trade.Strategy) trade.Strategy {
	var d trade.Strategy
	if doc != nil {
		d = *doc
	}

	s := trade.Strategy{
		ID:              firstString(d.ID, p.StrategyID),
		Name:            firstString(d.Name, p.MethodName, DefaultName),
		Symbol:          firstString(d.Symbol, p.Symbol),
		Timeframe:       firstString(d.Timeframe, DefaultTimeframe),
		RiskPerTradeGBP: d.RiskPerTradeGBP,
		StopLogic:       d.StopLogic,
		ATRMult:         firstFloat(d.ATRMult, DefaultATRMult),
		TakeProfitR:     firstFloat(d.TakeProfitR, DefaultTakeProfitR),
		SlippageBps:     firstFloat(d.SlippageBps, p.SlippageBps),
		FeeBps:          firstFloat(d.FeeBps, p.FeeBps),
		Enabled:         true,
	}
	if s.RiskPerTradeGBP == 0 {
		s.RiskPerTradeGBP = ComputeRiskGBP(p)
	}
	if s.StopLogic == "" {
		s.StopLogic = InferStopLogic(p.MethodName)
	}
	if doc != nil {
		s.Enabled = d.Enabled
	}
	return s
}

func round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstFloat(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 && !math.IsNaN(v) {
			return v
		}
	}
	return 0
}
