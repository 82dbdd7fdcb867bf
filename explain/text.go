package explain

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/trade"
)

// PlainEnglish is the short factual entry line stored when a position opens.
func PlainEnglish(p trade.Position, s trade.Strategy) string {
	verb := "Bought"
	if p.Side == trade.Short {
		verb = "Sold"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s at %s", verb, units(p.Qty), pair(p.Symbol), price(p.Symbol, p.EntryPrice))
	if finite(p.StopPrice) {
		fmt.Fprintf(&b, ", stop %s", price(p.Symbol, p.StopPrice))
	}
	if p.TPPrice > 0 {
		fmt.Fprintf(&b, ", target %s", price(p.Symbol, p.TPPrice))
	}
	fmt.Fprintf(&b, ". Strategy %s (%s stop, %s timeframe), risking £%.2f.",
		s.Name, s.StopLogic, s.Timeframe, risk.ComputeRiskGBP(p))
	return b.String()
}

// Prompt is the user message sent to the text service.
func Prompt(p trade.Position, s trade.Strategy) string {
	var b strings.Builder
	b.WriteString("Explain this paper trade to someone who has never traded before. ")
	b.WriteString("Use two or three short sentences, no jargon without a plain definition, no advice.\n\n")
	fmt.Fprintf(&b, "Instrument: %s\n", pair(p.Symbol))
	fmt.Fprintf(&b, "Direction: %s\n", p.Side)
	fmt.Fprintf(&b, "Entry price: %s\n", price(p.Symbol, p.EntryPrice))
	fmt.Fprintf(&b, "Stop price: %s\n", price(p.Symbol, p.StopPrice))
	if p.TPPrice > 0 {
		fmt.Fprintf(&b, "Take-profit price: %s\n", price(p.Symbol, p.TPPrice))
	}
	fmt.Fprintf(&b, "Quantity: %s units\n", units(p.Qty))
	fmt.Fprintf(&b, "Strategy: %s on the %s timeframe\n", s.Name, s.Timeframe)
	fmt.Fprintf(&b, "Stop logic: %s (ATR multiple %.2f)\n", s.StopLogic, s.ATRMult)
	fmt.Fprintf(&b, "Take profit at %.1fR\n", s.TakeProfitR)
	fmt.Fprintf(&b, "Risk: £%.2f\n", s.RiskPerTradeGBP)
	return b.String()
}

// Template writes the beginner text locally, for offline runs.
type Template struct{}

func (Template) Generate(_ context.Context, p trade.Position, s trade.Strategy) (string, error) {
	dir := "rise"
	action := "bought"
	if p.Side == trade.Short {
		dir = "fall"
		action = "sold"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "We %s %s because the %s strategy expected the price to %s.", action, pair(p.Symbol), s.Name, dir)
	switch s.StopLogic {
	case trade.StopSwing:
		b.WriteString(" The safety exit sits just past the most recent swing point, where the idea would be proven wrong.")
	default:
		b.WriteString(" The safety exit is set from how much the price normally moves (its average true range), so everyday noise should not trigger it.")
	}
	fmt.Fprintf(&b, " If it is hit we lose about £%.2f; the target aims to win %.1f times that.", s.RiskPerTradeGBP, s.TakeProfitR)
	return b.String(), nil
}

func pair(symbol string) string {
	meta, err := market.Lookup(symbol)
	if err != nil {
		return symbol
	}
	return meta.BaseCurrency + "/" + meta.QuoteCurrency
}

func price(symbol string, p float64) string {
	if !finite(p) {
		return "unknown"
	}
	meta, err := market.Lookup(symbol)
	if err != nil {
		return fmt.Sprintf("%.5f", p)
	}
	return meta.FormatPrice(p)
}

func units(q float64) string {
	if q == math.Trunc(q) {
		return fmt.Sprintf("%.0f", q)
	}
	return fmt.Sprintf("%g", q)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
