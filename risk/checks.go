package risk

import "fmt"

type Violation struct {
	Code string
	Msg  string
}

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk float64
	PlannedRR   float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

func (d Decision) Error() string {
	if d.Allowed || len(d.Violations) == 0 {
		return ""
	}
	msg := d.Violations[0].Code + ": " + d.Violations[0].Msg
	for _, v := range d.Violations[1:] {
		msg += "; " + v.Code + ": " + v.Msg
	}
	return msg
}

// Evaluate checks an intent against the policy. Every failed rule is
// reported, not just the first.
func Evaluate(p Policy, intent TradeIntent) Decision {
	d := Decision{Allowed: true}

	if intent.Stop == 0 || intent.Entry == 0 {
		d.add("NO_STOP_OR_ENTRY", "entry/stop must be set")
		return d
	}
	if intent.Units == 0 {
		d.add("NO_UNITS", "units must be non-zero")
		return d
	}
	side := 1.0
	if intent.Units < 0 {
		side = -1.0
	}
	if (intent.Stop-intent.Entry)*side >= 0 {
		d.add("STOP_WRONG_SIDE", fmt.Sprintf("stop %.5f is not on the losing side of entry %.5f", intent.Stop, intent.Entry))
	}
	if intent.TakeProfit != 0 && (intent.TakeProfit-intent.Entry)*side <= 0 {
		d.add("TP_WRONG_SIDE", fmt.Sprintf("take profit %.5f is not on the winning side of entry %.5f", intent.TakeProfit, intent.Entry))
	}

	rate := intent.QuoteToAccount
	if rate == 0 {
		rate = 1.0
	}
	d.PlannedRisk = PlannedRisk(intent.Units, intent.Entry, intent.Stop, rate)
	if intent.TakeProfit != 0 {
		d.PlannedRR = RR(intent.Entry, intent.Stop, intent.TakeProfit)
	}

	if p.MaxRiskGBP > 0 && d.PlannedRisk > p.MaxRiskGBP {
		d.add("RISK_TOO_HIGH",
			fmt.Sprintf("planned risk %.2f exceeds max %.2f", d.PlannedRisk, p.MaxRiskGBP))
	}
	if p.MinRR > 0 && intent.TakeProfit != 0 && d.PlannedRR < p.MinRR {
		d.add("RR_TOO_LOW",
			fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
	}
	if p.MaxUnits > 0 && abs(intent.Units) > p.MaxUnits {
		d.add("TOO_MANY_UNITS",
			fmt.Sprintf("units %.0f exceed max %.0f", abs(intent.Units), p.MaxUnits))
	}

	return d
}
