package risk

import "math"

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// PlannedRisk computes the absolute account-currency risk if the stop is hit.
// quoteToAccountRate converts the instrument's quote currency into the
// account currency (1.0 when they match).
func PlannedRisk(units, entry, stop, quoteToAccountRate float64) float64 {
	move := abs(entry - stop)
	return abs(units) * move * quoteToAccountRate
}

// RR is the planned reward-to-risk ratio of a bracket.
func RR(entry, stop, takeProfit float64) float64 {
	risk := abs(entry - stop)
	reward := abs(takeProfit - entry)
	if risk == 0 {
		return 0
	}
	return reward / risk
}

// RMultiple expresses a realized P/L as a multiple of the risked amount.
func RMultiple(pnl, riskAmount float64) float64 {
	if riskAmount == 0 {
		return 0
	}
	r := pnl / riskAmount
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return round2(r)
}

// UnitsForRisk sizes a position so that hitting the stop loses riskAmount.
func UnitsForRisk(riskAmount, entry, stop float64) float64 {
	dist := abs(entry - stop)
	if dist == 0 || math.IsNaN(dist) || math.IsInf(dist, 0) {
		return 0
	}
	return math.Floor(riskAmount / dist)
}
