package risk

import (
	"fmt"
	"math"

	"github.com/rustyeddy/papertrade/indicators"
	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/trade"
)

// ATRPeriod is the lookback used for ATR stop placement.
const ATRPeriod = 14

// SwingLookback is the number of candles scanned for a swing extreme.
const SwingLookback = 20

// ATRStop places the stop mult ATRs away from entry, below for longs and
// above for shorts.
func ATRStop(candles []market.Candle, side trade.Side, entry float64, period int, mult float64) (float64, error) {
	atr, err := indicators.ATR(candles, period)
	if err != nil {
		return 0, fmt.Errorf("atr stop: %w", err)
	}
	if atr <= 0 {
		return 0, fmt.Errorf("atr stop: non-positive ATR %.6f", atr)
	}
	return entry - side.Sign()*mult*atr, nil
}

// SwingStop places the stop at the lowest low (longs) or highest high
// (shorts) of the last lookback candles.
func SwingStop(candles []market.Candle, side trade.Side, lookback int) (float64, error) {
	if lookback <= 0 {
		return 0, fmt.Errorf("swing stop: lookback must be positive, got %d", lookback)
	}
	if len(candles) == 0 {
		return 0, fmt.Errorf("swing stop: no candles")
	}
	if len(candles) > lookback {
		candles = candles[len(candles)-lookback:]
	}

	level := candles[0].Low
	if side == trade.Short {
		level = candles[0].High
	}
	for _, c := range candles[1:] {
		if side == trade.Short {
			level = math.Max(level, c.High)
		} else {
			level = math.Min(level, c.Low)
		}
	}
	return level, nil
}

// TakeProfit places the target r multiples of the stop distance beyond entry.
func TakeProfit(side trade.Side, entry, stop, r float64) float64 {
	return entry + side.Sign()*r*abs(entry-stop)
}
