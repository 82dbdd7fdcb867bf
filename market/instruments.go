// market/instruments.go
package market

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownSymbol is returned for symbols outside the instrument table.
var ErrUnknownSymbol = errors.New("unknown symbol")

type InstrumentMeta struct {
	Name             string // OANDA instrument code, e.g. EUR_USD
	BaseCurrency     string
	QuoteCurrency    string
	PipLocation      int
	DisplayPrecision int
	MinimumTradeSize float64
	MarginRate       float64
}

// Instruments is keyed by OANDA instrument code.
var Instruments = map[string]InstrumentMeta{
	"EUR_USD": {Name: "EUR_USD", BaseCurrency: "EUR", QuoteCurrency: "USD", PipLocation: -4, DisplayPrecision: 5, MinimumTradeSize: 1, MarginRate: 0.0333},
	"GBP_USD": {Name: "GBP_USD", BaseCurrency: "GBP", QuoteCurrency: "USD", PipLocation: -4, DisplayPrecision: 5, MinimumTradeSize: 1, MarginRate: 0.0333},
	"AUD_USD": {Name: "AUD_USD", BaseCurrency: "AUD", QuoteCurrency: "USD", PipLocation: -4, DisplayPrecision: 5, MinimumTradeSize: 1, MarginRate: 0.05},
	"NZD_USD": {Name: "NZD_USD", BaseCurrency: "NZD", QuoteCurrency: "USD", PipLocation: -4, DisplayPrecision: 5, MinimumTradeSize: 1, MarginRate: 0.05},
	"USD_JPY": {Name: "USD_JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", PipLocation: -2, DisplayPrecision: 3, MinimumTradeSize: 1, MarginRate: 0.05},
	"USD_CAD": {Name: "USD_CAD", BaseCurrency: "USD", QuoteCurrency: "CAD", PipLocation: -4, DisplayPrecision: 5, MinimumTradeSize: 1, MarginRate: 0.05},
	"USD_CHF": {Name: "USD_CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", PipLocation: -4, DisplayPrecision: 5, MinimumTradeSize: 1, MarginRate: 0.05},
	"EUR_GBP": {Name: "EUR_GBP", BaseCurrency: "EUR", QuoteCurrency: "GBP", PipLocation: -4, DisplayPrecision: 5, MinimumTradeSize: 1, MarginRate: 0.05},
	"EUR_JPY": {Name: "EUR_JPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", PipLocation: -2, DisplayPrecision: 3, MinimumTradeSize: 1, MarginRate: 0.05},
	"GBP_JPY": {Name: "GBP_JPY", BaseCurrency: "GBP", QuoteCurrency: "JPY", PipLocation: -2, DisplayPrecision: 3, MinimumTradeSize: 1, MarginRate: 0.05},
	"XAU_USD": {Name: "XAU_USD", BaseCurrency: "XAU", QuoteCurrency: "USD", PipLocation: -2, DisplayPrecision: 3, MinimumTradeSize: 1, MarginRate: 0.05},
}

// symbols maps the compact internal pair (EURUSD) to the instrument code.
var symbols = func() map[string]string {
	m := make(map[string]string, len(Instruments))
	for name := range Instruments {
		m[strings.ReplaceAll(name, "_", "")] = name
	}
	return m
}()

// Instrument maps an internal symbol such as "FX:EURUSD" to its instrument
// code. "EURUSD", "EUR/USD" and "EUR_USD" are accepted spellings of the same
// pair. Anything not in the table fails with ErrUnknownSymbol.
func Instrument(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.TrimPrefix(s, "FX:")
	s = strings.NewReplacer("/", "", "_", "").Replace(s)
	name, ok := symbols[s]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	return name, nil
}

// Symbol is the inverse of Instrument: EUR_USD -> FX:EURUSD.
func Symbol(instrument string) string {
	return "FX:" + strings.ReplaceAll(instrument, "_", "")
}

// PipSize returns the price size of one pip for the instrument.
func (m InstrumentMeta) PipSize() float64 {
	p := 1.0
	for i := m.PipLocation; i < 0; i++ {
		p /= 10
	}
	return p
}

// FormatPrice renders a price at the instrument's display precision, which is
// what the broker accepts on stop-loss and take-profit orders.
func (m InstrumentMeta) FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', m.DisplayPrecision, 64)
}

// Lookup returns the metadata for an internal symbol or instrument code.
func Lookup(symbol string) (InstrumentMeta, error) {
	name, err := Instrument(symbol)
	if err != nil {
		return InstrumentMeta{}, err
	}
	return Instruments[name], nil
}
