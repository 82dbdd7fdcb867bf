package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/execution"
)

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return d, nil
}

// reportOrderError tells the operator what an order failure means for the
// account before the error itself is printed.
func reportOrderError(w io.Writer, err error) {
	var unknown *execution.UnknownOutcomeError
	switch {
	case errors.As(err, &unknown):
		fmt.Fprintf(w, "Order status UNKNOWN (client tag %s). It may have been filled.\n", unknown.ClientTag)
		fmt.Fprintf(w, "Do not resubmit. Check it with:\n  papertrade order reconcile --tag %s\n", unknown.ClientTag)
	case errors.Is(err, broker.ErrOrderRejected):
		fmt.Fprintf(w, "Order rejected by broker: %s\n", reasonOr(err, "no reason given"))
	case errors.Is(err, broker.ErrPriceUnavailable):
		fmt.Fprintf(w, "No tradeable price: %s\n", reasonOr(err, "market closed or instrument halted"))
	case errors.Is(err, broker.ErrUnsupportedSymbol):
		fmt.Fprintf(w, "Symbol not supported: %s\n", broker.Reason(err))
	case errors.Is(err, broker.ErrNotSent):
		fmt.Fprintln(w, "Request was not sent; nothing changed at the broker. It is safe to try again.")
	case errors.Is(err, broker.ErrNetwork):
		fmt.Fprintln(w, "Could not reach the broker.")
	}
}

func reasonOr(err error, fallback string) string {
	if r := broker.Reason(err); r != "" {
		return r
	}
	return fallback
}
