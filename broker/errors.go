package broker

import (
	"context"
	"errors"
	"fmt"
)

// Failure kinds. Every *Error matches exactly one of them with errors.Is.
var (
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	ErrPriceUnavailable  = errors.New("price unavailable")
	ErrOrderRejected     = errors.New("order rejected")
	ErrNetwork           = errors.New("network error")
	ErrTradeNotFound     = errors.New("trade not found")
	// ErrNotSent means the request never left the client, so nothing
	// changed at the broker and it is safe to try again.
	ErrNotSent = errors.New("request not sent")
)

// Error carries the broker's machine-readable reason alongside the kind.
type Error struct {
	Kind   error
	Op     string
	Reason string // e.g. INSUFFICIENT_MARGIN, STOP_LOSS_ON_FILL_LOSS
	Status int    // HTTP status, 0 for transport failures
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" http %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// Reason returns the broker reason carried by err, if any.
func Reason(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Reason
	}
	return ""
}

// StatusUnknown reports whether err leaves the outcome of a mutating call
// undetermined.
func StatusUnknown(err error) bool {
	if errors.Is(err, ErrNotSent) {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, context.DeadlineExceeded)
}
