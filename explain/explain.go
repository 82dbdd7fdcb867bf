// Package explain turns a Position and its Strategy into prose for the
// trade journal.
package explain

import (
	"context"
	"errors"

	"github.com/rustyeddy/papertrade/trade"
)

// ErrExternalService marks a failed call to the text service: timeout,
// non-2xx, or a response with no usable text.
var ErrExternalService = errors.New("external service error")

// Generator produces beginner-oriented prose for one trade.
type Generator interface {
	Generate(ctx context.Context, p trade.Position, s trade.Strategy) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, p trade.Position, s trade.Strategy) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, p trade.Position, s trade.Strategy) (string, error) {
	return f(ctx, p, s)
}
