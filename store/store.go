// Package store defines the document store the trade lifecycle persists to.
package store

import (
	"context"
	"errors"

	"github.com/rustyeddy/papertrade/trade"
)

var (
	// ErrNotFound is returned by Get for a missing document.
	ErrNotFound = trade.ErrNotFound
	// ErrPersistence wraps failures talking to the backing store.
	ErrPersistence = errors.New("persistence error")
)

// Document is one stored record. Data values are whatever the backend hands
// back: strings, numbers, bools, time.Time, nil.
type Document struct {
	ID   string
	Data map[string]any
}

// QueryOptions narrows a collection scan. The zero value returns every
// document in no particular order.
type QueryOptions struct {
	OrderBy    string
	Descending bool
	Limit      int
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error)
	// SetMerge writes only the given fields and keeps every other field of
	// the document. A missing document is created.
	SetMerge(ctx context.Context, collection, id string, fields map[string]any) error
	// Set replaces the whole document.
	Set(ctx context.Context, collection, id string, data map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}
