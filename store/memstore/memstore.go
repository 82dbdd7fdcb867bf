// Package memstore is an in-memory store.Store used by tests and dry runs.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rustyeddy/papertrade/store"
)

type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]any
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: make(map[string]map[string]map[string]any)}
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	if err := ctx.Err(); err != nil {
		return store.Document{}, fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.data[collection][id]
	if !ok {
		return store.Document{}, fmt.Errorf("%s/%s: %w", collection, id, store.ErrNotFound)
	}
	return store.Document{ID: id, Data: maps.Clone(d)}, nil
}

func (s *Store) Query(ctx context.Context, collection string, opts store.QueryOptions) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.Document, 0, len(s.data[collection]))
	for id, d := range s.data[collection] {
		out = append(out, store.Document{ID: id, Data: maps.Clone(d)})
	}

	sort.Slice(out, func(i, j int) bool {
		if opts.OrderBy != "" {
			c := compare(out[i].Data[opts.OrderBy], out[j].Data[opts.OrderBy])
			if c != 0 {
				if opts.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].ID < out[j].ID
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *Store) SetMerge(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d := s.doc(collection, id)
	for k, v := range fields {
		d[k] = v
	}
	return nil
}

func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[collection] == nil {
		s.data[collection] = make(map[string]map[string]any)
	}
	s.data[collection][id] = maps.Clone(data)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrPersistence, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	return nil
}

func (s *Store) Close() error { return nil }

// doc returns the stored map for id, creating it. Caller holds the lock.
func (s *Store) doc(collection, id string) map[string]any {
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]map[string]any)
	}
	d, ok := s.data[collection][id]
	if !ok {
		d = make(map[string]any)
		s.data[collection][id] = d
	}
	return d
}

// compare orders nil < numbers < strings < times, values of one kind by value.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	if fa, ok := number(a); ok {
		fb, _ := number(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
	}
	return 0
}

func rank(v any) int {
	if _, ok := number(v); ok {
		return 1
	}
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 2
	case time.Time:
		return 3
	}
	return 4
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	return 0, false
}
