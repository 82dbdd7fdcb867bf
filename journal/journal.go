// Package journal reads positions back out of the store for review.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/trade"
)

// Entry is one position with its explanation, when it has one.
type Entry struct {
	Position    trade.Position
	Explanation *trade.Explanation
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status      trade.Status
	ClosedSince time.Time
	ClosedUntil time.Time
	Limit       int
}

func (f Filter) match(p trade.Position) bool {
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.ClosedSince.IsZero() && f.ClosedUntil.IsZero() {
		return true
	}
	if p.ExitTS == nil {
		return false
	}
	if !f.ClosedSince.IsZero() && p.ExitTS.Before(f.ClosedSince) {
		return false
	}
	if !f.ClosedUntil.IsZero() && !p.ExitTS.Before(f.ClosedUntil) {
		return false
	}
	return true
}

// Get returns one position and its explanation. The explanation is looked
// up by the position's own id first, then by position_id.
func Get(ctx context.Context, s store.Store, positionID string) (Entry, error) {
	p, err := store.LoadPosition(ctx, s, positionID)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{Position: p}

	x, err := store.LoadExplanation(ctx, s, positionID)
	switch {
	case err == nil && x.PositionID == positionID:
		e.Explanation = &x
		return e, nil
	case err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, trade.ErrValidation):
		return e, err
	}

	byPos, err := explanationsByPosition(ctx, s)
	if err != nil {
		return e, err
	}
	e.Explanation = byPos[positionID]
	return e, nil
}

// List returns positions newest first. Documents that fail to decode are
// skipped and counted in the second return value.
func List(ctx context.Context, s store.Store, f Filter) ([]Entry, int, error) {
	docs, err := s.Query(ctx, trade.PositionsCollection, store.QueryOptions{OrderBy: "entry_ts", Descending: true})
	if err != nil {
		return nil, 0, fmt.Errorf("list positions: %w", err)
	}
	byPos, err := explanationsByPosition(ctx, s)
	if err != nil {
		return nil, 0, err
	}

	var out []Entry
	invalid := 0
	for _, d := range docs {
		p, err := trade.DecodePosition(d.ID, d.Data)
		if err != nil {
			invalid++
			continue
		}
		if !f.match(p) {
			continue
		}
		out = append(out, Entry{Position: p, Explanation: byPos[p.ID]})
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, invalid, nil
}

func explanationsByPosition(ctx context.Context, s store.Store) (map[string]*trade.Explanation, error) {
	docs, err := s.Query(ctx, trade.ExplanationsCollection, store.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("list explanations: %w", err)
	}
	out := make(map[string]*trade.Explanation, len(docs))
	for _, d := range docs {
		x, err := trade.DecodeExplanation(d.ID, d.Data)
		if err != nil {
			continue
		}
		// the explanation keyed by the position id wins
		if prev, seen := out[x.PositionID]; seen && prev.ID == prev.PositionID {
			continue
		}
		out[x.PositionID] = &x
	}
	return out, nil
}

// Stats summarizes closed positions.
type Stats struct {
	Closed       int
	Wins         int
	Losses       int
	GrossProfit  float64
	GrossLoss    float64 // positive
	ProfitFactor float64
	TotalR       float64
}

func (s Stats) WinRate() float64 {
	if s.Closed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Closed)
}

func (s Stats) AvgR() float64 {
	if s.Closed == 0 {
		return 0
	}
	return s.TotalR / float64(s.Closed)
}

// Summarize folds the closed positions among entries.
func Summarize(entries []Entry) Stats {
	var s Stats
	for _, e := range entries {
		p := e.Position
		if p.Status != trade.StatusClosed || p.PnLGBP == nil {
			continue
		}
		s.Closed++
		pnl := *p.PnLGBP
		switch {
		case pnl > 0:
			s.Wins++
			s.GrossProfit += pnl
		case pnl < 0:
			s.Losses++
			s.GrossLoss += -pnl
		}
		if p.RMultiple != nil {
			s.TotalR += *p.RMultiple
		}
	}
	if s.GrossLoss > 0 {
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	}
	return s
}
