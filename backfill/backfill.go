// Package backfill fills in missing beginner-friendly explanation text.
//
// A run is a sequential fold over every explanation whose
// beginner_friendly_entry is empty. Per-item failures are recorded and the
// run moves on; only failing to list the explanations is fatal.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrade/explain"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/trade"
)

// DefaultDelay paces calls to the text service.
const DefaultDelay = 1200 * time.Millisecond

// Outcome is what happened to one candidate.
type Outcome string

const (
	Updated          Outcome = "updated"
	PositionNotFound Outcome = "position_not_found"
	Invalid          Outcome = "invalid"
	GenerateFailed   Outcome = "generate_failed"
	WriteFailed      Outcome = "write_failed"
	DryRun           Outcome = "dry_run"
)

type Result struct {
	ExplanationID string
	PositionID    string
	Outcome       Outcome
	Err           error
}

type Summary struct {
	Total   int
	Updated int
	Skipped int
	Results []Result
}

type Reconciler struct {
	store  store.Store
	gen    explain.Generator
	log    zerolog.Logger
	delay  time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	limit  int
	dryRun bool
	m      *Metrics
}

type Option func(*Reconciler)

func WithDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.delay = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

func WithMetrics(m *Metrics) Option {
	return func(r *Reconciler) { r.m = m }
}

// WithSleep replaces the pacing wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Reconciler) { r.sleep = fn }
}

// WithLimit stops after n candidates. Zero means no limit.
func WithLimit(n int) Option {
	return func(r *Reconciler) { r.limit = n }
}

// WithDryRun lists candidates without generating or writing.
func WithDryRun(on bool) Option {
	return func(r *Reconciler) { r.dryRun = on }
}

func New(s store.Store, gen explain.Generator, opts ...Option) *Reconciler {
	r := &Reconciler{
		store: s,
		gen:   gen,
		log:   zerolog.Nop(),
		delay: DefaultDelay,
		sleep: sleepCtx,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run performs one pass. The error is non-nil when the explanation list
// could not be read, or when ctx ends mid-run; in the latter case the
// summary covers the items processed so far.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	docs, err := r.store.Query(ctx, trade.ExplanationsCollection, store.QueryOptions{})
	if err != nil {
		return sum, fmt.Errorf("list explanations: %w", err)
	}

	candidates := r.candidates(docs)
	sum.Total = len(candidates)
	r.m.candidates(len(candidates))
	r.log.Info().Int("documents", len(docs)).Int("candidates", len(candidates)).Msg("backfill started")

	for i, c := range candidates {
		res := r.process(ctx, c)
		sum.Results = append(sum.Results, res)
		if res.Outcome == Updated {
			sum.Updated++
		} else if res.Outcome != DryRun {
			sum.Skipped++
		}
		r.m.record(res.Outcome)

		if r.dryRun {
			continue
		}
		if err := r.sleep(ctx, r.delay); err != nil {
			r.log.Warn().Err(err).Int("processed", i+1).Msg("backfill interrupted")
			return sum, err
		}
	}

	r.log.Info().Int("total", sum.Total).Int("updated", sum.Updated).Int("skipped", sum.Skipped).Msg("backfill finished")
	return sum, nil
}

// candidates keeps explanations with empty beginner text, in query order.
// Documents that do not decode still count, so they show up as invalid.
func (r *Reconciler) candidates(docs []store.Document) []store.Document {
	var out []store.Document
	for _, d := range docs {
		v, _ := d.Data[trade.BeginnerFriendlyField].(string)
		if strings.TrimSpace(v) != "" {
			continue
		}
		out = append(out, d)
		if r.limit > 0 && len(out) == r.limit {
			break
		}
	}
	return out
}

func (r *Reconciler) process(ctx context.Context, doc store.Document) Result {
	res := Result{ExplanationID: doc.ID}
	l := r.log.With().Str("explanation_id", doc.ID).Logger()

	exp, err := trade.DecodeExplanation(doc.ID, doc.Data)
	if err != nil {
		l.Warn().Err(err).Msg("skipping invalid explanation")
		return r.skip(res, Invalid, err)
	}
	res.PositionID = exp.PositionID
	l = l.With().Str("position_id", exp.PositionID).Logger()

	pos, err := store.LoadPosition(ctx, r.store, exp.PositionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		l.Warn().Msg("position not found, skipping")
		return r.skip(res, PositionNotFound, err)
	case err != nil:
		l.Warn().Err(err).Msg("position unreadable, skipping")
		return r.skip(res, Invalid, err)
	}

	strat := risk.BuildStrategy(pos, r.strategyDoc(ctx, l, pos))

	if r.dryRun {
		l.Info().Str("symbol", pos.Symbol).Str("strategy", strat.Name).Msg("would backfill")
		res.Outcome = DryRun
		return res
	}

	text, err := r.gen.Generate(ctx, pos, strat)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty text", explain.ErrExternalService)
	}
	if err != nil {
		l.Warn().Err(err).Msg("generator failed, skipping")
		return r.skip(res, GenerateFailed, err)
	}

	err = r.store.SetMerge(ctx, trade.ExplanationsCollection, doc.ID, map[string]any{
		trade.BeginnerFriendlyField: text,
	})
	if err != nil {
		l.Error().Err(err).Msg("merge write failed")
		return r.skip(res, WriteFailed, err)
	}

	l.Info().Msg("explanation updated")
	res.Outcome = Updated
	return res
}

// strategyDoc fetches the referenced strategy. Any failure degrades to
// synthesis.
func (r *Reconciler) strategyDoc(ctx context.Context, l zerolog.Logger, p trade.Position) *trade.Strategy {
	if !p.HasStrategyDoc() {
		return nil
	}
	s, err := store.LoadStrategy(ctx, r.store, p.StrategyID)
	if err != nil {
		l.Debug().Err(err).Str("strategy_id", p.StrategyID).Msg("strategy unavailable, synthesizing")
		return nil
	}
	return &s
}

func (r *Reconciler) skip(res Result, o Outcome, err error) Result {
	res.Outcome = o
	res.Err = err
	return res
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
