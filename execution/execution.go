// Package execution opens and closes paper positions through a broker and
// records them in the store.
package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrade/broker"
	"github.com/rustyeddy/papertrade/explain"
	"github.com/rustyeddy/papertrade/market"
	"github.com/rustyeddy/papertrade/pkg/id"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/trade"
)

// candleCount is how much history stop placement asks for.
const candleCount = 100

// UnknownOutcomeError is returned when an order may or may not have reached
// the broker. Look the trade up by ClientTag before submitting again.
type UnknownOutcomeError struct {
	ClientTag string
	Err       error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("order %s: outcome unknown, reconcile before resubmitting: %v", e.ClientTag, e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error { return e.Err }

type Service struct {
	broker broker.Broker
	store  store.Store
	log    zerolog.Logger
	policy risk.Policy
	newID  func() string
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithPolicy(p risk.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithIDs replaces the client tag source.
func WithIDs(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func WithClock(fn func() time.Time) Option {
	return func(s *Service) { s.now = fn }
}

func New(b broker.Broker, st store.Store, opts ...Option) *Service {
	s := &Service{
		broker: b,
		store:  st,
		log:    zerolog.Nop(),
		policy: risk.DefaultPolicy(),
		newID:  id.New,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OpenRequest describes a position to open. Zero Stop, TakeProfit, Units and
// RiskGBP are derived from the strategy.
type OpenRequest struct {
	Symbol     string
	Side       trade.Side
	StrategyID string
	MethodName string
	SignalID   string

	Units      float64
	RiskGBP    float64
	Stop       float64
	TakeProfit float64
}

type Opened struct {
	Position    trade.Position
	Explanation trade.Explanation
	Fill        broker.OrderFill
}

// plan is an order ready to submit.
type plan struct {
	instrument string
	strategy   trade.Strategy
	mid        float64
	stop       float64
	takeProfit float64
	units      float64 // signed
}

// Open sizes, checks and submits a market order, then records the position
// and an explanation awaiting its beginner-friendly text.
//
// Nothing is retried. When the broker's answer is lost the error is an
// *UnknownOutcomeError and nothing is written.
func (s *Service) Open(ctx context.Context, req OpenRequest) (Opened, error) {
	pl, err := s.plan(ctx, req)
	if err != nil {
		return Opened{}, err
	}

	tag := s.newID()
	l := s.log.With().Str("client_tag", tag).Str("instrument", pl.instrument).Logger()
	l.Info().Float64("units", pl.units).Float64("stop", pl.stop).Float64("take_profit", pl.takeProfit).Msg("placing market order")

	fill, err := s.broker.PlaceMarketOrder(ctx, broker.MarketOrderRequest{
		Instrument: pl.instrument,
		Units:      pl.units,
		StopLoss:   pl.stop,
		TakeProfit: pl.takeProfit,
		ClientTag:  tag,
	})
	if err != nil {
		if broker.StatusUnknown(err) {
			l.Error().Err(err).Msg("order outcome unknown")
			return Opened{}, &UnknownOutcomeError{ClientTag: tag, Err: err}
		}
		l.Warn().Err(err).Str("reason", broker.Reason(err)).Msg("order not placed")
		return Opened{}, err
	}
	l.Info().Str("trade_id", fill.TradeID).Float64("price", fill.FillPrice).Msg("order filled")

	p := s.position(req, pl, tag, fill)
	return s.record(ctx, p, pl.strategy, fill)
}

// Reconciled reports what the broker knows about a client tag.
type Reconciled struct {
	Placed   bool
	Recorded bool // a position or its missing explanation was written by this call
	Trade    broker.TradeState
	Position trade.Position
}

// Reconcile resolves an *UnknownOutcomeError. If the broker has a trade for
// tag and the store has no position for it yet, one is recorded from the
// broker's view plus req. Running it again is harmless.
func (s *Service) Reconcile(ctx context.Context, tag string, req OpenRequest) (Reconciled, error) {
	st, err := s.broker.Trade(ctx, "@"+tag)
	if errors.Is(err, broker.ErrTradeNotFound) {
		s.log.Info().Str("client_tag", tag).Msg("broker has no trade for tag, order was not placed")
		return Reconciled{}, nil
	}
	if err != nil {
		return Reconciled{}, err
	}
	out := Reconciled{Placed: true, Trade: st}

	existing, err := store.LoadPosition(ctx, s.store, tag)
	switch {
	case err == nil:
		out.Position = existing
		// an earlier record may have stopped after the position
		wrote, err := s.ensureExplanation(ctx, existing)
		out.Recorded = wrote
		return out, err
	case !errors.Is(err, store.ErrNotFound):
		return out, err
	}

	if req.Symbol == "" {
		req.Symbol = market.Symbol(st.Instrument)
	}
	if req.Side == "" {
		req.Side = trade.Long
		if st.InitialUnits < 0 {
			req.Side = trade.Short
		}
	}
	strat, err := s.strategy(ctx, req)
	if err != nil {
		return out, err
	}

	stop := req.Stop
	if stop == 0 {
		stop = math.NaN()
	}
	fill := broker.OrderFill{
		TradeID:    st.ID,
		Instrument: st.Instrument,
		Units:      st.InitialUnits,
		FillPrice:  st.Price,
		Time:       st.OpenTime,
	}
	pl := plan{instrument: st.Instrument, strategy: strat, stop: stop, takeProfit: req.TakeProfit}
	p := s.position(req, pl, tag, fill)
	if !st.IsOpen() {
		s.log.Warn().Str("client_tag", tag).Str("state", st.State).Msg("trade is no longer open, recording entry only")
	}

	opened, err := s.record(ctx, p, strat, fill)
	if err != nil {
		return out, err
	}
	out.Recorded = true
	out.Position = opened.Position
	return out, nil
}

// Closed is the result of Close.
type Closed struct {
	Position trade.Position
	Status   broker.CloseStatus
}

// Close closes the broker trade behind an OPEN position and writes the exit
// fields. A trade the broker already closed is looked up for its close price.
func (s *Service) Close(ctx context.Context, positionID, reason string) (Closed, error) {
	p, err := store.LoadPosition(ctx, s.store, positionID)
	if err != nil {
		return Closed{}, err
	}
	if !p.IsOpen() {
		return Closed{}, fmt.Errorf("%w: position %s is already %s", trade.ErrValidation, p.ID, p.Status)
	}
	if p.BrokerTradeID == "" {
		return Closed{}, fmt.Errorf("%w: position %s has no broker trade id", trade.ErrValidation, p.ID)
	}
	l := s.log.With().Str("position_id", p.ID).Str("trade_id", p.BrokerTradeID).Logger()

	res, err := s.broker.CloseTrade(ctx, p.BrokerTradeID)
	if err != nil {
		l.Error().Err(err).Str("reason", broker.Reason(err)).Msg("close failed")
		return Closed{}, err
	}

	price, pnl, ts := res.Price, res.RealizedPL, res.Time
	if res.Status == broker.AlreadyClosed {
		st, err := s.broker.Trade(ctx, p.BrokerTradeID)
		if err != nil {
			return Closed{}, fmt.Errorf("trade %s already closed, lookup failed: %w", p.BrokerTradeID, err)
		}
		price, pnl, ts = st.AverageClosePrice, st.RealizedPL, st.CloseTime
		if reason == "" {
			reason = exitReason(p, price)
		}
	}
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	if reason == "" {
		reason = "closed manually"
	}

	r := risk.RMultiple(pnl, risk.ComputeRiskGBP(p))
	if err := p.Close(ts, price, pnl, r); err != nil {
		return Closed{}, err
	}
	if err := s.store.SetMerge(ctx, trade.PositionsCollection, p.ID, p.ExitFields()); err != nil {
		l.Error().Err(err).Msg("trade closed at broker but position not updated")
		return Closed{Position: p, Status: res.Status}, err
	}

	switch id, err := s.explanationID(ctx, p.ID); {
	case err == nil:
		if err := s.store.SetMerge(ctx, trade.ExplanationsCollection, id, map[string]any{"exit_reason": reason}); err != nil {
			l.Warn().Err(err).Msg("exit reason not written")
		}
	case !errors.Is(err, store.ErrNotFound):
		l.Warn().Err(err).Msg("explanation lookup failed, exit reason not written")
	}

	l.Info().Str("status", string(res.Status)).Float64("exit_price", price).Float64("pnl_gbp", pnl).Float64("R", r).Msg("position closed")
	return Closed{Position: p, Status: res.Status}, nil
}

func (s *Service) plan(ctx context.Context, req OpenRequest) (plan, error) {
	if req.Side == "" {
		return plan{}, fmt.Errorf("%w: side is required", trade.ErrValidation)
	}
	instrument, err := s.broker.MapSymbol(req.Symbol)
	if err != nil {
		return plan{}, err
	}
	strat, err := s.strategy(ctx, req)
	if err != nil {
		return plan{}, err
	}
	if !strat.Enabled {
		return plan{}, fmt.Errorf("%w: strategy %s is disabled", trade.ErrValidation, strat.ID)
	}

	mid, err := s.broker.GetMidPrice(ctx, instrument)
	if err != nil {
		return plan{}, err
	}
	pl := plan{instrument: instrument, strategy: strat, mid: mid}

	pl.stop = req.Stop
	if pl.stop == 0 {
		if pl.stop, err = s.stop(ctx, instrument, req.Side, mid, strat); err != nil {
			return plan{}, err
		}
	}
	pl.takeProfit = req.TakeProfit
	if pl.takeProfit == 0 {
		pl.takeProfit = risk.TakeProfit(req.Side, mid, pl.stop, strat.TakeProfitR)
	}

	units := math.Abs(req.Units)
	if units == 0 {
		riskGBP := req.RiskGBP
		if riskGBP == 0 {
			riskGBP = strat.RiskPerTradeGBP
		}
		units = risk.UnitsForRisk(riskGBP, mid, pl.stop)
	}
	pl.units = units * req.Side.Sign()

	d := risk.Evaluate(s.policy, risk.TradeIntent{
		Instrument: instrument,
		Units:      pl.units,
		Entry:      mid,
		Stop:       pl.stop,
		TakeProfit: pl.takeProfit,
	})
	if !d.Allowed {
		return plan{}, fmt.Errorf("%w: risk check: %s", trade.ErrValidation, d.Error())
	}
	return pl, nil
}

func (s *Service) stop(ctx context.Context, instrument string, side trade.Side, entry float64, strat trade.Strategy) (float64, error) {
	candles, err := s.broker.Candles(ctx, instrument, strat.Timeframe, candleCount)
	if err != nil {
		return 0, fmt.Errorf("stop placement: %w", err)
	}
	if strat.StopLogic == trade.StopSwing {
		return risk.SwingStop(candles, side, risk.SwingLookback)
	}
	return risk.ATRStop(candles, side, entry, risk.ATRPeriod, strat.ATRMult)
}

// strategy loads the requested strategy, or synthesizes one when none is
// named.
func (s *Service) strategy(ctx context.Context, req OpenRequest) (trade.Strategy, error) {
	draft := trade.Position{
		Side:       req.Side,
		Symbol:     req.Symbol,
		StrategyID: req.StrategyID,
		MethodName: req.MethodName,
		EntryPrice: math.NaN(),
		StopPrice:  math.NaN(),
	}
	if !draft.HasStrategyDoc() {
		draft.StrategyID = trade.AIGeneratedStrategyID
		return risk.BuildStrategy(draft, nil), nil
	}
	doc, err := store.LoadStrategy(ctx, s.store, req.StrategyID)
	if err != nil {
		return trade.Strategy{}, fmt.Errorf("strategy %s: %w", req.StrategyID, err)
	}
	return risk.BuildStrategy(draft, &doc), nil
}

func (s *Service) position(req OpenRequest, pl plan, tag string, fill broker.OrderFill) trade.Position {
	entryTS := fill.Time
	if entryTS.IsZero() {
		entryTS = s.now().UTC()
	}
	method := req.MethodName
	if method == "" {
		method = pl.strategy.Name
	}
	return trade.Position{
		ID:            tag,
		Status:        trade.StatusOpen,
		Side:          req.Side,
		Symbol:        req.Symbol,
		EntryTS:       entryTS,
		EntryPrice:    fill.FillPrice,
		Qty:           math.Abs(fill.Units),
		StopPrice:     pl.stop,
		TPPrice:       pl.takeProfit,
		StrategyID:    pl.strategy.ID,
		SignalID:      req.SignalID,
		SlippageBps:   pl.strategy.SlippageBps,
		FeeBps:        pl.strategy.FeeBps,
		MethodName:    method,
		BrokerTradeID: fill.TradeID,
		ClientTag:     tag,
	}
}

// record writes the position and its explanation skeleton, both keyed by
// the client tag.
func (s *Service) record(ctx context.Context, p trade.Position, strat trade.Strategy, fill broker.OrderFill) (Opened, error) {
	out := Opened{Position: p, Fill: fill}
	l := s.log.With().Str("position_id", p.ID).Str("trade_id", fill.TradeID).Logger()

	if err := store.SavePosition(ctx, s.store, p); err != nil {
		l.Error().Err(err).Msg("order filled but position not recorded")
		return out, fmt.Errorf("order filled (trade %s) but position not recorded: %w", fill.TradeID, err)
	}

	e := s.skeleton(p, strat)
	if err := store.SaveExplanation(ctx, s.store, e); err != nil {
		l.Warn().Err(err).Msg("explanation not recorded")
		return out, fmt.Errorf("position %s recorded, explanation not: %w", p.ID, err)
	}
	out.Explanation = e
	return out, nil
}

// skeleton is the explanation written next to a new position. The
// beginner-friendly text is left for the backfill.
func (s *Service) skeleton(p trade.Position, strat trade.Strategy) trade.Explanation {
	// risk on the explanation reflects the filled position
	strat.RiskPerTradeGBP = risk.ComputeRiskGBP(p)
	return trade.Explanation{
		ID:                p.ID,
		PositionID:        p.ID,
		CreatedTS:         s.now().UTC(),
		PlainEnglishEntry: explain.PlainEnglish(p, strat),
	}
}

// explanationID finds the explanation for a position: the document keyed by
// the position id, else the first one whose position_id matches.
func (s *Service) explanationID(ctx context.Context, positionID string) (string, error) {
	_, err := s.store.Get(ctx, trade.ExplanationsCollection, positionID)
	if err == nil {
		return positionID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", err
	}
	docs, err := s.store.Query(ctx, trade.ExplanationsCollection, store.QueryOptions{})
	if err != nil {
		return "", err
	}
	for _, d := range docs {
		if ref, _ := d.Data["position_id"].(string); ref == positionID {
			return d.ID, nil
		}
	}
	return "", fmt.Errorf("explanation for position %s: %w", positionID, store.ErrNotFound)
}

// ensureExplanation writes the skeleton for p when it has no explanation.
// It reports whether it wrote one.
func (s *Service) ensureExplanation(ctx context.Context, p trade.Position) (bool, error) {
	_, err := s.explanationID(ctx, p.ID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	strat := risk.BuildStrategy(p, nil)
	if p.HasStrategyDoc() {
		if doc, err := store.LoadStrategy(ctx, s.store, p.StrategyID); err == nil {
			strat = risk.BuildStrategy(p, &doc)
		}
	}
	if err := store.SaveExplanation(ctx, s.store, s.skeleton(p, strat)); err != nil {
		return false, fmt.Errorf("position %s recorded, explanation not: %w", p.ID, err)
	}
	s.log.Info().Str("position_id", p.ID).Msg("missing explanation recorded")
	return true, nil
}

// exitReason guesses why the broker closed a trade on its own.
func exitReason(p trade.Position, price float64) string {
	if price == 0 {
		return "closed at broker"
	}
	dStop := math.Abs(price - p.StopPrice)
	dTP := math.Abs(price - p.TPPrice)
	switch {
	case p.TPPrice > 0 && dTP <= dStop:
		return "take profit hit"
	case !math.IsNaN(dStop):
		return "stop loss hit"
	}
	return "closed at broker"
}
