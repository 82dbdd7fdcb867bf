package store

import (
	"context"

	"github.com/rustyeddy/papertrade/trade"
)

func LoadPosition(ctx context.Context, s Store, id string) (trade.Position, error) {
	doc, err := s.Get(ctx, trade.PositionsCollection, id)
	if err != nil {
		return trade.Position{}, err
	}
	return trade.DecodePosition(doc.ID, doc.Data)
}

func LoadStrategy(ctx context.Context, s Store, id string) (trade.Strategy, error) {
	doc, err := s.Get(ctx, trade.StrategiesCollection, id)
	if err != nil {
		return trade.Strategy{}, err
	}
	return trade.DecodeStrategy(doc.ID, doc.Data)
}

func LoadExplanation(ctx context.Context, s Store, id string) (trade.Explanation, error) {
	doc, err := s.Get(ctx, trade.ExplanationsCollection, id)
	if err != nil {
		return trade.Explanation{}, err
	}
	return trade.DecodeExplanation(doc.ID, doc.Data)
}

func SavePosition(ctx context.Context, s Store, p trade.Position) error {
	return s.Set(ctx, trade.PositionsCollection, p.ID, p.Fields())
}

func SaveStrategy(ctx context.Context, s Store, st trade.Strategy) error {
	return s.Set(ctx, trade.StrategiesCollection, st.ID, st.Fields())
}

func SaveExplanation(ctx context.Context, s Store, e trade.Explanation) error {
	return s.Set(ctx, trade.ExplanationsCollection, e.ID, e.Fields())
}
