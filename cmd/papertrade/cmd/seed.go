package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/explain"
	"github.com/rustyeddy/papertrade/risk"
	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/trade"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write a demo strategy, position and explanation",
	Long: `Write one demo strategy, one OPEN demo position and its explanation with
an empty beginner-friendly entry, so that a following backfill has work to
do. Running it again overwrites the same documents.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

var seedSymbol string

// Fixed ids keep seeding repeatable.
const (
	demoStrategyID = "demo-strategy"
	demoPositionID = "demo-position"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedSymbol, "symbol", "FX:EURUSD", "symbol for the demo position")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := seed(ctx, st, seedSymbol, time.Now().UTC()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Seeded %s/%s, %s/%s and %s/%s\n",
		trade.StrategiesCollection, demoStrategyID,
		trade.PositionsCollection, demoPositionID,
		trade.ExplanationsCollection, demoPositionID)
	return nil
}

func seed(ctx context.Context, st store.Store, symbol string, now time.Time) error {
	s := trade.Strategy{
		ID:              demoStrategyID,
		Name:            "Demo ATR Trend",
		Symbol:          symbol,
		Timeframe:       risk.DefaultTimeframe,
		RiskPerTradeGBP: 43,
		StopLogic:       trade.StopATR,
		ATRMult:         risk.DefaultATRMult,
		TakeProfitR:     risk.DefaultTakeProfitR,
		SlippageBps:     0.5,
		FeeBps:          0.2,
		Enabled:         true,
	}
	p := trade.Position{
		ID:          demoPositionID,
		Status:      trade.StatusOpen,
		Side:        trade.Long,
		Symbol:      symbol,
		EntryTS:     now,
		EntryPrice:  1.0923,
		Qty:         10000,
		StopPrice:   1.0880,
		TPPrice:     1.1009,
		StrategyID:  demoStrategyID,
		SignalID:    "demo-signal",
		SlippageBps: 0.5,
		FeeBps:      0.2,
		MethodName:  "Demo Seed",
	}
	e := trade.Explanation{
		ID:                demoPositionID,
		PositionID:        demoPositionID,
		CreatedTS:         now,
		PlainEnglishEntry: explain.PlainEnglish(p, s),
		ModelNotes:        "seeded",
	}

	if err := store.SaveStrategy(ctx, st, s); err != nil {
		return err
	}
	if err := store.SavePosition(ctx, st, p); err != nil {
		return err
	}
	return store.SaveExplanation(ctx, st, e)
}
