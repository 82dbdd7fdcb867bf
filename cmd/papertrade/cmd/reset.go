package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/store"
	"github.com/rustyeddy/papertrade/trade"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every position, strategy and explanation",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

var resetYes bool

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm deletion")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return errors.New("reset deletes all trade data; pass --yes to confirm")
	}
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	counts, err := reset(ctx, st)
	for _, c := range collections {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d from %s\n", counts[c], c)
	}
	return err
}

var collections = []string{
	trade.ExplanationsCollection,
	trade.PositionsCollection,
	trade.StrategiesCollection,
}

func reset(ctx context.Context, st store.Store) (map[string]int, error) {
	counts := make(map[string]int, len(collections))
	for _, c := range collections {
		docs, err := st.Query(ctx, c, store.QueryOptions{})
		if err != nil {
			return counts, err
		}
		for _, d := range docs {
			if err := st.Delete(ctx, c, d.ID); err != nil {
				return counts, err
			}
			counts[c]++
		}
		logger.Info().Str("collection", c).Int("deleted", counts[c]).Msg("collection cleared")
	}
	return counts, nil
}
