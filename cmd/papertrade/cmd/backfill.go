package cmd

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/backfill"
	"github.com/rustyeddy/papertrade/explain"
	"github.com/rustyeddy/papertrade/lock"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fill in missing beginner-friendly explanations",
	Long: `Scan every explanation, and for each one with an empty
beginner_friendly_entry generate the text from its position and strategy and
merge it back. Items that fail are logged and skipped; only failing to list
the explanations ends the run with a non-zero exit.

Examples:
  papertrade backfill
  papertrade backfill --dry-run
  papertrade backfill --limit 10 --delay 2s --metrics-file /var/lib/node_exporter/papertrade.prom`,
	Args: cobra.NoArgs,
	RunE: runBackfill,
}

var (
	backfillDryRun      bool
	backfillLimit       int
	backfillDelay       string
	backfillMetricsFile string
	backfillNoLock      bool
)

func init() {
	rootCmd.AddCommand(backfillCmd)

	backfillCmd.Flags().BoolVar(&backfillDryRun, "dry-run", false, "list candidates without generating or writing")
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 0, "process at most n candidates (0 = all)")
	backfillCmd.Flags().StringVar(&backfillDelay, "delay", "", "pause after each item, overrides backfill.delay (e.g. 1.2s)")
	backfillCmd.Flags().StringVar(&backfillMetricsFile, "metrics-file", "", "write prometheus counters to this textfile")
	backfillCmd.Flags().BoolVar(&backfillNoLock, "no-lock", false, "skip the redis single-run lock")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	delay := cfg.Backfill.Delay
	if backfillDelay != "" {
		d, err := parseDuration(backfillDelay)
		if err != nil {
			return fmt.Errorf("--delay: %w", err)
		}
		delay = d
	}
	metricsFile := cfg.Backfill.MetricsFile
	if backfillMetricsFile != "" {
		metricsFile = backfillMetricsFile
	}

	if !backfillNoLock && !backfillDryRun {
		locker, closeLocker, err := newLocker(ctx)
		if err != nil {
			return err
		}
		defer closeLocker()
		unlock, err := locker.Acquire(ctx, "backfill", cfg.Backfill.LockTTL)
		if errors.Is(err, lock.ErrHeld) {
			return fmt.Errorf("another backfill is running: %w", err)
		}
		if err != nil {
			return err
		}
		defer unlock()
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var gen explain.Generator = explain.Template{}
	if !backfillDryRun {
		if gen, err = newGenerator(); err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	r := backfill.New(st, gen,
		backfill.WithDelay(delay),
		backfill.WithLimit(backfillLimit),
		backfill.WithDryRun(backfillDryRun),
		backfill.WithLogger(logger),
		backfill.WithMetrics(backfill.NewMetrics(reg)),
	)

	sum, runErr := r.Run(ctx)

	out := cmd.OutOrStdout()
	for _, res := range sum.Results {
		if res.Outcome == backfill.DryRun {
			fmt.Fprintf(out, "would update %s (position %s)\n", res.ExplanationID, res.PositionID)
		}
	}
	fmt.Fprintf(out, "Backfill complete: total=%d updated=%d skipped=%d\n", sum.Total, sum.Updated, sum.Skipped)

	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			logger.Warn().Err(err).Str("file", metricsFile).Msg("metrics not written")
		}
	}
	return runErr
}
