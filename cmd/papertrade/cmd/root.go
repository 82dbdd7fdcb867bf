package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/config"
)

var rootCmd = &cobra.Command{
	Use:   "papertrade",
	Short: "Paper-trading companion: orders, positions and trade explanations",
	Long: `papertrade opens and closes practice positions on OANDA, records them in
the document store, and backfills beginner-friendly explanations for them.

Configuration comes from a YAML file, a .env file and PAPERTRADE_*
environment variables, in that order.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

var (
	cfgFile   string
	logLevel  string
	storeType string

	cfg    *config.Config
	logger zerolog.Logger
)

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "papertrade.yaml", "config file (missing file means defaults)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&storeType, "store", "", "override store.type: firestore|sqlite|memory")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	if storeType != "" {
		c.Store.Type = storeType
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	logger = newLogger(os.Stderr, c.Log)
	return nil
}

// noSetup skips config loading for commands that do not need it.
func noSetup(*cobra.Command, []string) error { return nil }

func newLogger(w io.Writer, lc config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if lc.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
