package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/papertrade/journal"
	"github.com/rustyeddy/papertrade/trade"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Review recorded positions",
	Long: `Render positions and their explanations as Org-mode entries.

Subcommands:
  show  - One position by id
  list  - Positions, newest first
  day   - Positions closed on a specific day
  stats - Win rate, profit factor and R for closed positions

Examples:
  papertrade journal show demo-position
  papertrade journal list --status OPEN
  papertrade journal day 2024-01-15`,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <position-id>",
	Short: "Show one position",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List positions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List positions closed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDay,
}

var journalStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize closed positions",
	Args:  cobra.NoArgs,
	RunE:  runJournalStats,
}

var (
	journalStatus string
	journalLimit  int
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalShowCmd, journalListCmd, journalDayCmd, journalStatsCmd)

	journalListCmd.Flags().StringVar(&journalStatus, "status", "", "OPEN or CLOSED")
	journalListCmd.Flags().IntVar(&journalLimit, "limit", 20, "maximum entries (0 = all)")
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	e, err := journal.Get(cmd.Context(), st, args[0])
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), journal.FormatEntryOrg(e))
	return nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	f := journal.Filter{Limit: journalLimit}
	if journalStatus != "" {
		s, err := trade.ParseStatus(journalStatus)
		if err != nil {
			return err
		}
		f.Status = s
	}
	return listEntries(cmd, f)
}

func runJournalDay(cmd *cobra.Command, args []string) error {
	day, err := time.ParseInLocation("2006-01-02", args[0], time.UTC)
	if err != nil {
		return fmt.Errorf("parse day: %w", err)
	}
	return listEntries(cmd, journal.Filter{ClosedSince: day, ClosedUntil: day.AddDate(0, 0, 1)})
}

func listEntries(cmd *cobra.Command, f journal.Filter) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	entries, invalid, err := journal.List(cmd.Context(), st, f)
	if err != nil {
		return err
	}
	if invalid > 0 {
		logger.Warn().Int("documents", invalid).Msg("skipped positions that failed validation")
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No positions found.")
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), journal.FormatEntriesOrg(entries))
	return nil
}

func runJournalStats(cmd *cobra.Command, args []string) error {
	st, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	entries, _, err := journal.List(cmd.Context(), st, journal.Filter{Status: trade.StatusClosed})
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), journal.FormatStats(journal.Summarize(entries)))
	return nil
}
