package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/macshift/macshift/internal/history"
)

var (
	historyInterface string
	historySince     string
	historyUntil     string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the MAC transition audit trail",
	Long: "Show recorded MAC address transitions, oldest first. Filter by interface\n" +
		"and by an RFC 3339 time range (--since, --until).",
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyInterface, "interface", "", "only show entries for this interface")
	historyCmd.Flags().StringVar(&historySince, "since", "", "only show entries at or after this RFC 3339 time")
	historyCmd.Flags().StringVar(&historyUntil, "until", "", "only show entries before this RFC 3339 time")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	q := history.Query{Interface: historyInterface}

	if historySince != "" {
		t, err := time.Parse(time.RFC3339, historySince)
		if err != nil {
			return fmt.Errorf("macshift history: parse --since: %w", err)
		}
		q.From = t
	}
	if historyUntil != "" {
		t, err := time.Parse(time.RFC3339, historyUntil)
		if err != nil {
			return fmt.Errorf("macshift history: parse --until: %w", err)
		}
		q.To = t
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift history: %w", err)
	}
	eng := newEngine(cfg, logger)

	entries, err := eng.History().Entries(q)
	if err != nil {
		return fmt.Errorf("macshift history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no history entries")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s %s: %s -> %s (%s",
			e.Time.Format(time.RFC3339), e.Interface, e.Previous, e.New, e.Trigger)
		if e.Rule != "" {
			line += " " + e.Rule
		}
		fmt.Fprintln(cmd.OutOrStdout(), line+")")
	}
	return nil
}
