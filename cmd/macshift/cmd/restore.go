package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var restoreFormat string

var restoreCmd = &cobra.Command{
	Use:   "restore <interface>",
	Short: "Restore the original MAC address of an interface",
	Long: "Apply the backed-up original address to the interface and delete the\n" +
		"backup record. Fails when no backup exists for the interface.",
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().StringVar(&restoreFormat, "format", "colon", "address display format (colon, hyphen, dot, raw)")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(restoreFormat)
	if err != nil {
		return err
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift restore: %w", err)
	}
	eng := newEngine(cfg, logger)

	res, err := eng.Restore(args[0])
	if err != nil {
		return fmt.Errorf("macshift restore: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (original restored)\n",
		res.Interface, res.Previous.Format(format), res.New.Format(format))
	if !res.HistoryPersisted {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: history entry could not be persisted")
	}
	return nil
}
