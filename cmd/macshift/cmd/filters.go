package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/macshift/macshift/internal/filter"
)

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "Manage the whitelist/blacklist filter policy",
	Long: "Manage the allow and deny prefix lists every address change is checked\n" +
		"against. Prefixes are 1-6 octets. A deny match rejects unless a longer\n" +
		"allow prefix carves an exception; a non-empty allow list rejects\n" +
		"everything it does not cover.",
}

var filtersAllowCmd = &cobra.Command{
	Use:   "allow <prefix>",
	Short: "Add a whitelist prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFiltersAdd(cmd, filter.ScopeAllow, args[0])
	},
}

var filtersDenyCmd = &cobra.Command{
	Use:   "deny <prefix>",
	Short: "Add a blacklist prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFiltersAdd(cmd, filter.ScopeDeny, args[0])
	},
}

var filtersRemoveCmd = &cobra.Command{
	Use:   "remove <allow|deny> <prefix>",
	Short: "Remove a filter prefix",
	Args:  cobra.ExactArgs(2),
	RunE:  runFiltersRemove,
}

var filtersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List filter prefixes",
	RunE:  runFiltersList,
}

func init() {
	filtersCmd.AddCommand(filtersAllowCmd)
	filtersCmd.AddCommand(filtersDenyCmd)
	filtersCmd.AddCommand(filtersRemoveCmd)
	filtersCmd.AddCommand(filtersListCmd)
	rootCmd.AddCommand(filtersCmd)
}

func runFiltersAdd(cmd *cobra.Command, scope filter.Scope, prefix string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift filters: %w", err)
	}
	eng := newEngine(cfg, logger)

	if err := eng.Filters().Add(scope, prefix); err != nil {
		return fmt.Errorf("macshift filters: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s prefix %s saved\n", scope, prefix)
	return nil
}

func runFiltersRemove(cmd *cobra.Command, args []string) error {
	var scope filter.Scope
	switch args[0] {
	case "allow":
		scope = filter.ScopeAllow
	case "deny":
		scope = filter.ScopeDeny
	default:
		return fmt.Errorf("macshift filters remove: unknown scope %q (valid: allow, deny)", args[0])
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift filters remove: %w", err)
	}
	eng := newEngine(cfg, logger)

	removed, err := eng.Filters().Remove(scope, args[1])
	if err != nil {
		return fmt.Errorf("macshift filters remove: %w", err)
	}
	if !removed {
		return fmt.Errorf("macshift filters remove: %s prefix %q not found", scope, args[1])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s prefix %s removed\n", scope, args[1])
	return nil
}

func runFiltersList(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift filters list: %w", err)
	}
	eng := newEngine(cfg, logger)

	list, err := eng.Filters().List()
	if err != nil {
		return fmt.Errorf("macshift filters list: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no filter prefixes")
		return nil
	}
	for _, r := range list {
		fmt.Fprintf(cmd.OutOrStdout(), "%-5s %s\n", r.Scope, r.Prefix)
	}
	return nil
}
