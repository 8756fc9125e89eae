package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/macshift/macshift/internal/rules"
)

var (
	ruleInterface  string
	ruleAddress    string
	ruleRandom     bool
	ruleVendor     string
	ruleWindows    []string
	ruleDisabled   bool
	rulePrivileged bool
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage per-application MAC rules",
	Long: "Manage named rules that bind an interface to a target address, optionally\n" +
		"restricted to weekly schedule windows. Active rules are applied by the\n" +
		"watch loop and override manual set requests during their windows.",
}

var rulesAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or replace a rule",
	Long: "Add a rule, replacing any existing rule with the same name. The target is\n" +
		"an explicit --address, --random, or a --vendor prefix. Schedule windows are\n" +
		"given as --window \"mon 09:00-17:00\" and may repeat; a rule without windows\n" +
		"is active around the clock.",
	Args: cobra.ExactArgs(1),
	RunE: runRulesAdd,
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesRemove,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules",
	RunE:  runRulesList,
}

func init() {
	rulesAddCmd.Flags().StringVar(&ruleInterface, "interface", "", "interface the rule applies to (required)")
	rulesAddCmd.Flags().StringVar(&ruleAddress, "address", "", "explicit target address")
	rulesAddCmd.Flags().BoolVar(&ruleRandom, "random", false, "target a random locally-administered address")
	rulesAddCmd.Flags().StringVar(&ruleVendor, "vendor", "", "vendor prefix for a random suffix")
	rulesAddCmd.Flags().StringArrayVar(&ruleWindows, "window", nil, "schedule window, e.g. \"mon 09:00-17:00\" (repeatable)")
	rulesAddCmd.Flags().BoolVar(&ruleDisabled, "disabled", false, "store the rule disabled")
	rulesAddCmd.Flags().BoolVar(&rulePrivileged, "privileged", false, "let the rule bypass the filter policy")
	_ = rulesAddCmd.MarkFlagRequired("interface")

	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	rule := rules.AppRule{
		Name:       args[0],
		Interface:  ruleInterface,
		Enabled:    !ruleDisabled,
		Privileged: rulePrivileged,
	}

	switch {
	case ruleAddress != "":
		rule.Target = rules.TargetExplicit
		rule.Address = ruleAddress
	case ruleVendor != "":
		rule.Target = rules.TargetVendor
		rule.VendorPrefix = ruleVendor
	case ruleRandom:
		rule.Target = rules.TargetRandom
	default:
		return fmt.Errorf("macshift rules add: one of --address, --random, --vendor is required")
	}

	for _, spec := range ruleWindows {
		w, err := parseWindow(spec)
		if err != nil {
			return fmt.Errorf("macshift rules add: %w", err)
		}
		rule.Schedule = append(rule.Schedule, w)
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift rules add: %w", err)
	}
	eng := newEngine(cfg, logger)

	if err := eng.Rules().AddOrReplace(rule); err != nil {
		return fmt.Errorf("macshift rules add: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rule %s saved\n", rule.Name)
	return nil
}

func runRulesRemove(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift rules remove: %w", err)
	}
	eng := newEngine(cfg, logger)

	removed, err := eng.Rules().Remove(args[0])
	if err != nil {
		return fmt.Errorf("macshift rules remove: %w", err)
	}
	if !removed {
		return fmt.Errorf("macshift rules remove: rule %q not found", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "rule %s removed\n", args[0])
	return nil
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift rules list: %w", err)
	}
	eng := newEngine(cfg, logger)

	list, err := eng.Rules().List()
	if err != nil {
		return fmt.Errorf("macshift rules list: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no rules")
		return nil
	}
	for _, r := range list {
		fmt.Fprintln(cmd.OutOrStdout(), formatRule(r))
	}
	return nil
}

// formatRule renders one rule as a single line for listing.
func formatRule(r rules.AppRule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s ", r.Name, r.Interface)
	switch r.Target {
	case rules.TargetExplicit:
		fmt.Fprintf(&b, "-> %s", r.Address)
	case rules.TargetVendor:
		fmt.Fprintf(&b, "-> vendor %s", r.VendorPrefix)
	case rules.TargetRandom:
		b.WriteString("-> random")
	}
	if len(r.Schedule) == 0 {
		b.WriteString(" [always]")
	} else {
		b.WriteString(" [")
		for i, w := range r.Schedule {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s %s-%s", strings.ToLower(w.Day.String()[:3]), w.Start, w.End)
		}
		b.WriteString("]")
	}
	if !r.Enabled {
		b.WriteString(" (disabled)")
	}
	if r.Privileged {
		b.WriteString(" (privileged)")
	}
	return b.String()
}

// weekdays maps CLI day names to time.Weekday. Three-letter
// abbreviations and full names are accepted, case-insensitively.
var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// parseWindow parses "day HH:MM-HH:MM" into a schedule window.
func parseWindow(spec string) (rules.Window, error) {
	fields := strings.Fields(spec)
	if len(fields) != 2 {
		return rules.Window{}, fmt.Errorf("invalid window %q, want \"day HH:MM-HH:MM\"", spec)
	}
	day, ok := weekdays[strings.ToLower(fields[0])]
	if !ok {
		return rules.Window{}, fmt.Errorf("invalid window %q: unknown day %q", spec, fields[0])
	}
	start, end, ok := strings.Cut(fields[1], "-")
	if !ok {
		return rules.Window{}, fmt.Errorf("invalid window %q, want \"day HH:MM-HH:MM\"", spec)
	}
	w := rules.Window{Day: day, Start: start, End: end}
	if err := w.Validate(); err != nil {
		return rules.Window{}, fmt.Errorf("invalid window %q: %w", spec, err)
	}
	return w, nil
}
