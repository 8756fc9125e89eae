package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/macshift/macshift/internal/ledger"
	"github.com/macshift/macshift/internal/macaddr"
	"github.com/macshift/macshift/internal/oui"
)

var interfacesFormat string

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List interfaces with their current MAC addresses",
	Long: "List the network interfaces the platform reports, each with its current\n" +
		"address, the registered vendor when known, and whether an original\n" +
		"address is backed up.",
	RunE: runInterfaces,
}

func init() {
	interfacesCmd.Flags().StringVar(&interfacesFormat, "format", "colon", "address display format (colon, hyphen, dot, raw)")
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, _ []string) error {
	format, err := parseFormat(interfacesFormat)
	if err != nil {
		return err
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift interfaces: %w", err)
	}
	eng := newEngine(cfg, logger)

	names, err := eng.Adapter().ListInterfaces()
	if err != nil {
		return fmt.Errorf("macshift interfaces: %w", err)
	}

	registry, err := oui.NewStore(cfg.Engine.DataDir, logger)
	if err != nil {
		return fmt.Errorf("macshift interfaces: %w", err)
	}

	backups, err := eng.Ledger().List()
	if err != nil {
		return fmt.Errorf("macshift interfaces: %w", err)
	}

	for _, name := range names {
		addr, err := eng.Adapter().CurrentMAC(name)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: unavailable (%v)\n", name, err)
			continue
		}
		line := fmt.Sprintf("%s: %s", name, addr.Format(format))
		line += " " + describeAddress(registry, addr)
		if _, ok := backups[name]; ok {
			line += " [backed up]"
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}

// describeAddress names the vendor when the registry knows the prefix,
// otherwise classifies the address by its admin bit.
func describeAddress(registry *oui.Store, addr macaddr.Address) string {
	if v, ok := registry.Lookup(addr); ok {
		if v.Country != "" {
			return fmt.Sprintf("(%s, %s)", v.Name, v.Country)
		}
		return fmt.Sprintf("(%s)", v.Name)
	}
	if addr.LocallyAdministered() {
		return "(locally administered)"
	}
	return "(unknown vendor)"
}

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backed-up original MAC addresses",
	RunE:  runBackups,
}

func init() {
	rootCmd.AddCommand(backupsCmd)
}

func runBackups(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift backups: %w", err)
	}
	eng := newEngine(cfg, logger)

	records, err := eng.Ledger().List()
	if err != nil {
		return fmt.Errorf("macshift backups: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no backups")
		return nil
	}
	for _, rec := range sortedRecords(records) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (captured %s)\n",
			rec.Interface, rec.Original, rec.CapturedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// sortedRecords flattens the ledger map in interface-name order for
// stable output.
func sortedRecords(records map[string]ledger.Record) []ledger.Record {
	out := make([]ledger.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Interface < out[j].Interface })
	return out
}
