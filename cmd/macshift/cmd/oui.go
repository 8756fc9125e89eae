package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/macshift/macshift/internal/macaddr"
	"github.com/macshift/macshift/internal/oui"
)

// updateTimeout bounds the registry download.
const updateTimeout = 5 * time.Minute

var ouiCmd = &cobra.Command{
	Use:   "oui",
	Short: "Manage the vendor (OUI) registry",
	Long: "Manage the local snapshot of the IEEE OUI registry used for vendor\n" +
		"lookups and country-based address generation.",
}

var ouiUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the latest IEEE OUI registry",
	RunE:  runOUIUpdate,
}

var ouiLookupCmd = &cobra.Command{
	Use:   "lookup <address-or-prefix>",
	Short: "Look up the vendor of an address",
	Args:  cobra.ExactArgs(1),
	RunE:  runOUILookup,
}

var ouiCountriesCmd = &cobra.Command{
	Use:   "countries",
	Short: "List countries with registered vendors",
	RunE:  runOUICountries,
}

func init() {
	ouiCmd.AddCommand(ouiUpdateCmd)
	ouiCmd.AddCommand(ouiLookupCmd)
	ouiCmd.AddCommand(ouiCountriesCmd)
	rootCmd.AddCommand(ouiCmd)
}

func runOUIUpdate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift oui update: %w", err)
	}

	store, err := oui.NewStore(cfg.Engine.DataDir, logger)
	if err != nil {
		return fmt.Errorf("macshift oui update: %w", err)
	}

	client := &http.Client{Timeout: updateTimeout}
	if err := store.Update(cmd.Context(), client, cfg.OUI.RegistryURL); err != nil {
		return fmt.Errorf("macshift oui update: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "registry updated: %d vendors\n", store.Len())
	return nil
}

func runOUILookup(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift oui lookup: %w", err)
	}

	store, err := oui.NewStore(cfg.Engine.DataDir, logger)
	if err != nil {
		return fmt.Errorf("macshift oui lookup: %w", err)
	}

	// Accept a full address or a bare prefix; pad a prefix out to a
	// full address for the lookup, which only reads the OUI octets.
	addr, err := macaddr.Parse(args[0])
	if err != nil {
		prefix, perr := macaddr.ParsePrefix(args[0])
		if perr != nil || prefix.Len() < 3 {
			return fmt.Errorf("macshift oui lookup: %w", err)
		}
		addr, err = macaddr.WithVendorPrefix(prefix)
		if err != nil {
			return fmt.Errorf("macshift oui lookup: %w", err)
		}
	}

	v, ok := store.Lookup(addr)
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no registered vendor\n", args[0])
		return nil
	}
	if v.Country != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", v.Prefix, v.Name, v.Country)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", v.Prefix, v.Name)
	}
	return nil
}

func runOUICountries(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift oui countries: %w", err)
	}

	store, err := oui.NewStore(cfg.Engine.DataDir, logger)
	if err != nil {
		return fmt.Errorf("macshift oui countries: %w", err)
	}

	for _, c := range store.Countries() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d prefixes)\n", c, len(store.PrefixesForCountry(c)))
	}
	return nil
}
