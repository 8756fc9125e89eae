package cmd

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/macshift/macshift/internal/agent"
	"github.com/macshift/macshift/internal/engine"
	"github.com/macshift/macshift/internal/oui"
)

var (
	setRandom    bool
	setVendor    string
	setCountry   string
	setPermanent bool
	setNoRules   bool
	setFormat    string
)

var setCmd = &cobra.Command{
	Use:   "set <interface> [address]",
	Short: "Change the MAC address of an interface",
	Long: "Change the MAC address of an interface to an explicit address, a random\n" +
		"locally-administered one (--random), a random address under a vendor prefix\n" +
		"(--vendor), or a random address from a vendor registered in a country\n" +
		"(--country). The pre-change address is backed up before the first mutation.",
	Args: cobra.RangeArgs(1, 2),
	RunE: runSet,
}

func init() {
	setCmd.Flags().BoolVar(&setRandom, "random", false, "generate a random locally-administered address")
	setCmd.Flags().StringVar(&setVendor, "vendor", "", "vendor prefix (1-6 octets) for a random suffix")
	setCmd.Flags().StringVar(&setCountry, "country", "", "two-letter country code to pick a vendor prefix from")
	setCmd.Flags().BoolVar(&setPermanent, "permanent", false, "persist the change across reboots")
	setCmd.Flags().BoolVar(&setNoRules, "no-rules", false, "do not let an active scheduled rule override the target")
	setCmd.Flags().StringVar(&setFormat, "format", "colon", "address display format (colon, hyphen, dot, raw)")
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(setFormat)
	if err != nil {
		return err
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		return fmt.Errorf("macshift set: %w", err)
	}
	eng := newEngine(cfg, logger)

	req := engine.Request{
		Interface:          args[0],
		Random:             setRandom,
		VendorPrefix:       setVendor,
		Permanent:          setPermanent,
		NoScheduleOverride: setNoRules,
	}
	if len(args) == 2 {
		req.Address = args[1]
	}

	if setCountry != "" {
		prefix, err := vendorPrefixForCountry(cfg, logger, setCountry)
		if err != nil {
			return fmt.Errorf("macshift set: %w", err)
		}
		if prefix != "" {
			req.VendorPrefix = prefix
		} else {
			logger.Warn("no registered vendor for country, using unconstrained random address",
				"country", setCountry)
			req.Random = true
		}
	}

	res, err := eng.Apply(req)
	if err != nil {
		return fmt.Errorf("macshift set: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n",
		res.Interface, res.Previous.Format(format), res.New.Format(format))
	if !res.HistoryPersisted {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: history entry could not be persisted")
	}
	return nil
}

// vendorPrefixForCountry picks one registered prefix for the country,
// or "" when the registry has none.
func vendorPrefixForCountry(cfg *agent.Config, logger *slog.Logger, country string) (string, error) {
	store, err := oui.NewStore(cfg.Engine.DataDir, logger)
	if err != nil {
		return "", err
	}
	prefixes := store.PrefixesForCountry(country)
	if len(prefixes) == 0 {
		return "", nil
	}
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(prefixes))))
	if err != nil {
		return "", fmt.Errorf("pick vendor prefix: %w", err)
	}
	return prefixes[i.Int64()].String(), nil
}
