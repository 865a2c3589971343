package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/deidentify-cli/internal/address"
	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/deidentify"
)

var deidentifyFlags struct {
	institute  string
	output     string
	invalidate bool
}

var deidentifyCmd = &cobra.Command{
	Use:   "deidentify <file>",
	Short: "Assign census tracts and hash participant identifiers in one pass",
	Long: `Runs "tract" with the zipcode kept, then "pii" over the same records, using
the institute's address and PII mappings.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(config.ModePII); err != nil {
			return err
		}
		if _, err := deidentify.FormatFor(args[0]); err != nil {
			return err
		}

		addrMap, err := resolveAddressMapping(cfg, deidentifyFlags.institute, address.Flags{})
		if err != nil {
			return err
		}
		piiMap, err := resolvePIIMapping(cfg, deidentifyFlags.institute, deidentify.PIIFlags{})
		if err != nil {
			return err
		}

		table, err := deidentify.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}

		env, err := initLookupEnv(ctx, cfg, deidentifyFlags.invalidate, "")
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Processor().Deidentify(ctx, table, addrMap, piiMap, cfg.PII.Secret)
		if err != nil {
			return err
		}
		logSummary(ctx, "deidentify", sum, env.Cache)

		return deidentify.Write(table, deidentifyFlags.output, os.Stdout)
	},
}

func init() {
	f := deidentifyCmd.Flags()
	f.StringVarP(&deidentifyFlags.institute, "institute", "i", "default", "institute whose mappings to use (uw, sch, default)")
	f.StringVarP(&deidentifyFlags.output, "output", "o", "", "output file (default: stdout)")
	f.BoolVar(&deidentifyFlags.invalidate, "invalidate-cache", false, "ignore cached geocoder responses")
	rootCmd.AddCommand(deidentifyCmd)
}
