package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/deidentify-cli/internal/address"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

var benchmarkFlags struct {
	runs       int
	invalidate bool
}

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark <address>",
	Short: "Time the lookup of one free-text address",
	Long: `Geocodes a single free-text address and locates its tract, printing the
time taken by each run. The first run shows the provider latency; later runs
hit the cache unless --invalidate-cache is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initLookupEnv(ctx, cfg, benchmarkFlags.invalidate, "")
		if err != nil {
			return err
		}
		defer env.Close()

		p := env.Processor()
		addr := geocode.AddressInput{Street: address.Normalize(args[0])}
		for i := range max(1, benchmarkFlags.runs) {
			began := time.Now()
			geoid, res, err := p.Lookup(ctx, addr)
			if err != nil {
				return err
			}
			fmt.Printf("run %d: %s tract=%q matched=%t source=%s\n",
				i+1, time.Since(began).Round(time.Microsecond), geoid, res.Matched, res.Source)
		}
		return nil
	},
}

func init() {
	benchmarkCmd.Flags().IntVarP(&benchmarkFlags.runs, "runs", "n", 1, "number of lookups")
	benchmarkCmd.Flags().BoolVar(&benchmarkFlags.invalidate, "invalidate-cache", false, "skip cache reads")
	rootCmd.AddCommand(benchmarkCmd)
}
