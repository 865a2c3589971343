package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/deidentify-cli/internal/address"
	"github.com/sells-group/deidentify-cli/internal/deidentify"
)

var tractFlags struct {
	institute   string
	columns     address.Flags
	output      string
	invalidate  bool
	keepZipCode bool
	tracts      string
}

var tractCmd = &cobra.Command{
	Use:   "tract <file>",
	Short: "Replace addresses with their 2016 Census tract",
	Long: `Reads a .json (one object per line, or an array), .csv, .xls or .xlsx file,
geocodes the address columns of every record, and writes the records with the
address columns removed and a census_tract column added.

The address columns come from the institute's mapping unless any of the column
flags (--street, --street2, --secondary, --city, --state, --zipcode) is given,
in which case only the flags are used. --street alone may name a column holding
the whole address as free text.

JSON input is written to stdout as one object per line, or to --output as a
JSON array. CSV and Excel input is written as CSV.

Geocoder responses, including misses, are cached; --invalidate-cache forces
fresh lookups.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// Reject unsupported files before opening anything.
		if _, err := deidentify.FormatFor(args[0]); err != nil {
			return err
		}

		mapping, err := resolveAddressMapping(cfg, tractFlags.institute, tractFlags.columns)
		if err != nil {
			return err
		}

		table, err := deidentify.ReadFile(ctx, args[0])
		if err != nil {
			return err
		}

		env, err := initLookupEnv(ctx, cfg, tractFlags.invalidate, tractFlags.tracts)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Processor().Annotate(ctx, table, deidentify.TractOptions{
			Mapping:     mapping,
			KeepZipCode: tractFlags.keepZipCode,
		})
		if err != nil {
			return err
		}
		logSummary(ctx, "tract", sum, env.Cache)

		return deidentify.Write(table, tractFlags.output, os.Stdout)
	},
}

func init() {
	f := tractCmd.Flags()
	f.StringVarP(&tractFlags.institute, "institute", "i", "default", "institute whose column mapping to use (uw, sch, kp, default)")
	f.StringVarP(&tractFlags.columns.Street, "street", "s", "", "column holding the street, or the whole address as free text")
	f.StringVar(&tractFlags.columns.Street2, "street2", "", "column holding the second street line")
	f.StringVar(&tractFlags.columns.Secondary, "secondary", "", "column holding secondary information (line 3)")
	f.StringVarP(&tractFlags.columns.City, "city", "c", "", "column holding the city")
	f.StringVar(&tractFlags.columns.State, "state", "", "column holding the state")
	f.StringVarP(&tractFlags.columns.ZipCode, "zipcode", "z", "", "column holding the zipcode")
	f.StringVarP(&tractFlags.output, "output", "o", "", "output file (default: stdout)")
	f.BoolVar(&tractFlags.invalidate, "invalidate-cache", false, "ignore cached geocoder responses")
	f.BoolVar(&tractFlags.keepZipCode, "keep-zipcode", false, "keep the zipcode column in the output")
	f.StringVar(&tractFlags.tracts, "tracts", "", "tract boundary file, .geojson or .shp (default: tracts.path)")
	rootCmd.AddCommand(tractCmd)
}
