package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/deidentify"
)

var piiFlags struct {
	institute string
	columns   deidentify.PIIFlags
	output    string
}

var piiCmd = &cobra.Command{
	Use:   "pii <file>",
	Short: "Replace participant identifiers with a keyed hash",
	Long: `Hashes the name, birth date, gender and postal code columns of every record
into an "individual" column and removes them. The hash is SHA-256 over the
standardized values and the secret in pii.secret
(PARTICIPANT_DEIDENTIFIER_SECRET), so the same participant hashes identically
across files without the values being recoverable.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(config.ModePII); err != nil {
			return err
		}
		mapping, err := resolvePIIMapping(cfg, piiFlags.institute, piiFlags.columns)
		if err != nil {
			return err
		}

		table, err := deidentify.ReadFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := deidentify.Pseudonymize(table, mapping, cfg.PII.Secret); err != nil {
			return err
		}
		return deidentify.Write(table, piiFlags.output, os.Stdout)
	},
}

func init() {
	f := piiCmd.Flags()
	f.StringVarP(&piiFlags.institute, "institute", "i", "default", "institute whose PII mapping to use (uw, sch, default)")
	f.StringVarP(&piiFlags.columns.Name, "name", "n", "", "column holding the participant name")
	f.StringVarP(&piiFlags.columns.BirthDate, "dob", "d", "", "column holding the birth date")
	f.StringVarP(&piiFlags.columns.Gender, "gender", "g", "", "column holding the gender")
	f.StringVarP(&piiFlags.columns.PostalCode, "postal-code", "p", "", "column holding the postal code")
	f.StringVarP(&piiFlags.output, "output", "o", "", "output file (default: stdout)")
	rootCmd.AddCommand(piiCmd)
}
