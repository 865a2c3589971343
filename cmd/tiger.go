package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/db"
	"github.com/sells-group/deidentify-cli/internal/fetcher"
	"github.com/sells-group/deidentify-cli/internal/tiger"
)

var tigerFlags struct {
	states      string
	year        int
	source      string
	baseURL     string
	concurrency int
	force       bool
}

var tigerCmd = &cobra.Command{
	Use:   "tiger",
	Short: "Download and convert Census TIGER/Line tract boundaries",
	Long: `Builds the tract boundary files used for point-in-polygon lookup. States are
read from tiger.states_file (names) and tiger.fips_file (two-digit FIPS codes),
paired line by line.

For each state, build runs download -> unzip -> convert. A step is skipped when
its output exists and is newer than its inputs; --force rebuilds everything.`,
}

var tigerBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Download, unzip and convert tract shapefiles to GeoJSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, states, err := tigerPipeline()
		if err != nil {
			return err
		}

		began := time.Now()
		results, err := p.Build(ctx, states)
		if err != nil {
			return err
		}

		built := 0
		for _, r := range results {
			for _, t := range r.Tasks {
				if !t.Skipped {
					built++
				}
			}
		}
		zap.L().Info("tiger build complete",
			zap.Int("states", len(results)),
			zap.Int("tasks_run", built),
			zap.Duration("elapsed", time.Since(began)),
		)
		for _, r := range results {
			fmt.Println(r.GeoJSON)
		}
		return nil
	},
}

var tigerLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load tract polygons into PostGIS (tiger_data.tract)",
	Long: `Downloads and unzips the tract shapefiles, then COPYs them into
tiger_data.tract for the postgis tract backend. States already loaded for the
year are skipped unless --force is given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p, states, err := tigerPipeline()
		if err != nil {
			return err
		}

		loader, closePool, err := tigerLoader(ctx)
		if err != nil {
			return err
		}
		defer closePool()

		if err := loader.Migrate(ctx); err != nil {
			return err
		}

		results, err := p.Load(ctx, loader, states)
		if err != nil {
			return err
		}
		formatLoadResults(os.Stdout, results)
		return nil
	},
}

var tigerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which tract artifacts exist per state",
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, states, err := tigerPipeline()
		if err != nil {
			return err
		}
		formatArtifactStatus(os.Stdout, p.Status(states))

		showDB, _ := cmd.Flags().GetBool("db")
		if !showDB {
			return nil
		}
		loader, closePool, err := tigerLoader(cmd.Context())
		if err != nil {
			return err
		}
		defer closePool()

		rows, err := loader.Status(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println()
		formatLoadStatus(os.Stdout, rows)
		return nil
	},
}

func init() {
	pf := tigerCmd.PersistentFlags()
	pf.StringVar(&tigerFlags.states, "states", "", "comma-separated state names or FIPS codes (default: all listed)")
	pf.IntVar(&tigerFlags.year, "year", 0, "TIGER/Line year (default: tiger.year)")
	pf.StringVar(&tigerFlags.source, "source", "", "download over http or ftp (default: tiger.source)")
	pf.StringVar(&tigerFlags.baseURL, "base-url", "", "mirror to download from instead of the Census servers")
	pf.IntVar(&tigerFlags.concurrency, "concurrency", 0, "states processed in parallel (default: tiger.concurrency)")
	pf.BoolVar(&tigerFlags.force, "force", false, "rebuild or reload even when up to date")

	tigerStatusCmd.Flags().Bool("db", false, "also show load status from PostGIS")

	tigerCmd.AddCommand(tigerBuildCmd, tigerLoadCmd, tigerStatusCmd)
	rootCmd.AddCommand(tigerCmd)
}

// tigerOptions merges flags over config.
func tigerOptions(c config.TigerConfig) tiger.Options {
	opts := tiger.Options{
		Year:        c.Year,
		DataDir:     c.DataDir,
		Source:      c.Source,
		Concurrency: c.Concurrency,
		BaseURL:     tigerFlags.baseURL,
		Force:       tigerFlags.force,
	}
	if tigerFlags.year != 0 {
		opts.Year = tigerFlags.year
	}
	if tigerFlags.source != "" {
		opts.Source = tigerFlags.source
	}
	if tigerFlags.concurrency > 0 {
		opts.Concurrency = tigerFlags.concurrency
	}
	return opts
}

func tigerPipeline() (*tiger.Pipeline, []tiger.State, error) {
	opts := tigerOptions(cfg.Tiger)
	check := *cfg
	check.Tiger.Year, check.Tiger.Source = opts.Year, opts.Source
	if err := check.Validate(config.ModeTiger); err != nil {
		return nil, nil, err
	}

	states, err := tiger.LoadStates(cfg.Tiger.StatesFile, cfg.Tiger.FIPSFile)
	if err != nil {
		return nil, nil, err
	}
	states, err = tiger.FilterStates(states, splitAndTrim(tigerFlags.states))
	if err != nil {
		return nil, nil, err
	}

	f, err := fetcher.New(opts.Source, 0)
	if err != nil {
		return nil, nil, err
	}
	return tiger.NewPipeline(opts, f), states, nil
}

func tigerLoader(ctx context.Context) (*tiger.Loader, func(), error) {
	url := cfg.Tiger.DatabaseURL
	if url == "" {
		url = cfg.Tracts.DatabaseURL
	}
	if url == "" {
		return nil, nil, eris.New("tiger: set tiger.database_url or tracts.database_url")
	}
	pool, err := db.Connect(ctx, url, db.PoolConfig{})
	if err != nil {
		return nil, nil, eris.Wrap(err, "tiger: connect")
	}
	return tiger.NewLoader(pool, db.DefaultCopyBatch), pool.Close, nil
}

// splitAndTrim splits a comma-separated list, dropping empty items.
func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

// formatArtifactStatus writes one row per state.
func formatArtifactStatus(out io.Writer, rows []tiger.ArtifactStatus) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIPS\tSTATE\tARCHIVE\tSHAPEFILE\tGEOJSON\tSTALE\tBUILT")
	_, _ = fmt.Fprintln(w, "----\t-----\t-------\t---------\t-------\t-----\t-----")
	for _, r := range rows {
		built := "-"
		if !r.BuiltAt.IsZero() {
			built = r.BuiltAt.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.State.FIPS, r.State.Name, yesNo(r.Archive), yesNo(r.Shapefile), yesNo(r.GeoJSON), yesNo(r.Stale), built)
	}
	_ = w.Flush()
}

// formatLoadResults writes the outcome of a load run.
func formatLoadResults(out io.Writer, results []tiger.LoadResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIPS\tSTATE\tROWS\tDURATION\tRESULT")
	_, _ = fmt.Fprintln(w, "----\t-----\t----\t--------\t------")
	for _, r := range results {
		result := "loaded"
		if r.Skipped {
			result = "skipped"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.State.FIPS, r.State.Name, r.Rows, r.Duration.Round(time.Millisecond), result)
	}
	_ = w.Flush()
}

// formatLoadStatus writes the tiger_data.load_status bookkeeping rows.
func formatLoadStatus(out io.Writer, rows []tiger.StatusRow) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(out, "No tract data loaded yet")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIPS\tSTATE\tYEAR\tROWS\tDURATION\tLOADED AT")
	_, _ = fmt.Fprintln(w, "----\t-----\t----\t----\t--------\t---------")
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%dms\t%s\n",
			r.StateFIPS, r.StateName, r.Year, r.RowCount, r.DurationMs, r.LoadedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
