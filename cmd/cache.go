package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/deidentify-cli/internal/store"
	"github.com/sells-group/deidentify-cli/pkg/geocode"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the geocode response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache entry counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := store.Open(cmd.Context(), cfg.Cache)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		st, err := c.Stats(cmd.Context())
		if err != nil {
			return err
		}
		formatCacheStats(os.Stdout, st, cfg.Cache.TTL().String())
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := store.Open(cmd.Context(), cfg.Cache)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck

		n, err := c.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		zap.L().Info("purged expired geocode cache entries", zap.Int64("deleted", n))
		fmt.Printf("deleted %d expired entries\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}

// formatCacheStats writes cache counters as a two-column table.
func formatCacheStats(out io.Writer, st geocode.CacheStats, ttl string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "backend\t%s\n", st.Backend)
	_, _ = fmt.Fprintf(w, "ttl\t%s\n", ttl)
	_, _ = fmt.Fprintf(w, "entries\t%d\n", st.Entries)
	_, _ = fmt.Fprintf(w, "matched\t%d\n", st.Matched)
	_, _ = fmt.Fprintf(w, "expired\t%d\n", st.Expired)
	_ = w.Flush()
}
