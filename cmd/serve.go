package main

import (
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/sells-group/deidentify-cli/internal/config"
	"github.com/sells-group/deidentify-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve census tract lookups over HTTP",
	Long: `Starts an HTTP service answering POST /v1/tract and POST /v1/tract/batch with
the census tract of each address. Coordinates are never returned. Requests
need an HS256 bearer token when server.jwt_secret is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate(config.ModeServe); err != nil {
			return err
		}

		env, err := initLookupEnv(ctx, cfg, false, "")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := server.New(cfg.Server, env.Processor(), env.Metrics, prometheus.DefaultGatherer)
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
