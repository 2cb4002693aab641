// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bes-catalog/internal/metrics"
	"github.com/pdiddy/bes-catalog/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over a JSON REST API",
	Long: `Serve starts the REST API under /api/v1 with a /healthz probe and
Prometheus metrics. The server shuts down gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appConfig.Server
		if cmd.Flags().Changed("addr") {
			cfg.Address, _ = cmd.Flags().GetString("addr")
		}

		backend, err := newBackend(appConfig.Extraction)
		if err != nil {
			return err
		}

		cat, err := openCatalog()
		if err != nil {
			return err
		}
		defer cat.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		srv := server.New(cfg, server.Deps{
			Store:          cat,
			Backend:        backend,
			Metrics:        metrics.New(reg),
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			Logger:         *zerolog.Ctx(cmd.Context()),
		})
		return srv.Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.address)")

	rootCmd.AddCommand(serveCmd)
}
