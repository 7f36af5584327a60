package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"promptcanvas/internal/logging"
	"promptcanvas/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Serves POST /prompt for the canvas front end, plus /healthz, /tools and
/metrics. Stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx)
}

func serve(ctx context.Context) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.connectModel(ctx); err != nil {
		return err
	}

	srvCfg := server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxConnections: cfg.Server.MaxConnections,
		ReadTimeout:    cfg.GetReadTimeout(),
		WriteTimeout:   cfg.GetWriteTimeout(),
	}
	var opts []server.Option
	if a.promRegistry != nil {
		srvCfg.MetricsPath = cfg.Metrics.Path
		opts = append(opts, server.WithGatherer(prometheus.Gatherer(a.promRegistry)))
	}

	logging.Server("Starting canvasd on %s", cfg.Server.Addr)
	return server.New(srvCfg, a.service, a.registry, opts...).ListenAndServe(ctx)
}
