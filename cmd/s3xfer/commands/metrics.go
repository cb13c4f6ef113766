package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/systmms/s3xfer/internal/config"
	"github.com/systmms/s3xfer/internal/metrics"
)

func NewMetricsCommand(cfg *config.Config) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Serve Prometheus metrics",
		Long: `Serve the Prometheus endpoint on /metrics and a /health check until
interrupted. The address defaults to metrics.listen from the configuration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Definition == nil {
				if err := cfg.Load(); err != nil {
					return err
				}
			}
			if listen == "" {
				listen = cfg.Definition.Metrics.Listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveMetrics(ctx, listen, cfg, cmd)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address")
	return cmd
}

func serveMetrics(ctx context.Context, listen string, cfg *config.Config, cmd *cobra.Command) error {
	serverCfg := metrics.DefaultServerConfig()
	serverCfg.Listen = listen

	server := metrics.NewServer(serverCfg, cfg.Logger)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server on %s: %w", listen, err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics on http://%s%s\n", server.Addr(), serverCfg.Path)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}
