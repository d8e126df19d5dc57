package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/mcp"
	"github.com/nvandessel/cogmap/internal/store"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve cogmap tools over the Model Context Protocol (stdio)",
		Long: `Start an MCP server on stdin/stdout.

Tools: cogmap_run, cogmap_converge, cogmap_graph, cogmap_validate and
cogmap_history. Map files are resolved inside --root. Recorded runs are
readable as cogmap://runs/{id} resources.

Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			noHistory, _ := cmd.Flags().GetBool("no-history")
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("failed to resolve root: %w", err)
			}

			var rs store.RunStore
			if !noHistory {
				dbPath, err := cfg.StorePath()
				if err != nil {
					return fmt.Errorf("failed to resolve store path: %w", err)
				}
				sqlStore, err := store.NewSQLiteRunStore(dbPath)
				if err != nil {
					return fmt.Errorf("failed to open run history: %w", err)
				}
				rs = sqlStore
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			var registerer prometheus.Registerer
			if metricsAddr != "" {
				registry := prometheus.NewRegistry()
				registerer = registry
				addr, err := serveMetrics(ctx, metricsAddr, registry, logger)
				if err != nil {
					if rs != nil {
						rs.Close()
					}
					return err
				}
				logger.Info("metrics listening", "addr", addr.String())
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:       "cogmap",
				Version:    version,
				Root:       absRoot,
				Store:      rs,
				Simulation: cfg.Simulation,
				Logger:     logger,
				Registerer: registerer,
			})
			if err != nil {
				if rs != nil {
					rs.Close()
				}
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			return server.Run(ctx)
		},
	}

	cmd.Flags().Bool("no-history", false, "Disable run recording and the cogmap_history tool's store")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	return cmd
}

// serveMetrics exposes registry on addr/metrics until ctx ends and returns
// the bound address.
func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	return ln.Addr(), nil
}
