package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/visualization"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <file>",
		Short: "Visualize a map",
		Long: `Output a map in DOT (Graphviz) or JSON format, or serve it over HTTP.

The server exposes /graph.dot, /graph.json, /api/run?epochs=N and
/api/converge?max_delta=D&max_epochs=N. Simulations run on copies of the
map, so every request starts from the document's initial state.

Examples:
  cogmap graph maps.yaml | dot -Tsvg > ring.svg
  cogmap graph maps.yaml --map pair --format json
  cogmap graph maps.yaml --serve --addr 127.0.0.1:8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapName, _ := cmd.Flags().GetString("map")
			format, _ := cmd.Flags().GetString("format")
			serve, _ := cmd.Flags().GetBool("serve")
			addr, _ := cmd.Flags().GetString("addr")
			noOpen, _ := cmd.Flags().GetBool("no-open")

			lm, err := loadMap(resolvePath(cmd, args[0]), mapName)
			if err != nil {
				return err
			}

			if serve {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return runGraphServer(cmd, lm.m, newLogger(cmd, cfg), addr, noOpen)
			}

			f, err := visualization.ParseFormat(format)
			if err != nil {
				return err
			}
			switch f {
			case visualization.FormatDOT:
				fmt.Fprint(cmd.OutOrStdout(), visualization.RenderDOT(lm.m))
			case visualization.FormatJSON:
				if err := printJSON(cmd, visualization.RenderJSON(lm.m)); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("map", "", "Map to render (default: first map in the document)")
	cmd.Flags().String("format", "dot", "Output format: dot or json")
	cmd.Flags().Bool("serve", false, "Start a local server for the map")
	cmd.Flags().String("addr", "127.0.0.1:0", "Listen address for --serve")
	cmd.Flags().Bool("no-open", false, "Don't open a browser when serving")

	return cmd
}

// runGraphServer serves m and blocks until Ctrl-C or the command's context
// ends.
func runGraphServer(cmd *cobra.Command, m *fcm.Map, logger *slog.Logger, addr string, noOpen bool) error {
	srv := visualization.NewServer(m, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	srvCtx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(srvCtx, addr) }()

	// Wait for server to start
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && srv.Addr() == "" {
		select {
		case err := <-errCh:
			return fmt.Errorf("server error: %w", err)
		case <-time.After(10 * time.Millisecond):
		}
	}

	listen := srv.Addr()
	if listen == "" {
		return fmt.Errorf("server failed to start")
	}

	url := "http://" + listen
	fmt.Fprintf(cmd.OutOrStdout(), "Graph server for %q running at %s\n", m.Name(), url)
	fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")

	if !noOpen {
		if err := visualization.OpenBrowser(url); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
