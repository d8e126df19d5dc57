package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/config"
	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/logging"
	"github.com/nvandessel/cogmap/internal/mapfile"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cogmap",
		Short: "Fuzzy cognitive map simulator",
		Long: `cogmap loads fuzzy cognitive maps from YAML documents and simulates them.

A map is a set of concepts joined by weighted connections. Each epoch every
concept collects its weighted inputs and applies its activation function;
runs stop after a fixed number of epochs or once the map converges.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newValidateCmd(),
		newRunCmd(),
		newConvergeCmd(),
		newGraphCmd(),
		newHistoryCmd(),
		newConfigCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "cogmap version %s\n", version)
			}
		},
	}
}

// loadConfig loads the user configuration and applies the --log-level flag.
func loadConfig(cmd *cobra.Command) (*config.CogmapConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes operational logs to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *config.CogmapConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// resolvePath makes a relative path relative to --root.
func resolvePath(cmd *cobra.Command, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	root, _ := cmd.Flags().GetString("root")
	return filepath.Join(root, path)
}

// loadedMap is a built map plus the single-map document it came from.
type loadedMap struct {
	m        *fcm.Map
	document string
}

// loadMap loads the document at path and builds the named map (the first
// when name is empty).
func loadMap(path, name string) (*loadedMap, error) {
	doc, err := mapfile.Load(path)
	if err != nil {
		return nil, err
	}
	spec, err := doc.Find(name)
	if err != nil {
		return nil, err
	}
	m, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("build map %q: %w", spec.Name, err)
	}
	data, err := mapfile.Marshal(&mapfile.Document{Maps: []mapfile.MapSpec{*spec}})
	if err != nil {
		return nil, err
	}
	return &loadedMap{m: m, document: string(data)}, nil
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
