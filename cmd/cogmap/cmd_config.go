package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage cogmap configuration",
		Long: `View and modify cogmap configuration settings.

Configuration is stored in ~/.cogmap/config.yaml. The COGMAP_MAX_DELTA,
COGMAP_MAX_EPOCHS, COGMAP_TRACE, COGMAP_STORE_PATH, COGMAP_LOG_LEVEL,
COGMAP_LOG_DIR and COGMAP_BACKUP_DIR environment variables override the file.

Examples:
  cogmap config list                            # Show all settings
  cogmap config get simulation.max_delta        # Get a specific setting
  cogmap config set simulation.max_epochs 500   # Set a setting
  cogmap config set logging.level debug`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if jsonOut {
				return printJSON(cmd, cfg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (~/.cogmap/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Simulation Settings:")
			fmt.Fprintf(out, "  simulation.max_delta:   %g\n", cfg.Simulation.MaxDelta)
			fmt.Fprintf(out, "  simulation.max_epochs:  %d\n", cfg.Simulation.MaxEpochs)
			fmt.Fprintf(out, "  simulation.trace:       %v\n", cfg.Simulation.Trace)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Store Settings:")
			fmt.Fprintf(out, "  store.path:             %s\n", valueOrDefault(cfg.Store.Path, "(default)"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging Settings:")
			fmt.Fprintf(out, "  logging.level:          %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintf(out, "  logging.dir:            %s\n", valueOrDefault(cfg.Logging.Dir, "(default)"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Backup Settings:")
			fmt.Fprintf(out, "  backup.dir:             %s\n", valueOrDefault(cfg.Backup.Dir, "(default)"))
			fmt.Fprintf(out, "  backup.keep:            %d\n", cfg.Backup.Keep)
			fmt.Fprintf(out, "  backup.max_age:         %s\n", valueOrDefault(cfg.Backup.MaxAge, "(none)"))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				if jsonOut {
					return printJSON(cmd, map[string]any{
						"error": "key not found",
						"key":   key,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unknown configuration key: %s\n", key)
				return nil
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			key := args[0]
			value := args[1]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				if jsonOut {
					return printJSON(cmd, map[string]any{
						"error": err.Error(),
						"key":   key,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Error: %v\n", err)
				return nil
			}

			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.CogmapConfig, key string) (any, bool) {
	switch key {
	case "simulation.max_delta":
		return cfg.Simulation.MaxDelta, true
	case "simulation.max_epochs":
		return cfg.Simulation.MaxEpochs, true
	case "simulation.trace":
		return cfg.Simulation.Trace, true
	case "store.path":
		return cfg.Store.Path, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.dir":
		return cfg.Logging.Dir, true
	case "backup.dir":
		return cfg.Backup.Dir, true
	case "backup.keep":
		return cfg.Backup.Keep, true
	case "backup.max_age":
		return cfg.Backup.MaxAge, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key. The
// result must still pass validation.
func setConfigValue(cfg *config.CogmapConfig, key, value string) error {
	switch key {
	case "simulation.max_delta":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid max_delta: %s (must be a number)", value)
		}
		cfg.Simulation.MaxDelta = f
	case "simulation.max_epochs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max_epochs: %s (must be an integer)", value)
		}
		cfg.Simulation.MaxEpochs = n
	case "simulation.trace":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid trace: %s (must be true or false)", value)
		}
		cfg.Simulation.Trace = b
	case "store.path":
		cfg.Store.Path = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.dir":
		cfg.Logging.Dir = value
	case "backup.dir":
		cfg.Backup.Dir = value
	case "backup.keep":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid keep: %s (must be an integer)", value)
		}
		cfg.Backup.Keep = n
	case "backup.max_age":
		cfg.Backup.MaxAge = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return cfg.Validate()
}

// saveConfig writes the configuration to ~/.cogmap/config.yaml.
func saveConfig(cfg *config.CogmapConfig) error {
	path, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return cfg.Save(path)
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
