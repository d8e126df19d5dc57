package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/config"
	"github.com/nvandessel/cogmap/internal/export"
	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/logging"
	"github.com/nvandessel/cogmap/internal/metrics"
	"github.com/nvandessel/cogmap/internal/simulation"
	"github.com/nvandessel/cogmap/internal/store"
	"github.com/nvandessel/cogmap/internal/visualization"
)

const defaultRunEpochs = 10

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Run a map for a fixed number of epochs",
		Long: `Run a map for exactly --epochs epochs and print the final outputs.

Examples:
  cogmap run maps.yaml                          # First map, 10 epochs
  cogmap run maps.yaml --map ring --epochs 3
  cogmap run maps.yaml --fix c1=1 --csv trace.csv
  cogmap run maps.yaml --record                 # Save to run history`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			epochs, _ := cmd.Flags().GetInt("epochs")
			if epochs < 0 {
				return fmt.Errorf("%w: %d", simulation.ErrInvalidEpochs, epochs)
			}
			return runSimulation(cmd, args[0], func(c *simulation.Controller, _ *config.CogmapConfig) (*simulation.Result, error) {
				return c.Run(epochs)
			})
		},
	}

	cmd.Flags().Int("epochs", defaultRunEpochs, "Number of epochs to run")
	addSimulationFlags(cmd)
	return cmd
}

func newConvergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "converge <file>",
		Short: "Run a map until its outputs settle",
		Long: `Run a map until the average squared change of its outputs is at most
--max-delta, or until --max-epochs epochs have run. Defaults come from
~/.cogmap/config.yaml (simulation.max_delta, simulation.max_epochs).

Examples:
  cogmap converge maps.yaml --map pair
  cogmap converge maps.yaml --max-delta 1e-6 --max-epochs 1000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, args[0], func(c *simulation.Controller, cfg *config.CogmapConfig) (*simulation.Result, error) {
				maxDelta := cfg.Simulation.MaxDelta
				if cmd.Flags().Changed("max-delta") {
					maxDelta, _ = cmd.Flags().GetFloat64("max-delta")
				}
				maxEpochs := cfg.Simulation.MaxEpochs
				if cmd.Flags().Changed("max-epochs") {
					maxEpochs, _ = cmd.Flags().GetInt("max-epochs")
				}
				return c.Converge(maxDelta, maxEpochs)
			})
		},
	}

	cmd.Flags().Float64("max-delta", 0, "Convergence threshold (default from config)")
	cmd.Flags().Int("max-epochs", 0, "Epoch limit (default from config)")
	addSimulationFlags(cmd)
	return cmd
}

func addSimulationFlags(cmd *cobra.Command) {
	cmd.Flags().String("map", "", "Map to run (default: first map in the document)")
	cmd.Flags().StringArray("set", nil, "Set an initial output, concept=value (repeatable)")
	cmd.Flags().StringArray("fix", nil, "Pin an output, concept=value (repeatable)")
	cmd.Flags().String("csv", "", "Write the epoch trace as CSV to this file")
	cmd.Flags().Bool("record", false, "Save the run to the history database")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics for the run to this file")
}

// driveFunc runs the controller in one mode.
type driveFunc func(c *simulation.Controller, cfg *config.CogmapConfig) (*simulation.Result, error)

// runSimulation loads the map, applies overrides, wires observers, drives
// the controller and reports the result.
func runSimulation(cmd *cobra.Command, file string, drive driveFunc) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	mapName, _ := cmd.Flags().GetString("map")
	setArgs, _ := cmd.Flags().GetStringArray("set")
	fixArgs, _ := cmd.Flags().GetStringArray("fix")
	csvPath, _ := cmd.Flags().GetString("csv")
	record, _ := cmd.Flags().GetBool("record")
	metricsPath, _ := cmd.Flags().GetString("metrics-file")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	lm, err := loadMap(resolvePath(cmd, file), mapName)
	if err != nil {
		return err
	}
	set, err := parseAssignments(setArgs)
	if err != nil {
		return fmt.Errorf("invalid --set: %w", err)
	}
	fix, err := parseAssignments(fixArgs)
	if err != nil {
		return fmt.Errorf("invalid --fix: %w", err)
	}
	if err := lm.m.SetOutputs(set, false); err != nil {
		return err
	}
	if err := lm.m.SetOutputs(fix, true); err != nil {
		return err
	}

	simCfg := simulation.Config{
		// Recording and CSV export need every epoch.
		Trace:  cfg.Simulation.Trace || record || csvPath != "",
		Logger: newLogger(cmd, cfg),
	}

	logDir, err := cfg.LogDir()
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	if el := logging.NewEpochLogger(logDir, cfg.Logging.Level); el != nil {
		defer el.Close()
		simCfg.Observers = append(simCfg.Observers, el)
	}

	var registry *prometheus.Registry
	if metricsPath != "" {
		registry = prometheus.NewRegistry()
		simCfg.Observers = append(simCfg.Observers, metrics.NewCollector(registry))
	}

	res, err := drive(simulation.NewController(lm.m, simCfg), cfg)
	if err != nil {
		return err
	}

	if csvPath != "" {
		if err := writeCSV(resolvePath(cmd, csvPath), res.Trace); err != nil {
			return err
		}
	}
	if registry != nil {
		if err := prometheus.WriteToTextfile(resolvePath(cmd, metricsPath), registry); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	var runID string
	if record {
		runID, err = recordRun(cmd.Context(), cfg, res, lm.document)
		if err != nil {
			return err
		}
	}

	if jsonOut {
		return printJSON(cmd, struct {
			RunID string `json:"run_id,omitempty"`
			*visualization.RunReport
			Outputs map[string]string `json:"outputs"`
		}{runID, visualization.NewRunReport(res), finalOutputs(lm.m)})
	}
	printResult(cmd, lm.m, res, runID)
	return nil
}

// parseAssignments parses concept=value pairs.
func parseAssignments(args []string) (map[string]float64, error) {
	out := make(map[string]float64, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%q is not concept=value", arg)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", arg, err)
		}
		out[name] = v
	}
	return out, nil
}

func writeCSV(path string, tr *simulation.Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	if err := export.WriteTrace(f, tr); err != nil {
		f.Close()
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return f.Close()
}

// recordRun saves the result to the history database and returns its ID.
func recordRun(ctx context.Context, cfg *config.CogmapConfig, res *simulation.Result, document string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dbPath, err := cfg.StorePath()
	if err != nil {
		return "", fmt.Errorf("failed to resolve store path: %w", err)
	}
	rs, err := store.NewSQLiteRunStore(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open run history: %w", err)
	}
	run := store.NewRun(res, document)
	saveErr := rs.SaveRun(ctx, run)
	if err := errors.Join(saveErr, rs.Close()); err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return run.ID, nil
}

func finalOutputs(m *fcm.Map) map[string]string {
	out := make(map[string]string, m.ConceptCount())
	for c := range m.Concepts() {
		out[c.Name()] = c.Output().String()
	}
	return out
}

func printResult(cmd *cobra.Command, m *fcm.Map, res *simulation.Result, runID string) {
	out := cmd.OutOrStdout()
	switch {
	case res.Mode == simulation.ModeRun:
		fmt.Fprintf(out, "%s: ran %d epoch(s), delta %s\n", res.Map, res.Epochs, res.Delta)
	case res.Converged:
		fmt.Fprintf(out, "%s: converged after %d epoch(s), delta %s\n", res.Map, res.Epochs, res.Delta)
	default:
		fmt.Fprintf(out, "%s: did not converge within %d epoch(s), delta %s\n", res.Map, res.Epochs, res.Delta)
	}

	names := m.ConceptNames()
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	fmt.Fprintln(out)
	for _, name := range names {
		fmt.Fprintf(out, "  %-*s  %s\n", width, name, m.Concept(name).Output())
	}

	if runID != "" {
		fmt.Fprintf(out, "\nRecorded run %s\n", runID)
	}
}
