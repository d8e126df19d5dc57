package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/simulation"
	"github.com/nvandessel/cogmap/internal/store"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `List, show, delete and back up runs saved with --record.

Runs are kept in ~/.cogmap/history.db unless store.path is configured.
IDs may be abbreviated to any unique prefix.

Examples:
  cogmap history list --map ring --limit 5
  cogmap history show 3f2a91
  cogmap history show 3f2a91 --csv trace.csv
  cogmap history delete 3f2a91
  cogmap history backup
  cogmap history restore runs.cogmap.gz --mode merge`,
	}

	cmd.AddCommand(
		newHistoryListCmd(),
		newHistoryShowCmd(),
		newHistoryDeleteCmd(),
		newHistoryBackupCmd(),
		newHistoryBackupsCmd(),
		newHistoryRestoreCmd(),
	)
	return cmd
}

// withRunStore opens the configured run database for the duration of fn.
func withRunStore(cmd *cobra.Command, fn func(ctx context.Context, rs store.RunStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dbPath, err := cfg.StorePath()
	if err != nil {
		return fmt.Errorf("failed to resolve store path: %w", err)
	}
	rs, err := store.NewSQLiteRunStore(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer rs.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, rs)
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			mapName, _ := cmd.Flags().GetString("map")
			limit, _ := cmd.Flags().GetInt("limit")

			return withRunStore(cmd, func(ctx context.Context, rs store.RunStore) error {
				runs, err := rs.ListRuns(ctx, store.RunFilter{Map: mapName, Limit: limit})
				if err != nil {
					return fmt.Errorf("failed to list runs: %w", err)
				}

				if jsonOut {
					summaries := make([]runSummary, len(runs))
					for i := range runs {
						summaries[i] = summarizeRun(&runs[i])
					}
					return printJSON(cmd, map[string]any{
						"runs":  summaries,
						"count": len(runs),
					})
				}

				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No recorded runs.")
					return nil
				}
				for _, r := range runs {
					fmt.Fprintf(out, "%s  %s  %-16s %-8s %4d epoch(s)  delta %s%s\n",
						shortID(r.ID),
						r.StartedAt.Local().Format("2006-01-02 15:04:05"),
						r.Map,
						r.Mode,
						r.Epochs,
						r.FinalDelta,
						convergedSuffix(&r),
					)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("map", "", "Only list runs of this map")
	cmd.Flags().Int("limit", 20, "Maximum number of runs (0 for all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a recorded run with its trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			csvPath, _ := cmd.Flags().GetString("csv")

			return withRunStore(cmd, func(ctx context.Context, rs store.RunStore) error {
				run, err := rs.GetRun(ctx, args[0])
				if err != nil {
					return err
				}

				if csvPath != "" {
					if err := writeCSV(resolvePath(cmd, csvPath), runTrace(run)); err != nil {
						return err
					}
				}

				if jsonOut {
					return printJSON(cmd, detailRun(run))
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %s\n", run.ID)
				fmt.Fprintf(out, "  Map:        %s\n", run.Map)
				fmt.Fprintf(out, "  Mode:       %s\n", run.Mode)
				fmt.Fprintf(out, "  Epochs:     %d of %d\n", run.Epochs, run.MaxEpochs)
				if run.MaxDelta != nil {
					fmt.Fprintf(out, "  Max delta:  %g\n", *run.MaxDelta)
					fmt.Fprintf(out, "  Converged:  %v\n", run.Converged)
				}
				fmt.Fprintf(out, "  Delta:      %s\n", run.FinalDelta)
				fmt.Fprintf(out, "  Started:    %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "  Duration:   %s\n", run.Duration)

				if len(run.Outputs) > 0 {
					last := run.Outputs[len(run.Outputs)-1]
					fmt.Fprintln(out, "\nFinal outputs:")
					for i, name := range run.Concepts {
						fmt.Fprintf(out, "  %s = %s\n", name, last[i])
					}
				}
				if csvPath != "" {
					fmt.Fprintf(out, "\nTrace written to %s\n", csvPath)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("csv", "", "Write the run's trace as CSV to this file")
	return cmd
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withRunStore(cmd, func(ctx context.Context, rs store.RunStore) error {
				run, err := rs.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				if err := rs.DeleteRun(ctx, run.ID); err != nil {
					return fmt.Errorf("failed to delete run: %w", err)
				}

				if jsonOut {
					return printJSON(cmd, map[string]string{"status": "deleted", "id": run.ID})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", run.ID)
				return nil
			})
		},
	}
}

// runSummary is the JSON form of a listed run.
type runSummary struct {
	ID         string `json:"id"`
	Map        string `json:"map"`
	Mode       string `json:"mode"`
	Epochs     int    `json:"epochs"`
	Converged  bool   `json:"converged"`
	FinalDelta string `json:"final_delta"`
	StartedAt  string `json:"started_at"`
	DurationMs int64  `json:"duration_ms"`
}

// runDetail adds the limits, source document and trace.
type runDetail struct {
	runSummary
	MaxDelta  *float64   `json:"max_delta,omitempty"`
	MaxEpochs int        `json:"max_epochs"`
	Document  string     `json:"document,omitempty"`
	Concepts  []string   `json:"concepts,omitempty"`
	Trace     [][]string `json:"trace,omitempty"`
}

func summarizeRun(r *store.Run) runSummary {
	return runSummary{
		ID:         r.ID,
		Map:        r.Map,
		Mode:       r.Mode,
		Epochs:     r.Epochs,
		Converged:  r.Converged,
		FinalDelta: r.FinalDelta.String(),
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		DurationMs: r.Duration.Milliseconds(),
	}
}

func detailRun(r *store.Run) runDetail {
	d := runDetail{
		runSummary: summarizeRun(r),
		MaxDelta:   r.MaxDelta,
		MaxEpochs:  r.MaxEpochs,
		Document:   r.Document,
		Concepts:   r.Concepts,
	}
	for _, row := range r.Outputs {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		d.Trace = append(d.Trace, cells)
	}
	return d
}

// runTrace rebuilds a trace from a stored run. Only the final delta is
// stored, so earlier epochs carry none.
func runTrace(r *store.Run) *simulation.Trace {
	tr := &simulation.Trace{Concepts: r.Concepts}
	for i, row := range r.Outputs {
		snap := simulation.Snapshot{Epoch: i, Outputs: row}
		if i == len(r.Outputs)-1 {
			snap.Delta = r.FinalDelta
		}
		tr.Epochs = append(tr.Epochs, snap)
	}
	return tr
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func convergedSuffix(r *store.Run) string {
	if r.Mode != string(simulation.ModeConverge) {
		return ""
	}
	if r.Converged {
		return "  converged"
	}
	return "  not converged"
}
