package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nvandessel/cogmap/internal/backup"
	"github.com/nvandessel/cogmap/internal/store"
)

func newHistoryBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the run history to a compressed file",
		Long: `Write every recorded run, with its trace, to a checksummed gzip archive.

Default location: ~/.cogmap/backups/history-YYYYMMDD-HHMMSS.mmm.cogmap.gz
(or backup.dir). Archives in the default directory are pruned to the
backup.keep newest and to backup.max_age.

Examples:
  cogmap history backup
  cogmap history backup --output runs.cogmap.gz`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			outputPath, _ := cmd.Flags().GetString("output")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			var pruneDir string
			if outputPath == "" {
				dir, err := cfg.BackupDir()
				if err != nil {
					return fmt.Errorf("failed to get backup directory: %w", err)
				}
				outputPath = backup.GenerateBackupPath(dir)
				pruneDir = dir
			} else {
				outputPath = resolvePath(cmd, outputPath)
			}

			return withRunStore(cmd, func(ctx context.Context, rs store.RunStore) error {
				header, err := backup.Backup(ctx, rs, outputPath)
				if err != nil {
					return fmt.Errorf("backup failed: %w", err)
				}

				var pruned []string
				if pruneDir != "" {
					retention, _ := cfg.BackupRetention()
					if pruned, err = backup.Prune(pruneDir, retention); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to apply retention: %v\n", err)
					}
				}

				if jsonOut {
					var size int64
					if info, err := os.Stat(outputPath); err == nil {
						size = info.Size()
					}
					return printJSON(cmd, map[string]any{
						"path":       outputPath,
						"run_count":  header.RunCount,
						"checksum":   header.Checksum,
						"size_bytes": size,
						"pruned":     pruned,
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Backup created: %d run(s)\n", header.RunCount)
				fmt.Fprintf(out, "  Path: %s\n", outputPath)
				if len(pruned) > 0 {
					fmt.Fprintf(out, "  Removed %d old backup(s)\n", len(pruned))
				}
				return nil
			})
		},
	}

	cmd.Flags().String("output", "", "Archive path (default: generated in backup.dir)")
	return cmd
}

func newHistoryBackupsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List archives in the backup directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir, err := cfg.BackupDir()
			if err != nil {
				return fmt.Errorf("failed to get backup directory: %w", err)
			}
			backups, err := backup.ListBackups(dir)
			if err != nil {
				return err
			}

			if jsonOut {
				if backups == nil {
					backups = []backup.Info{}
				}
				return printJSON(cmd, map[string]any{
					"dir":     dir,
					"backups": backups,
					"count":   len(backups),
				})
			}

			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintf(out, "No backups in %s\n", dir)
				return nil
			}
			for _, b := range backups {
				status := fmt.Sprintf("%d run(s)", b.RunCount)
				if !b.Valid {
					status = "unreadable"
				}
				fmt.Fprintf(out, "%s  %s  %8d bytes  %s\n",
					b.CreatedAt.Local().Format("2006-01-02 15:04:05"), b.Path, b.Size, status)
			}
			return nil
		},
	}
}

func newHistoryRestoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file>",
		Short: "Restore runs from an archive",
		Long: `Import the runs of an archive into the run history.

Modes:
  merge   - Skip runs whose ID already exists (default)
  replace - Delete every recorded run first

The archive's checksum is verified before the history is changed.

Examples:
  cogmap history restore ~/.cogmap/backups/history-20260301-120000.000.cogmap.gz
  cogmap history restore runs.cogmap.gz --mode replace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			mode, _ := cmd.Flags().GetString("mode")
			inputPath := resolvePath(cmd, args[0])

			return withRunStore(cmd, func(ctx context.Context, rs store.RunStore) error {
				result, err := backup.Restore(ctx, rs, inputPath, backup.RestoreMode(mode))
				if err != nil {
					return fmt.Errorf("restore failed: %w", err)
				}

				if jsonOut {
					return printJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Restored %d run(s), skipped %d\n", result.RunsRestored, result.RunsSkipped)
				if result.RunsDeleted > 0 {
					fmt.Fprintf(out, "  Replaced %d existing run(s)\n", result.RunsDeleted)
				}
				return nil
			})
		},
	}

	cmd.Flags().String("mode", string(backup.RestoreMerge), "Restore mode: merge or replace")
	return cmd
}
