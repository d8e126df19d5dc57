// Package backup archives the run history to compressed, checksummed files
// and restores it.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/store"
)

// Archive is the payload of a backup file.
type Archive struct {
	CreatedAt time.Time     `json:"created_at"`
	Runs      []ArchivedRun `json:"runs"`
}

// ArchivedRun is a run with its values in text form. Undefined values are
// empty strings; NaN and infinities use their strconv spelling.
type ArchivedRun struct {
	store.Run
	FinalDelta string     `json:"final_delta"`
	Outputs    [][]string `json:"outputs,omitempty"`
}

func archiveRun(r *store.Run) ArchivedRun {
	ar := ArchivedRun{Run: *r, FinalDelta: encodeValue(r.FinalDelta)}
	ar.Run.Outputs = nil
	for _, row := range r.Outputs {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = encodeValue(v)
		}
		ar.Outputs = append(ar.Outputs, cells)
	}
	return ar
}

func (ar *ArchivedRun) toRun() (*store.Run, error) {
	run := ar.Run
	var err error
	if run.FinalDelta, err = decodeValue(ar.FinalDelta); err != nil {
		return nil, fmt.Errorf("run %s final delta: %w", run.ID, err)
	}
	run.Outputs = make([][]fcm.Value, len(ar.Outputs))
	for e, cells := range ar.Outputs {
		if len(cells) != len(run.Concepts) {
			return nil, fmt.Errorf("run %s epoch %d has %d values, want %d", run.ID, e, len(cells), len(run.Concepts))
		}
		row := make([]fcm.Value, len(cells))
		for i, s := range cells {
			if row[i], err = decodeValue(s); err != nil {
				return nil, fmt.Errorf("run %s epoch %d: %w", run.ID, e, err)
			}
		}
		run.Outputs[e] = row
	}
	return &run, nil
}

func encodeValue(v fcm.Value) string {
	f, ok := v.Float()
	if !ok {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func decodeValue(s string) (fcm.Value, error) {
	if s == "" {
		return fcm.Undefined, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fcm.Undefined, err
	}
	return fcm.Of(f), nil
}

// DefaultBackupDir returns the default backup directory (~/.cogmap/backups/).
func DefaultBackupDir() (string, error) {
	dir, err := store.GlobalCogmapPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "backups"), nil
}

// Backup writes every run in rs, with its trace, to an archive at path.
func Backup(ctx context.Context, rs store.RunStore, path string) (*Header, error) {
	runs, err := rs.ListRuns(ctx, store.RunFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	a := &Archive{CreatedAt: time.Now().UTC(), Runs: make([]ArchivedRun, 0, len(runs))}
	for _, listed := range runs {
		run, err := rs.GetRun(ctx, listed.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", listed.ID, err)
		}
		a.Runs = append(a.Runs, archiveRun(run))
	}

	return Write(path, a)
}

// RestoreMode controls how restore handles existing runs.
type RestoreMode string

const (
	// RestoreMerge skips runs whose ID already exists (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace deletes every existing run before restoring, and puts
	// them back if the restore fails.
	RestoreReplace RestoreMode = "replace"
)

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	RunsRestored int `json:"runs_restored"`
	RunsSkipped  int `json:"runs_skipped"`
	RunsDeleted  int `json:"runs_deleted,omitempty"`
}

// Restore imports the runs of the archive at path into rs. The archive is
// fully read and checked before rs is touched. If a save fails in replace
// mode, the restored runs are removed and the previous history is saved
// back before the error is returned.
func Restore(ctx context.Context, rs store.RunStore, path string, mode RestoreMode) (*RestoreResult, error) {
	if mode == "" {
		mode = RestoreMerge
	}
	if mode != RestoreMerge && mode != RestoreReplace {
		return nil, fmt.Errorf("unknown restore mode %q (want merge or replace)", mode)
	}

	a, err := Read(path)
	if err != nil {
		return nil, err
	}
	runs := make([]*store.Run, len(a.Runs))
	for i := range a.Runs {
		if runs[i], err = a.Runs[i].toRun(); err != nil {
			return nil, err
		}
	}

	result := &RestoreResult{}
	var previous []*store.Run
	if mode == RestoreReplace {
		if previous, err = clearRuns(ctx, rs); err != nil {
			return nil, err
		}
		result.RunsDeleted = len(previous)
	}

	var saved []string
	for _, run := range runs {
		if mode == RestoreMerge {
			_, err := rs.GetRun(ctx, run.ID)
			if err == nil {
				result.RunsSkipped++
				continue
			}
			if !errors.Is(err, store.ErrRunNotFound) {
				return nil, fmt.Errorf("failed to check run %s: %w", run.ID, err)
			}
		}
		if err := rs.SaveRun(ctx, run); err != nil {
			err = fmt.Errorf("failed to restore run %s: %w", run.ID, err)
			if mode == RestoreReplace {
				err = errors.Join(err, rollback(ctx, rs, saved, previous))
			}
			return nil, err
		}
		saved = append(saved, run.ID)
		result.RunsRestored++
	}
	return result, nil
}

// clearRuns deletes every run in rs and returns them with their traces so a
// failed replace can put them back.
func clearRuns(ctx context.Context, rs store.RunStore) ([]*store.Run, error) {
	listed, err := rs.ListRuns(ctx, store.RunFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	previous := make([]*store.Run, 0, len(listed))
	for _, r := range listed {
		run, err := rs.GetRun(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load run %s: %w", r.ID, err)
		}
		previous = append(previous, run)
	}
	for i, run := range previous {
		if err := rs.DeleteRun(ctx, run.ID); err != nil {
			err = fmt.Errorf("failed to delete run %s: %w", run.ID, err)
			return nil, errors.Join(err, rollback(ctx, rs, nil, previous[:i]))
		}
	}
	return previous, nil
}

// rollback removes the runs restored so far and saves the previous history
// again. It returns nil when the store is back to its original state.
func rollback(ctx context.Context, rs store.RunStore, saved []string, previous []*store.Run) error {
	var errs []error
	for _, id := range saved {
		if err := rs.DeleteRun(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("rollback: delete run %s: %w", id, err))
		}
	}
	for _, run := range previous {
		if err := rs.SaveRun(ctx, run); err != nil {
			errs = append(errs, fmt.Errorf("rollback: save run %s: %w", run.ID, err))
		}
	}
	return errors.Join(errs...)
}

// GenerateBackupPath creates a timestamped archive filename in dir that
// does not exist yet.
func GenerateBackupPath(dir string) string {
	base := filePrefix + time.Now().UTC().Format("20060102-150405.000")
	path := filepath.Join(dir, base+fileSuffix)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, n, fileSuffix))
	}
}
