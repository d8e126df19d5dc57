package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/cogmap/internal/fcm"
)

// timeLayout is fixed-width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRunStore implements RunStore on a SQLite database.
type SQLiteRunStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (or creates) the run database at dbPath.
func NewSQLiteRunStore(dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// SaveRun inserts a run and its trace in one transaction.
func (s *SQLiteRunStore) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	for epoch, row := range run.Outputs {
		if len(row) != len(run.Concepts) {
			return fmt.Errorf("run %s epoch %d has %d outputs for %d concepts",
				run.ID, epoch, len(row), len(run.Concepts))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var maxDelta sql.NullFloat64
	if run.MaxDelta != nil {
		maxDelta = sql.NullFloat64{Float64: *run.MaxDelta, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, map_name, mode, max_delta, max_epochs, epochs,
			converged, final_delta, started_at, duration_ms, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Map, run.Mode, maxDelta, run.MaxEpochs, run.Epochs,
		boolToInt(run.Converged), nullValue(run.FinalDelta),
		run.StartedAt.UTC().Format(timeLayout), run.Duration.Milliseconds(),
		nullString(run.Document))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(run.Outputs) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_outputs (run_id, epoch, concept, output) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare output insert: %w", err)
		}
		defer stmt.Close()

		for epoch, row := range run.Outputs {
			for i, v := range row {
				if _, err := stmt.ExecContext(ctx, run.ID, epoch, run.Concepts[i], nullValue(v)); err != nil {
					return fmt.Errorf("failed to insert output %s@%d: %w", run.Concepts[i], epoch, err)
				}
			}
		}
	}

	return tx.Commit()
}

// GetRun loads a run and its trace. id may be a unique prefix.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, map_name, mode, max_delta, max_epochs, epochs, converged,
			final_delta, started_at, duration_ms, document
		FROM runs WHERE id = ?`, fullID)
	run, err := scanRun(row)
	if err != nil {
		return nil, err
	}

	if err := s.loadOutputs(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// loadOutputs fills run.Concepts from the epoch-0 rows, then the trace.
// Rows are only sized once the full concept list is known.
func (s *SQLiteRunStore) loadOutputs(ctx context.Context, run *Run) error {
	concepts, err := s.loadConcepts(ctx, run.ID)
	if err != nil {
		return err
	}
	if len(concepts) == 0 {
		return nil
	}
	run.Concepts = concepts
	index := make(map[string]int, len(concepts))
	for i, name := range concepts {
		index[name] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, concept, output FROM run_outputs
		WHERE run_id = ? ORDER BY epoch, concept`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to query outputs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			epoch   int
			concept string
			output  sql.NullString
		)
		if err := rows.Scan(&epoch, &concept, &output); err != nil {
			return fmt.Errorf("failed to scan output: %w", err)
		}
		i, ok := index[concept]
		if !ok {
			return fmt.Errorf("run %s: concept %q missing from epoch 0", run.ID, concept)
		}
		for len(run.Outputs) <= epoch {
			run.Outputs = append(run.Outputs, make([]fcm.Value, len(concepts)))
		}
		run.Outputs[epoch][i] = decodeValue(output.String, output.Valid)
	}
	return rows.Err()
}

func (s *SQLiteRunStore) loadConcepts(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT concept FROM run_outputs
		WHERE run_id = ? AND epoch = 0 ORDER BY concept`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	defer rows.Close()

	var concepts []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan concept: %w", err)
		}
		concepts = append(concepts, name)
	}
	return concepts, rows.Err()
}

// ListRuns returns runs newest first, without traces.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, map_name, mode, max_delta, max_epochs, epochs, converged,
		final_delta, started_at, duration_ms, document FROM runs`
	var args []any
	if filter.Map != "" {
		query += ` WHERE map_name = ?`
		args = append(args, filter.Map)
	}
	query += ` ORDER BY started_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and its trace. id may be a unique prefix.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, fullID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// resolveID expands a prefix to a full run ID. Callers hold the lock.
func (s *SQLiteRunStore) resolveID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%w: empty ID", ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return pickID(ids, prefix)
}

// pickID applies the unique-prefix rule to candidate IDs.
func pickID(ids []string, prefix string) (string, error) {
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, prefix)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run        Run
		maxDelta   sql.NullFloat64
		converged  int
		finalDelta sql.NullString
		startedAt  string
		durationMS int64
		document   sql.NullString
	)
	err := row.Scan(&run.ID, &run.Map, &run.Mode, &maxDelta, &run.MaxEpochs, &run.Epochs,
		&converged, &finalDelta, &startedAt, &durationMS, &document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if maxDelta.Valid {
		d := maxDelta.Float64
		run.MaxDelta = &d
	}
	run.Converged = converged != 0
	run.FinalDelta = decodeValue(finalDelta.String, finalDelta.Valid)
	run.StartedAt, err = time.Parse(timeLayout, startedAt)
	if err != nil {
		return nil, fmt.Errorf("run %s: bad started_at %q: %w", run.ID, startedAt, err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	run.Document = document.String
	return &run, nil
}

func nullValue(v fcm.Value) sql.NullString {
	s, ok := encodeValue(v)
	return sql.NullString{String: s, Valid: ok}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
