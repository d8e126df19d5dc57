package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/nvandessel/cogmap/internal/fcm"
)

// InMemoryRunStore implements RunStore for testing and for sessions that
// do not persist history.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewInMemoryRunStore creates an empty store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]*Run)}
}

// SaveRun stores a copy of run.
func (s *InMemoryRunStore) SaveRun(ctx context.Context, run *Run) error {
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

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = cloneRun(run, true)
	return nil
}

// GetRun returns a copy of a run. id may be a unique prefix.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fullID, err := s.resolveID(id)
	if err != nil {
		return nil, err
	}
	return cloneRun(s.runs[fullID], true), nil
}

// ListRuns returns runs newest first, without traces.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		if filter.Map != "" && r.Map != filter.Map {
			continue
		}
		runs = append(runs, *cloneRun(r, false))
	}
	slices.SortFunc(runs, func(a, b Run) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

// DeleteRun removes a run. id may be a unique prefix.
func (s *InMemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fullID, err := s.resolveID(id)
	if err != nil {
		return err
	}
	delete(s.runs, fullID)
	return nil
}

// Close is a no-op.
func (s *InMemoryRunStore) Close() error {
	return nil
}

func (s *InMemoryRunStore) resolveID(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("%w: empty ID", ErrRunNotFound)
	}
	var ids []string
	for id := range s.runs {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	return pickID(ids, prefix)
}

func cloneRun(r *Run, withTrace bool) *Run {
	c := *r
	if r.MaxDelta != nil {
		d := *r.MaxDelta
		c.MaxDelta = &d
	}
	c.Concepts, c.Outputs = nil, nil
	if withTrace && len(r.Outputs) > 0 {
		c.Concepts = slices.Clone(r.Concepts)
		c.Outputs = make([][]fcm.Value, len(r.Outputs))
		for i, row := range r.Outputs {
			c.Outputs[i] = slices.Clone(row)
		}
	}
	return &c
}
