// Package inmem is a reference store.Store backed entirely by an
// in-process map, suitable for tests and for local/demo deployments that
// have no real persistent object store.
package inmem

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aletheialabs/hplan-core/core/store"
)

// Store is an in-memory store.Store.
type Store struct {
	mu    sync.RWMutex
	goals map[string]store.Goal
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{goals: make(map[string]store.Goal)}
}

func (s *Store) ListGoalsForProject(_ context.Context, projectID string) ([]store.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Goal
	for _, g := range s.goals {
		if g.ProjectID == projectID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (store.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.goals[id]
	if !ok {
		return store.Goal{}, store.ErrNotFound
	}
	return g, nil
}

func (s *Store) UpdateMetadata(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return store.ErrNotFound
	}
	if g.Metadata == nil {
		g.Metadata = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		g.Metadata[k] = v
	}
	s.goals[id] = g
	return nil
}

func (s *Store) CreateGoal(_ context.Context, g store.Goal) (store.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = store.GoalPending
	}
	s.goals[g.ID] = g
	return g, nil
}

func (s *Store) SetStatus(_ context.Context, id string, status store.GoalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return store.ErrNotFound
	}
	g.Status = status
	s.goals[id] = g
	return nil
}

var _ store.Store = (*Store)(nil)
