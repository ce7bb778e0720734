// Package state stores task progress records behind a pluggable backend.
// The backend is chosen once at process start: an in-process map for
// single-instance deployments, or Redis when several instances share state.
package state

import (
	"errors"
	"sync"
)

var (
	// ErrNotFound means the task id has no record.
	ErrNotFound = errors.New("task not found")
	// ErrUnavailable means the backend itself could not be reached. Callers
	// must not confuse this with ErrNotFound.
	ErrUnavailable = errors.New("state store unavailable")
)

// Store is a key-value abstraction over task records. Update merges fields
// into the record (creating it if absent) and clamps progress to 100. Each
// task writes only under its own id, so backends need per-field atomicity
// but no cross-task coordination.
type Store interface {
	Update(id string, state int, progress int, fields map[string]any) error
	Get(id string) (map[string]any, error)
	Delete(id string) error
}

// MemoryStore keeps records in-process. It never fails.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]map[string]any)}
}

func (s *MemoryStore) Update(id string, state int, progress int, fields map[string]any) error {
	if progress > 100 {
		progress = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[id]
	if !ok {
		rec = make(map[string]any)
		s.tasks[id] = rec
	}
	rec["state"] = state
	rec["progress"] = progress
	for k, v := range fields {
		rec[k] = v
	}
	return nil
}

func (s *MemoryStore) Get(id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	return nil
}
