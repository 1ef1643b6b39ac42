// Package outcome records per-item pipeline attempts and answers history queries.
package outcome

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

var ErrEntryNotFound = errors.New("run log entry not found")

// Store persists run log entries. Save is an upsert keyed by entry ID.
// Entries are never deleted.
type Store interface {
	Save(ctx context.Context, e *model.RunLogEntry) error
	Get(ctx context.Context, id string) (*model.RunLogEntry, error)
	// Recent returns entries for scope, newest first
	Recent(ctx context.Context, scope model.Scope, limit int) ([]model.RunLogEntry, error)
	// Between returns entries created in [from, to), oldest first
	Between(ctx context.Context, from, to time.Time) ([]model.RunLogEntry, error)
	Close() error
}

// MemoryStore keeps everything in process
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]model.RunLogEntry
	order   []string
	// SaveErr, when set, makes every Save fail
	SaveErr error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]model.RunLogEntry)}
}

func (s *MemoryStore) Save(_ context.Context, e *model.RunLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return s.SaveErr
	}
	if _, ok := s.entries[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.entries[e.ID] = *e
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.RunLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (s *MemoryStore) Recent(_ context.Context, scope model.Scope, limit int) ([]model.RunLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.RunLogEntry
	for i := len(s.order) - 1; i >= 0; i-- {
		e := s.entries[s.order[i]]
		if e.Scope() != scope {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Between(_ context.Context, from, to time.Time) ([]model.RunLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.RunLogEntry
	for _, id := range s.order {
		e := s.entries[id]
		if !e.CreatedAt.Before(from) && e.CreatedAt.Before(to) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Len returns the number of distinct entries
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error { return nil }
