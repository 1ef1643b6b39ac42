// Package registry holds the set of content modules the dispatcher evaluates.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

var ErrDuplicateModule = errors.New("module already registered")

// ContentModule is one schedulable content type. New content types are added
// by implementing this interface and registering it; the dispatcher never
// branches on module identity.
type ContentModule interface {
	ID() string
	Name() string
	// FindDueItems returns the items whose posting times contain bucket verbatim
	FindDueItems(ctx context.Context, bucket string) ([]model.ScheduledItem, error)
	// PublishTarget is the endpoint the executor publishes this module's items to
	PublishTarget() string
}

// Registry is an ordered, append-only set of modules
type Registry struct {
	mu      sync.RWMutex
	modules []ContentModule
	byID    map[string]ContentModule
}

func New(modules ...ContentModule) (*Registry, error) {
	r := &Registry{byID: make(map[string]ContentModule)}
	for _, m := range modules {
		if err := r.Register(m); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(m ContentModule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[m.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.ID())
	}
	r.modules = append(r.modules, m)
	r.byID[m.ID()] = m
	return nil
}

// List returns the modules in registration order
func (r *Registry) List() []ContentModule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ContentModule, len(r.modules))
	copy(out, r.modules)
	return out
}

func (r *Registry) Get(id string) (ContentModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.byID[id]
	return m, ok
}
