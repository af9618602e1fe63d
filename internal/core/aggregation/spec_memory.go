package aggregation

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemorySpecRepository is an in-memory SpecRepository.
// Useful for specs built in code and for tests.
type MemorySpecRepository struct {
	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewMemorySpecRepository creates a repository holding specs. A later spec
// with the same name replaces an earlier one.
func NewMemorySpecRepository(specs ...*Spec) *MemorySpecRepository {
	r := &MemorySpecRepository{specs: make(map[string]*Spec, len(specs))}
	for _, spec := range specs {
		r.Put(spec)
	}
	return r
}

// Put adds or replaces spec.
func (r *MemorySpecRepository) Put(spec *Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Name] = spec
}

func (r *MemorySpecRepository) Get(_ context.Context, name string) (*Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSpecNotFound, name)
	}
	return spec, nil
}

func (r *MemorySpecRepository) List(_ context.Context, source string) ([]*Spec, error) {
	var out []*Spec
	for _, spec := range r.Specs() {
		if source != "" && spec.Source != source {
			continue
		}
		out = append(out, spec)
	}
	return out, nil
}

func (r *MemorySpecRepository) Specs() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]*Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
