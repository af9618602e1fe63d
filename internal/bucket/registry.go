package bucket

import (
	"sort"
	"sync"

	"github.com/aevon-lab/aevon-rollup/internal/core/timeframe"
)

// Mode selects the read or write side of an override.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

type overrideKey struct {
	base   string
	period string
	mode   Mode
}

// Registry holds the logical types known to a process and the per-period
// read/write overrides between them. Create one at startup and Clear it on
// shutdown. Safe for concurrent use; the last registration wins.
type Registry struct {
	mu        sync.RWMutex
	types     map[string]Type
	overrides map[overrideKey]Type
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types:     make(map[string]Type),
		overrides: make(map[overrideKey]Type),
	}
}

// Register adds or replaces t under its name.
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name] = t
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Override redirects mode access to t at period to target.
func (r *Registry) Override(t Type, period timeframe.Timeframe, mode Mode, target Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overrides[overrideKey{base: t.BaseTopic(), period: period.Token(), mode: mode}] = target
}

// ResolveRead returns the type to read t from at period.
func (r *Registry) ResolveRead(t Type, period timeframe.Timeframe) Type {
	return r.resolve(t, period, ModeRead)
}

// ResolveWrite returns the type to append t to at period.
func (r *Registry) ResolveWrite(t Type, period timeframe.Timeframe) Type {
	return r.resolve(t, period, ModeWrite)
}

func (r *Registry) resolve(t Type, period timeframe.Timeframe, mode Mode) Type {
	if r == nil {
		return t
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.overrides[overrideKey{base: t.BaseTopic(), period: period.Token(), mode: mode}]; ok {
		return target
	}
	return t
}

// Clear drops every type and override.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = make(map[string]Type)
	r.overrides = make(map[overrideKey]Type)
}
