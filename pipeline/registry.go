package pipeline

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrExists   = errors.New("pipeline: name already registered")
	ErrNotFound = errors.New("pipeline: name not registered")
)

// Registry owns pipelines by name. Producers and consumers share a registry
// instance instead of a process-wide table.
type Registry[T, P any] struct {
	l sync.RWMutex
	m map[string]*Pipeline[T, P]
}

func NewRegistry[T, P any]() *Registry[T, P] {
	return &Registry[T, P]{
		m: map[string]*Pipeline[T, P]{},
	}
}

func (r *Registry[T, P]) Register(p *Pipeline[T, P]) error {
	r.l.Lock()
	defer r.l.Unlock()

	if _, ok := r.m[p.name]; ok {
		return errors.Wrap(ErrExists, p.name)
	}
	r.m[p.name] = p
	return nil
}

func (r *Registry[T, P]) Lookup(name string) (*Pipeline[T, P], bool) {
	r.l.RLock()
	defer r.l.RUnlock()
	p, ok := r.m[name]
	return p, ok
}

// Get is Lookup returning ErrNotFound for unknown names.
func (r *Registry[T, P]) Get(name string) (*Pipeline[T, P], error) {
	p, ok := r.Lookup(name)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, name)
	}
	return p, nil
}

// Remove deregisters and closes the pipeline in one step, so no lookup can
// return a pipeline that is already closed.
func (r *Registry[T, P]) Remove(name string) bool {
	r.l.Lock()
	defer r.l.Unlock()

	p, ok := r.m[name]
	if !ok {
		return false
	}
	delete(r.m, name)
	p.Close()
	return true
}

func (r *Registry[T, P]) Names() []string {
	r.l.RLock()
	names := make([]string, 0, len(r.m))
	for k := range r.m {
		names = append(names, k)
	}
	r.l.RUnlock()
	sort.Strings(names)
	return names
}

// Each calls fn for every pipeline in name order.
func (r *Registry[T, P]) Each(fn func(p *Pipeline[T, P])) {
	for _, name := range r.Names() {
		if p, ok := r.Lookup(name); ok {
			fn(p)
		}
	}
}
