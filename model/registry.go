package model

import (
	"fmt"
	"sync"
)

// Registry holds table descriptors and wires their relation references in a
// second phase. Registration happens from generated init functions in
// arbitrary order, so relation targets are recorded as names first and
// resolved to pointers only when Bind runs.
type Registry struct {
	mu     sync.Mutex
	tables map[string]*Table
	bound  bool
}

func NewRegistry() *Registry {
	return &Registry{tables: map[string]*Table{}}
}

// Register adds a table descriptor. Registering two tables under the same
// qualified name, or registering after Bind, is a programming error and
// panics so the generated code fails loudly at init time.
func (r *Registry) Register(t *Table) *Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound {
		panic("model: Register called after Bind")
	}
	name := t.QualifiedName()
	if _, ok := r.tables[name]; ok {
		panic(fmt.Sprintf("model: table %q registered twice", name))
	}
	r.tables[name] = t
	return t
}

// Bind resolves every relation field's Ref to its target table. It is
// idempotent and safe for self-referential and mutually recursive tables
// because resolution happens against the fully populated table map.
func (r *Registry) Bind() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, t := range r.tables {
		for i := range t.Fields {
			f := &t.Fields[i]
			if f.Kind == Scalar {
				continue
			}
			target, ok := r.tables[f.Ref]
			if !ok {
				return fmt.Errorf("model: table %q field %q references unknown table %q", name, f.Name, f.Ref)
			}
			f.target = target
		}
	}
	r.bound = true
	return nil
}

// Lookup returns a registered table by qualified name.
func (r *Registry) Lookup(name string) (*Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[name]
	return t, ok
}

var defaultRegistry = NewRegistry()

// Register adds a table to the process-wide registry.
func Register(t *Table) *Table { return defaultRegistry.Register(t) }

// Bind wires the process-wide registry. Call it once after all generated
// packages have been imported.
func Bind() error { return defaultRegistry.Bind() }

// Lookup reads the process-wide registry.
func Lookup(name string) (*Table, bool) { return defaultRegistry.Lookup(name) }
