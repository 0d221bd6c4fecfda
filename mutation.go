package nestling

import "github.com/hanpama/nestling/model"

// Mutation builds volatile stored-function calls returning rows of the
// table model T.
type Mutation[T model.Model] struct {
	root  *root
	table *model.Table
	err   error
}

// NewMutation starts a standalone mutation document for T's functions.
func NewMutation[T model.Model](opts ...Option) *Mutation[T] {
	return &Mutation[T]{root: newRoot(opMutation, opts), table: tableFor[T]()}
}

// MutateIn starts function mutations inside b.
func MutateIn[T model.Model](b *Batch) *Mutation[T] {
	m := &Mutation[T]{root: b.root, table: tableFor[T]()}
	if b.root.operation != opMutation {
		m.err = clientErrorf("function mutations need a mutation batch")
	}
	return m
}

// OneFunction calls a volatile function expected to yield a single row.
func (m *Mutation[T]) OneFunction(name string, args map[string]any) *OneFinalizer[T] {
	if m.err != nil {
		return oneFinalizerErr[T](m.err)
	}
	n := functionNode(m.root, m.table, name, args, ListParams{Limit: 1}, "")
	fn := m.table.Qualify(name)
	return &OneFinalizer[T]{node: n, failure: func() error {
		return &MutationFailedError{Function: fn}
	}}
}

// ManyFunction calls a volatile function yielding a row set shaped by p.
func (m *Mutation[T]) ManyFunction(name string, args map[string]any, p ListParams) *ManyFinalizer[T] {
	if m.err != nil {
		return manyFinalizerErr[T](m.err)
	}
	return &ManyFinalizer[T]{node: functionNode(m.root, m.table, name, args, p, "")}
}
