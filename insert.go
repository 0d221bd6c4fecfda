package nestling

import "github.com/hanpama/nestling/model"

// Insert builds insert mutations for the table model T. Row values may be
// plain maps or model instances; model instances are projected to input
// form with nested relations wrapped in {"data": ...}.
type Insert[T model.Model] struct {
	root  *root
	table *model.Table
	err   error
}

// NewInsert starts a standalone insert document for T.
func NewInsert[T model.Model](opts ...Option) *Insert[T] {
	return &Insert[T]{root: newRoot(opMutation, opts), table: tableFor[T]()}
}

// InsertIn starts insert operations inside b.
func InsertIn[T model.Model](b *Batch) *Insert[T] {
	i := &Insert[T]{root: b.root, table: tableFor[T]()}
	if b.root.operation != opMutation {
		i.err = clientErrorf("insert operations need a mutation batch")
	}
	return i
}

// One inserts a single row, optionally upserting through onConflict.
func (i *Insert[T]) One(object any, onConflict *OnConflict) *OneFinalizer[T] {
	if i.err != nil {
		return oneFinalizerErr[T](i.err)
	}
	if object == nil {
		return oneFinalizerErr[T](clientErrorf("insert one: no row values given"))
	}
	t := i.table
	n := i.root.newChild(t, "insert_"+t.QualifiedName()+"_one")
	n.buildConditionals(conditionals{object: object, onConflict: onConflict})
	return &OneFinalizer[T]{node: n, failure: func() error {
		return &InsertFailedError{Table: t.QualifiedName()}
	}}
}

// Many inserts a batch of rows in one statement.
func (i *Insert[T]) Many(objects []any, onConflict *OnConflict) *AffectedFinalizer[T] {
	if i.err != nil {
		return affectedFinalizerErr[T](i.err)
	}
	if len(objects) == 0 {
		return affectedFinalizerErr[T](clientErrorf("insert many: no rows given"))
	}
	n := i.root.newChild(i.table, "insert_"+i.table.QualifiedName())
	n.buildConditionals(conditionals{objects: objects, onConflict: onConflict})
	return &AffectedFinalizer[T]{node: n}
}
