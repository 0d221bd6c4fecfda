package nestling

import (
	"github.com/google/uuid"

	"github.com/hanpama/nestling/model"
)

func tableFor[T model.Model]() *model.Table {
	var zero T
	return zero.ModelTable()
}

// Query builds read operations for the table model T. Each method adds one
// operation node to the underlying document; outside a batch the document
// holds exactly the operations built before its finalizer runs.
type Query[T model.Model] struct {
	root  *root
	table *model.Table
	err   error
}

// NewQuery starts a standalone query document for T. Its finalizers
// execute immediately.
func NewQuery[T model.Model](opts ...Option) *Query[T] {
	return &Query[T]{root: newRoot(opQuery, opts), table: tableFor[T]()}
}

// QueryIn starts query operations inside b. Finalizers only record
// selections; b.Execute dispatches them all at once.
func QueryIn[T model.Model](b *Batch) *Query[T] {
	q := &Query[T]{root: b.root, table: tableFor[T]()}
	if b.root.operation != opQuery {
		q.err = clientErrorf("query operations need a query batch")
	}
	return q
}

// NewQueryFor starts a query document over a runtime descriptor, yielding
// untyped rows.
func NewQueryFor(table *model.Table, opts ...Option) *Query[model.Row] {
	return &Query[model.Row]{root: newRoot(opQuery, opts), table: table}
}

// OneByPK addresses one row by its primary key.
func (q *Query[T]) OneByPK(id uuid.UUID) *OneFinalizer[T] {
	if q.err != nil {
		return oneFinalizerErr[T](q.err)
	}
	t := q.table
	n := q.root.newChild(t, t.QualifiedName()+"_by_pk")
	pkType := t.PK.Type
	if pkType == "" {
		pkType = "uuid!"
	}
	n.frag.addArg(q.root, t.PK.Column, pkType, id)
	return &OneFinalizer[T]{node: n, failure: func() error {
		return &NotFoundError{Table: t.QualifiedName(), Op: "query"}
	}}
}

// Many selects the rows matching p.
func (q *Query[T]) Many(p ListParams) *ManyFinalizer[T] {
	if q.err != nil {
		return manyFinalizerErr[T](q.err)
	}
	n := q.root.newChild(q.table, q.table.QualifiedName())
	n.buildConditionals(conditionals{
		where:      p.Where,
		distinctOn: p.DistinctOn,
		orderBy:    p.OrderBy,
		limit:      p.Limit,
		offset:     p.Offset,
	})
	return &ManyFinalizer[T]{node: n}
}

// Aggregate computes aggregates over the rows matching p.
func (q *Query[T]) Aggregate(p ListParams) *AggregateFinalizer[T] {
	if q.err != nil {
		return aggregateFinalizerErr[T](q.err)
	}
	n := q.root.newChild(q.table, q.table.QualifiedName()+"_aggregate")
	n.buildConditionals(conditionals{
		where:      p.Where,
		distinctOn: p.DistinctOn,
		orderBy:    p.OrderBy,
		limit:      p.Limit,
		offset:     p.Offset,
	})
	return &AggregateFinalizer[T]{node: n}
}

// functionNode builds the operation node for a stored function returning
// rows of table. The function name is schema-qualified the same way the
// table name is.
func functionNode(r *root, table *model.Table, name string, args map[string]any, p ListParams, suffix string) *node {
	qualified := table.Qualify(name)
	n := r.newChild(table, qualified+suffix)
	if args == nil {
		args = map[string]any{}
	}
	n.buildConditionals(conditionals{
		where:      p.Where,
		distinctOn: p.DistinctOn,
		orderBy:    p.OrderBy,
		limit:      p.Limit,
		offset:     p.Offset,
		args:       args,
		argsType:   qualified,
	})
	return n
}

// OneFunction calls a stored function expected to yield a single row.
func (q *Query[T]) OneFunction(name string, args map[string]any) *OneFinalizer[T] {
	if q.err != nil {
		return oneFinalizerErr[T](q.err)
	}
	n := functionNode(q.root, q.table, name, args, ListParams{Limit: 1}, "")
	fn := q.table.Qualify(name)
	return &OneFinalizer[T]{node: n, failure: func() error {
		return &NotFoundError{Table: fn, Op: "function"}
	}}
}

// ManyFunction calls a stored function yielding a row set shaped by p.
func (q *Query[T]) ManyFunction(name string, args map[string]any, p ListParams) *ManyFinalizer[T] {
	if q.err != nil {
		return manyFinalizerErr[T](q.err)
	}
	return &ManyFinalizer[T]{node: functionNode(q.root, q.table, name, args, p, "")}
}

// AggregateFunction aggregates over a stored function's row set.
func (q *Query[T]) AggregateFunction(name string, args map[string]any, p ListParams) *AggregateFinalizer[T] {
	if q.err != nil {
		return aggregateFinalizerErr[T](q.err)
	}
	return &AggregateFinalizer[T]{node: functionNode(q.root, q.table, name, args, p, "_aggregate")}
}
