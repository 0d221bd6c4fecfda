package nestling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hanpama/nestling/model"
)

// exceptColumns marks an inverted selection.
type exceptColumns []string

// Except selects every scalar column of the model except the named ones.
// It must be the only element of a column list.
func Except(columns ...string) any { return exceptColumns(columns) }

// resolveColumns turns caller-supplied column arguments into a rendered
// selection: plain names are checked against the model descriptor,
// includes are bound to the node, an empty list falls back to the identity
// column, and Except inverts the selection.
func resolveColumns(n *node, cols []any) (columnList, error) {
	t := n.table

	if len(cols) == 1 {
		if exc, ok := cols[0].(exceptColumns); ok {
			if t == nil {
				return columnList{}, clientErrorf("inverted selection needs a table descriptor")
			}
			excluded := map[string]bool{}
			for _, c := range exc {
				if f, ok := t.Field(c); !ok || f.Kind != model.Scalar {
					return columnList{}, clientErrorf("cannot exclude unknown column %q of %s", c, t.QualifiedName())
				}
				excluded[c] = true
			}
			var items []any
			for _, c := range t.Columns() {
				if !excluded[c] {
					items = append(items, c)
				}
			}
			if len(items) == 0 {
				return columnList{}, clientErrorf("inverted selection on %s excludes every column", t.QualifiedName())
			}
			return columnList{items: items}, nil
		}
	}

	if len(cols) == 0 {
		if t != nil && t.PK.Column != "" {
			return columnList{items: []any{t.PK.Column}}, nil
		}
		if t != nil {
			all := t.Columns()
			items := make([]any, len(all))
			for i, c := range all {
				items[i] = c
			}
			return columnList{items: items}, nil
		}
		return columnList{}, clientErrorf("no columns given and no descriptor to default from")
	}

	items := make([]any, 0, len(cols))
	for _, col := range cols {
		switch v := col.(type) {
		case string:
			if t != nil && len(t.Fields) > 0 {
				f, ok := t.Field(v)
				if !ok {
					return columnList{}, clientErrorf("unknown column %q of %s", v, t.QualifiedName())
				}
				if f.Kind != model.Scalar {
					return columnList{}, clientErrorf("column %q of %s is a relation; select it with an include", v, t.QualifiedName())
				}
			}
			items = append(items, v)
		case *Include:
			child, err := v.bind(n)
			if err != nil {
				return columnList{}, err
			}
			items = append(items, child)
		case exceptColumns:
			return columnList{}, clientErrorf("Except must be the only column argument")
		default:
			return columnList{}, clientErrorf("unsupported column argument %T", col)
		}
	}
	return columnList{items: items}, nil
}

// decodeResult re-encodes a decoded JSON value into the target type. The
// round trip is what lets arbitrary generated models share one untyped
// response map.
func decodeResult[T any](v any) (T, error) {
	var out T
	b, err := json.Marshal(v)
	if err != nil {
		return out, &ServerError{cause: fmt.Errorf("re-encode result: %w", err)}
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, &ServerError{cause: fmt.Errorf("decode result: %w", err)}
	}
	return out, nil
}

func requireImmediate(r *root) error {
	if r.isBatch {
		return clientErrorf("operation belongs to a batch; use the Defer accessors and Execute the batch")
	}
	return nil
}

func requireBatch(r *root) error {
	if !r.isBatch {
		return clientErrorf("Defer is only available inside a batch")
	}
	return nil
}

// Deferred is the handle to one operation's result inside a batch. Get
// resolves it after the batch has executed; the result is computed once
// and cached, so repeated reads are stable even though the underlying
// response data is popped.
type Deferred[T any] struct {
	root  *root
	fetch func() (T, error)

	err  error
	once sync.Once
	val  T
	rerr error
}

func deferredErr[T any](err error) *Deferred[T] {
	return &Deferred[T]{err: err}
}

func (d *Deferred[T]) Get() (T, error) {
	var zero T
	if d.err != nil {
		return zero, d.err
	}
	if !d.root.executed {
		return zero, clientErrorf("deferred result accessed before the batch executed")
	}
	d.once.Do(func() {
		d.val, d.rerr = d.fetch()
	})
	if d.rerr != nil {
		return zero, d.rerr
	}
	return d.val, nil
}

// OneFinalizer terminates operations that address a single row.
type OneFinalizer[T model.Model] struct {
	node    *node
	failure func() error
	err     error
}

func oneFinalizerErr[T model.Model](err error) *OneFinalizer[T] {
	return &OneFinalizer[T]{err: err}
}

func (f *OneFinalizer[T]) prepare(columns []any) error {
	if f.err != nil {
		return f.err
	}
	cols, err := resolveColumns(f.node, columns)
	if err != nil {
		return err
	}
	f.node.frag.selections = append(f.node.frag.selections, cols)
	return nil
}

func (f *OneFinalizer[T]) fetch() (*T, error) {
	v, err := f.node.root.getResponse(f.node.alias)
	if err != nil {
		return nil, err
	}
	// Stored functions yield row sets even when addressed as one row.
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, f.failure()
		}
		v = list[0]
	}
	if v == nil {
		return nil, f.failure()
	}
	out, err := decodeResult[T](v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Returning executes the document and decodes the addressed row. A null
// row is an error whose kind depends on the operation.
func (f *OneFinalizer[T]) Returning(ctx context.Context, columns ...any) (*T, error) {
	if err := f.prepare(columns); err != nil {
		return nil, err
	}
	if err := requireImmediate(f.node.root); err != nil {
		return nil, err
	}
	if err := f.node.root.execute(ctx); err != nil {
		return nil, err
	}
	return f.fetch()
}

// Defer records the selection and returns the batch handle for the row.
func (f *OneFinalizer[T]) Defer(columns ...any) *Deferred[*T] {
	if err := f.prepare(columns); err != nil {
		return deferredErr[*T](err)
	}
	if err := requireBatch(f.node.root); err != nil {
		return deferredErr[*T](err)
	}
	return &Deferred[*T]{root: f.node.root, fetch: f.fetch}
}

// ManyFinalizer terminates operations that return a list of rows.
type ManyFinalizer[T model.Model] struct {
	node *node
	err  error
}

func manyFinalizerErr[T model.Model](err error) *ManyFinalizer[T] {
	return &ManyFinalizer[T]{err: err}
}

func (f *ManyFinalizer[T]) prepare(columns []any) error {
	if f.err != nil {
		return f.err
	}
	cols, err := resolveColumns(f.node, columns)
	if err != nil {
		return err
	}
	f.node.frag.selections = append(f.node.frag.selections, cols)
	return nil
}

func (f *ManyFinalizer[T]) fetch() ([]T, error) {
	v, err := f.node.root.getResponse(f.node.alias)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []T{}, nil
	}
	return decodeResult[[]T](v)
}

// Returning executes the document and decodes the rows. No match is an
// empty slice, not an error.
func (f *ManyFinalizer[T]) Returning(ctx context.Context, columns ...any) ([]T, error) {
	if err := f.prepare(columns); err != nil {
		return nil, err
	}
	if err := requireImmediate(f.node.root); err != nil {
		return nil, err
	}
	if err := f.node.root.execute(ctx); err != nil {
		return nil, err
	}
	return f.fetch()
}

// Yielding executes the document in streaming mode and returns a row
// iterator decoding elements as they arrive.
func (f *ManyFinalizer[T]) Yielding(ctx context.Context, columns ...any) (*Rows[T], error) {
	if err := f.prepare(columns); err != nil {
		return nil, err
	}
	if err := requireImmediate(f.node.root); err != nil {
		return nil, err
	}
	body, err := f.node.root.executeStream(ctx)
	if err != nil {
		return nil, err
	}
	return newRows[T](body, f.node.alias), nil
}

// Defer records the selection and returns the batch handle for the rows.
func (f *ManyFinalizer[T]) Defer(columns ...any) *Deferred[[]T] {
	if err := f.prepare(columns); err != nil {
		return deferredErr[[]T](err)
	}
	if err := requireBatch(f.node.root); err != nil {
		return deferredErr[[]T](err)
	}
	return &Deferred[[]T]{root: f.node.root, fetch: f.fetch}
}

// MutationResult pairs the returned rows of a bulk mutation with its
// affected row count.
type MutationResult[T model.Model] struct {
	Rows         []T `json:"returning"`
	AffectedRows int `json:"affected_rows"`
}

// AffectedFinalizer terminates bulk mutations, which expose both the
// changed rows and their count.
type AffectedFinalizer[T model.Model] struct {
	node *node
	err  error
}

func affectedFinalizerErr[T model.Model](err error) *AffectedFinalizer[T] {
	return &AffectedFinalizer[T]{err: err}
}

func (f *AffectedFinalizer[T]) prepareReturning(columns []any) error {
	if f.err != nil {
		return f.err
	}
	cols, err := resolveColumns(f.node, columns)
	if err != nil {
		return err
	}
	f.node.frag.selections = append(f.node.frag.selections, returningSelection{cols: cols})
	return nil
}

func (f *AffectedFinalizer[T]) prepareAffected() error {
	if f.err != nil {
		return f.err
	}
	f.node.frag.selections = append(f.node.frag.selections, affectedRowsSelection{})
	return nil
}

func (f *AffectedFinalizer[T]) fetchRows() ([]T, error) {
	v, err := f.node.root.getResponseKey(f.node.alias, "returning")
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []T{}, nil
	}
	return decodeResult[[]T](v)
}

func (f *AffectedFinalizer[T]) fetchAffected() (int, error) {
	v, err := f.node.root.getResponseKey(f.node.alias, "affected_rows")
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return decodeResult[int](v)
}

func (f *AffectedFinalizer[T]) run(ctx context.Context) error {
	if err := requireImmediate(f.node.root); err != nil {
		return err
	}
	return f.node.root.execute(ctx)
}

// Returning executes the mutation and decodes the changed rows.
func (f *AffectedFinalizer[T]) Returning(ctx context.Context, columns ...any) ([]T, error) {
	if err := f.prepareReturning(columns); err != nil {
		return nil, err
	}
	if err := f.run(ctx); err != nil {
		return nil, err
	}
	return f.fetchRows()
}

// AffectedRows executes the mutation and returns only the row count.
func (f *AffectedFinalizer[T]) AffectedRows(ctx context.Context) (int, error) {
	if err := f.prepareAffected(); err != nil {
		return 0, err
	}
	if err := f.run(ctx); err != nil {
		return 0, err
	}
	return f.fetchAffected()
}

// ReturningWithRows executes the mutation and returns the changed rows
// together with the affected count in one round trip.
func (f *AffectedFinalizer[T]) ReturningWithRows(ctx context.Context, columns ...any) (MutationResult[T], error) {
	if err := f.prepareReturning(columns); err != nil {
		return MutationResult[T]{}, err
	}
	if err := f.prepareAffected(); err != nil {
		return MutationResult[T]{}, err
	}
	if err := f.run(ctx); err != nil {
		return MutationResult[T]{}, err
	}
	rows, err := f.fetchRows()
	if err != nil {
		return MutationResult[T]{}, err
	}
	affected, err := f.fetchAffected()
	if err != nil {
		return MutationResult[T]{}, err
	}
	return MutationResult[T]{Rows: rows, AffectedRows: affected}, nil
}

// Defer records a returning selection and returns the batch handle.
func (f *AffectedFinalizer[T]) Defer(columns ...any) *Deferred[[]T] {
	if err := f.prepareReturning(columns); err != nil {
		return deferredErr[[]T](err)
	}
	if err := requireBatch(f.node.root); err != nil {
		return deferredErr[[]T](err)
	}
	return &Deferred[[]T]{root: f.node.root, fetch: f.fetchRows}
}

// DeferAffectedRows records an affected_rows selection and returns the
// batch handle for the count.
func (f *AffectedFinalizer[T]) DeferAffectedRows() *Deferred[int] {
	if err := f.prepareAffected(); err != nil {
		return deferredErr[int](err)
	}
	if err := requireBatch(f.node.root); err != nil {
		return deferredErr[int](err)
	}
	return &Deferred[int]{root: f.node.root, fetch: f.fetchAffected}
}

// DistinctFinalizer terminates update_many mutations, whose response is a
// list of per-update results.
type DistinctFinalizer[T model.Model] struct {
	node *node
	err  error
}

func distinctFinalizerErr[T model.Model](err error) *DistinctFinalizer[T] {
	return &DistinctFinalizer[T]{err: err}
}

func (f *DistinctFinalizer[T]) prepare(columns []any, withRows bool) error {
	if f.err != nil {
		return f.err
	}
	if columns != nil {
		cols, err := resolveColumns(f.node, columns)
		if err != nil {
			return err
		}
		f.node.frag.selections = append(f.node.frag.selections, returningSelection{cols: cols})
	}
	if withRows {
		f.node.frag.selections = append(f.node.frag.selections, affectedRowsSelection{})
	}
	return nil
}

func (f *DistinctFinalizer[T]) fetch() ([]MutationResult[T], error) {
	v, err := f.node.root.getResponse(f.node.alias)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []MutationResult[T]{}, nil
	}
	return decodeResult[[]MutationResult[T]](v)
}

// Returning executes the updates and returns each update's changed rows in
// order.
func (f *DistinctFinalizer[T]) Returning(ctx context.Context, columns ...any) ([]MutationResult[T], error) {
	if columns == nil {
		columns = []any{}
	}
	if err := f.prepare(columns, true); err != nil {
		return nil, err
	}
	if err := requireImmediate(f.node.root); err != nil {
		return nil, err
	}
	if err := f.node.root.execute(ctx); err != nil {
		return nil, err
	}
	return f.fetch()
}

// AffectedRows executes the updates and returns each update's row count in
// order.
func (f *DistinctFinalizer[T]) AffectedRows(ctx context.Context) ([]int, error) {
	if err := f.prepare(nil, true); err != nil {
		return nil, err
	}
	if err := requireImmediate(f.node.root); err != nil {
		return nil, err
	}
	if err := f.node.root.execute(ctx); err != nil {
		return nil, err
	}
	results, err := f.fetch()
	if err != nil {
		return nil, err
	}
	counts := make([]int, len(results))
	for i, res := range results {
		counts[i] = res.AffectedRows
	}
	return counts, nil
}

// Defer records the selections and returns the batch handle.
func (f *DistinctFinalizer[T]) Defer(columns ...any) *Deferred[[]MutationResult[T]] {
	if columns == nil {
		columns = []any{}
	}
	if err := f.prepare(columns, true); err != nil {
		return deferredErr[[]MutationResult[T]](err)
	}
	if err := requireBatch(f.node.root); err != nil {
		return deferredErr[[]MutationResult[T]](err)
	}
	return &Deferred[[]MutationResult[T]]{root: f.node.root, fetch: f.fetch}
}

// AggregateFinalizer terminates aggregate queries.
type AggregateFinalizer[T model.Model] struct {
	node *node
	err  error
}

func aggregateFinalizerErr[T model.Model](err error) *AggregateFinalizer[T] {
	return &AggregateFinalizer[T]{err: err}
}

func (f *AggregateFinalizer[T]) prepare(aggs Aggregations, nodeColumns []any) error {
	if f.err != nil {
		return f.err
	}
	if aggs.isZero() {
		return clientErrorf("aggregate query selects no aggregates")
	}
	f.node.buildAggregations(aggs)
	if nodeColumns != nil {
		cols, err := resolveColumns(f.node, nodeColumns)
		if err != nil {
			return err
		}
		f.node.frag.selections = append(f.node.frag.selections, nodesSelection{cols: cols})
	}
	return nil
}

func (f *AggregateFinalizer[T]) fetch() (*model.AggregateResult[T], error) {
	v, err := f.node.root.getResponse(f.node.alias)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &NotFoundError{Table: f.node.table.QualifiedName(), Op: "aggregate"}
	}
	out, err := decodeResult[model.AggregateResult[T]](v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *AggregateFinalizer[T]) run(ctx context.Context) error {
	if err := requireImmediate(f.node.root); err != nil {
		return err
	}
	return f.node.root.execute(ctx)
}

// On executes the query computing the selected aggregates.
func (f *AggregateFinalizer[T]) On(ctx context.Context, aggs Aggregations) (*model.Aggregate[T], error) {
	if err := f.prepare(aggs, nil); err != nil {
		return nil, err
	}
	if err := f.run(ctx); err != nil {
		return nil, err
	}
	res, err := f.fetch()
	if err != nil {
		return nil, err
	}
	return &res.Aggregate, nil
}

// WithNodes computes the aggregates and fetches the matching rows next to
// them.
func (f *AggregateFinalizer[T]) WithNodes(ctx context.Context, aggs Aggregations, columns ...any) (*model.AggregateResult[T], error) {
	if columns == nil {
		columns = []any{}
	}
	if err := f.prepare(aggs, columns); err != nil {
		return nil, err
	}
	if err := f.run(ctx); err != nil {
		return nil, err
	}
	return f.fetch()
}

// Count is shorthand for an aggregate computing only a row count.
func (f *AggregateFinalizer[T]) Count(ctx context.Context, arg *CountArg) (int, error) {
	if arg == nil {
		arg = &CountArg{}
	}
	agg, err := f.On(ctx, Aggregations{Count: arg})
	if err != nil {
		return 0, err
	}
	if agg.Count == nil {
		return 0, nil
	}
	return *agg.Count, nil
}

// Avg is shorthand for an aggregate computing column averages.
func (f *AggregateFinalizer[T]) Avg(ctx context.Context, columns ...string) (model.Numeric, error) {
	agg, err := f.On(ctx, Aggregations{Avg: columns})
	if err != nil {
		return nil, err
	}
	if agg.Avg == nil {
		return model.Numeric{}, nil
	}
	return *agg.Avg, nil
}

// Sum is shorthand for an aggregate computing column sums.
func (f *AggregateFinalizer[T]) Sum(ctx context.Context, columns ...string) (model.Numeric, error) {
	agg, err := f.On(ctx, Aggregations{Sum: columns})
	if err != nil {
		return nil, err
	}
	if agg.Sum == nil {
		return model.Numeric{}, nil
	}
	return *agg.Sum, nil
}

// Min is shorthand for an aggregate computing column minima.
func (f *AggregateFinalizer[T]) Min(ctx context.Context, columns ...string) (*T, error) {
	agg, err := f.On(ctx, Aggregations{Min: columns})
	if err != nil {
		return nil, err
	}
	return agg.Min, nil
}

// Max is shorthand for an aggregate computing column maxima.
func (f *AggregateFinalizer[T]) Max(ctx context.Context, columns ...string) (*T, error) {
	agg, err := f.On(ctx, Aggregations{Max: columns})
	if err != nil {
		return nil, err
	}
	return agg.Max, nil
}

// Defer records the aggregate selection and returns the batch handle.
func (f *AggregateFinalizer[T]) Defer(aggs Aggregations) *Deferred[*model.AggregateResult[T]] {
	if err := f.prepare(aggs, nil); err != nil {
		return deferredErr[*model.AggregateResult[T]](err)
	}
	if err := requireBatch(f.node.root); err != nil {
		return deferredErr[*model.AggregateResult[T]](err)
	}
	return &Deferred[*model.AggregateResult[T]]{root: f.node.root, fetch: f.fetch}
}
