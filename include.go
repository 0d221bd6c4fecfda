package nestling

import "github.com/hanpama/nestling/model"

type includeMode uint8

const (
	includeOne includeMode = iota
	includeMany
	includeAggregate
)

// Include is a relation sub-query carried inside a column list. It stays
// unbound until the enclosing finalizer resolves its columns, at which
// point it attaches under the parent node and renders as the relation
// field. An Include value is single-use.
type Include struct {
	table       *model.Table
	field       string
	mode        includeMode
	params      ListParams
	columns     []any
	aggs        Aggregations
	withNodes   bool
	nodeColumns []any
	bound       bool
}

// IncludeOne selects columns of a single-valued relation to the table
// model T.
func IncludeOne[T model.Model](columns ...any) *Include {
	return &Include{table: tableFor[T](), mode: includeOne, columns: columns}
}

// IncludeMany selects rows of a list relation to the table model T.
func IncludeMany[T model.Model](p ListParams, columns ...any) *Include {
	return &Include{table: tableFor[T](), mode: includeMany, params: p, columns: columns}
}

// IncludeAggregate computes aggregates over a list relation to the table
// model T.
func IncludeAggregate[T model.Model](p ListParams, aggs Aggregations) *Include {
	return &Include{table: tableFor[T](), mode: includeAggregate, params: p, aggs: aggs}
}

// IncludeAggregateWithNodes computes aggregates and selects the matching
// relation rows next to them.
func IncludeAggregateWithNodes[T model.Model](p ListParams, aggs Aggregations, columns ...any) *Include {
	if columns == nil {
		columns = []any{}
	}
	return &Include{
		table:       tableFor[T](),
		mode:        includeAggregate,
		params:      p,
		aggs:        aggs,
		withNodes:   true,
		nodeColumns: columns,
	}
}

// Via names the relation field explicitly instead of resolving it from the
// parent descriptor. Needed when two relations point at the same table.
func (inc *Include) Via(field string) *Include {
	inc.field = field
	return inc
}

// relationField resolves which field of parent carries this include.
func (inc *Include) relationField(parent *model.Table) (model.Field, error) {
	wantKind := model.Relation
	if inc.mode != includeOne {
		wantKind = model.RelationList
	}
	target := inc.table.QualifiedName()

	if inc.field != "" {
		f, ok := parent.Field(inc.field)
		if !ok {
			return model.Field{}, clientErrorf("table %s has no field %q", parent.QualifiedName(), inc.field)
		}
		if f.Kind == model.Scalar {
			return model.Field{}, clientErrorf("field %q of %s is not a relation", inc.field, parent.QualifiedName())
		}
		if f.Ref != target {
			return model.Field{}, clientErrorf("field %q of %s relates to %s, not %s", inc.field, parent.QualifiedName(), f.Ref, target)
		}
		return f, nil
	}

	var matches []model.Field
	for _, f := range parent.Relations() {
		if f.Kind == wantKind && f.Ref == target {
			matches = append(matches, f)
		}
	}
	switch len(matches) {
	case 0:
		return model.Field{}, clientErrorf("table %s has no %s relation to %s", parent.QualifiedName(), wantKind, target)
	case 1:
		return matches[0], nil
	default:
		return model.Field{}, clientErrorf("table %s has several relations to %s; name one with Via", parent.QualifiedName(), target)
	}
}

// bind attaches the include under parent and builds its fragments.
func (inc *Include) bind(parent *node) (*node, error) {
	if inc.bound {
		return nil, clientErrorf("include of %s is already bound; build a fresh one per query", inc.table.QualifiedName())
	}
	if parent.table == nil {
		return nil, clientErrorf("includes need a parent table descriptor")
	}
	f, err := inc.relationField(parent.table)
	if err != nil {
		return nil, err
	}

	queryName := f.Name
	if inc.mode == includeAggregate && f.Kind == model.RelationList {
		queryName += "_aggregate"
	}

	n := &node{table: inc.table, frag: newFragments(queryName)}
	if err := n.bindTo(parent); err != nil {
		return nil, err
	}
	inc.bound = true

	if inc.mode != includeOne {
		n.buildConditionals(conditionals{
			where:      inc.params.Where,
			distinctOn: inc.params.DistinctOn,
			orderBy:    inc.params.OrderBy,
			limit:      inc.params.Limit,
			offset:     inc.params.Offset,
		})
	}

	switch inc.mode {
	case includeAggregate:
		if inc.aggs.isZero() {
			return nil, clientErrorf("aggregate include of %s selects no aggregates", inc.table.QualifiedName())
		}
		n.buildAggregations(inc.aggs)
		if inc.withNodes {
			cols, err := resolveColumns(n, inc.nodeColumns)
			if err != nil {
				return nil, err
			}
			n.frag.selections = append(n.frag.selections, nodesSelection{cols: cols})
		}
	default:
		cols, err := resolveColumns(n, inc.columns)
		if err != nil {
			return nil, err
		}
		n.frag.selections = append(n.frag.selections, cols)
	}
	return n, nil
}
