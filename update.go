package nestling

import "github.com/hanpama/nestling/model"

// Update builds update mutations for the table model T.
type Update[T model.Model] struct {
	root  *root
	table *model.Table
	err   error
}

// NewUpdate starts a standalone update document for T.
func NewUpdate[T model.Model](opts ...Option) *Update[T] {
	return &Update[T]{root: newRoot(opMutation, opts), table: tableFor[T]()}
}

// UpdateIn starts update operations inside b.
func UpdateIn[T model.Model](b *Batch) *Update[T] {
	u := &Update[T]{root: b.root, table: tableFor[T]()}
	if b.root.operation != opMutation {
		u.err = clientErrorf("update operations need a mutation batch")
	}
	return u
}

func changesConditionals(ch UpdateChanges) conditionals {
	return conditionals{
		set:          ch.Set,
		inc:          ch.Inc,
		appendCols:   ch.Append,
		prependCols:  ch.Prepend,
		deleteKey:    ch.DeleteKey,
		deleteElem:   ch.DeleteElem,
		deleteAtPath: ch.DeleteAtPath,
	}
}

// OneByPK updates the row addressed by pk, given as the pk_columns input
// value.
func (u *Update[T]) OneByPK(pk map[string]any, ch UpdateChanges) *OneFinalizer[T] {
	if u.err != nil {
		return oneFinalizerErr[T](u.err)
	}
	if len(pk) == 0 {
		return oneFinalizerErr[T](clientErrorf("update by pk: no key columns given"))
	}
	if ch.isZero() {
		return oneFinalizerErr[T](clientErrorf("update by pk: no changes given"))
	}
	t := u.table
	n := u.root.newChild(t, "update_"+t.QualifiedName()+"_by_pk")
	c := changesConditionals(ch)
	c.pkColumns = pk
	n.buildConditionals(c)
	return &OneFinalizer[T]{node: n, failure: func() error {
		return &NotFoundError{Table: t.QualifiedName(), Op: "update"}
	}}
}

// Many updates every row matching where. The filter is required; an
// unconditional update must say so with an empty Where.
func (u *Update[T]) Many(where Where, ch UpdateChanges) *AffectedFinalizer[T] {
	if u.err != nil {
		return affectedFinalizerErr[T](u.err)
	}
	if ch.isZero() {
		return affectedFinalizerErr[T](clientErrorf("update many: no changes given"))
	}
	n := u.root.newChild(u.table, "update_"+u.table.QualifiedName())
	c := changesConditionals(ch)
	c.where = where
	c.whereRequired = true
	n.buildConditionals(c)
	return &AffectedFinalizer[T]{node: n}
}

// ManyDistinct runs several updates in order within one statement, each
// with its own filter and values.
func (u *Update[T]) ManyDistinct(updates []DistinctUpdate) *DistinctFinalizer[T] {
	if u.err != nil {
		return distinctFinalizerErr[T](u.err)
	}
	if len(updates) == 0 {
		return distinctFinalizerErr[T](clientErrorf("update many distinct: no updates given"))
	}
	for i, up := range updates {
		if len(up.Set) == 0 {
			return distinctFinalizerErr[T](clientErrorf("update many distinct: update %d changes nothing", i))
		}
	}
	n := u.root.newChild(u.table, "update_"+u.table.QualifiedName()+"_many")
	n.buildConditionals(conditionals{updates: updates})
	return &DistinctFinalizer[T]{node: n}
}
