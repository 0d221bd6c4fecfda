package nestling

import (
	"github.com/google/uuid"

	"github.com/hanpama/nestling/model"
)

// Delete builds delete mutations for the table model T.
type Delete[T model.Model] struct {
	root  *root
	table *model.Table
	err   error
}

// NewDelete starts a standalone delete document for T.
func NewDelete[T model.Model](opts ...Option) *Delete[T] {
	return &Delete[T]{root: newRoot(opMutation, opts), table: tableFor[T]()}
}

// DeleteIn starts delete operations inside b.
func DeleteIn[T model.Model](b *Batch) *Delete[T] {
	d := &Delete[T]{root: b.root, table: tableFor[T]()}
	if b.root.operation != opMutation {
		d.err = clientErrorf("delete operations need a mutation batch")
	}
	return d
}

// OneByPK deletes the row addressed by its primary key.
func (d *Delete[T]) OneByPK(id uuid.UUID) *OneFinalizer[T] {
	if d.err != nil {
		return oneFinalizerErr[T](d.err)
	}
	t := d.table
	n := d.root.newChild(t, "delete_"+t.QualifiedName()+"_by_pk")
	pkType := t.PK.Type
	if pkType == "" {
		pkType = "uuid!"
	}
	n.frag.addArg(d.root, t.PK.Column, pkType, id)
	return &OneFinalizer[T]{node: n, failure: func() error {
		return &NotFoundError{Table: t.QualifiedName(), Op: "delete"}
	}}
}

// Many deletes every row matching where. The filter is required; an
// unconditional delete must say so with an empty Where.
func (d *Delete[T]) Many(where Where) *AffectedFinalizer[T] {
	if d.err != nil {
		return affectedFinalizerErr[T](d.err)
	}
	n := d.root.newChild(d.table, "delete_"+d.table.QualifiedName())
	n.buildConditionals(conditionals{where: where, whereRequired: true})
	return &AffectedFinalizer[T]{node: n}
}
