package nestling

import "context"

// Batch collects several operations of the same kind into one document and
// dispatches them in a single round trip. Operations are added through the
// *In constructors; their finalizers only record selections and hand out
// Deferred results.
type Batch struct {
	root *root
}

// NewQueryBatch starts an empty batched query document.
func NewQueryBatch(opts ...Option) *Batch {
	r := newRoot(opQuery, opts)
	r.isBatch = true
	return &Batch{root: r}
}

// NewMutationBatch starts an empty batched mutation document.
func NewMutationBatch(opts ...Option) *Batch {
	r := newRoot(opMutation, opts)
	r.isBatch = true
	return &Batch{root: r}
}

// Execute dispatches the batch. It runs at most once; Deferred results
// become readable afterwards.
func (b *Batch) Execute(ctx context.Context) error {
	if b.root.executed {
		return clientErrorf("batch already executed")
	}
	if len(b.root.node.children) == 0 {
		return clientErrorf("batch holds no operations")
	}
	return b.root.execute(ctx)
}

// WithQueryBatch runs fn with a fresh query batch and executes it when fn
// returns nil. A non-nil return skips execution and is passed through, so
// bailing out of the callback discards the batch.
func WithQueryBatch(ctx context.Context, fn func(*Batch) error, opts ...Option) error {
	b := NewQueryBatch(opts...)
	if err := fn(b); err != nil {
		return err
	}
	return b.Execute(ctx)
}

// WithMutationBatch runs fn with a fresh mutation batch and executes it
// when fn returns nil.
func WithMutationBatch(ctx context.Context, fn func(*Batch) error, opts ...Option) error {
	b := NewMutationBatch(opts...)
	if err := fn(b); err != nil {
		return err
	}
	return b.Execute(ctx)
}
