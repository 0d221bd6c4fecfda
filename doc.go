// Package nestling is a typed client for Hasura-style GraphQL data layers.
//
// Operations are built from generated table models: a builder per
// operation family (Query, Insert, Update, Delete, Mutation) adds nodes to
// a document, and a finalizer per result shape renders the document,
// hoists every argument into document-unique variables, dispatches it with
// retries and decodes the response back into model values.
//
// Several operations can share one round trip through a Batch, whose
// finalizers hand out Deferred results instead of executing. Large row
// sets can be consumed incrementally with Yielding, which decodes the
// response body one row at a time.
package nestling
