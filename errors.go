package nestling

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel targets for errors.Is. The concrete error types below all match
// their sentinel, so callers can branch without keeping the structured
// detail around.
var (
	ErrNotFound       = errors.New("nestling: record not found")
	ErrInsertFailed   = errors.New("nestling: insert failed")
	ErrMutationFailed = errors.New("nestling: mutation failed")
)

// ClientError reports misuse of the builders detected before any request
// leaves the process: binding a node twice, reading a response before
// execution, dispatching without an endpoint, and so on.
type ClientError struct {
	msg string
}

func clientErrorf(format string, args ...any) *ClientError {
	return &ClientError{msg: fmt.Sprintf(format, args...)}
}

func (e *ClientError) Error() string { return "nestling: " + e.msg }

// IsClientError reports whether err is a builder-misuse error.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// GraphQLError is one entry of a GraphQL "errors" payload.
type GraphQLError struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

// ServerError reports a failed round trip: a transport failure after
// retries were exhausted, a non-2xx status, or a 2xx response whose body
// carries a GraphQL errors payload.
type ServerError struct {
	Errors []GraphQLError
	cause  error
}

func (e *ServerError) Error() string {
	if len(e.Errors) > 0 {
		msgs := make([]string, len(e.Errors))
		for i, ge := range e.Errors {
			msgs[i] = ge.Message
		}
		return "nestling: server returned errors: " + strings.Join(msgs, "; ")
	}
	if e.cause != nil {
		return "nestling: request failed: " + e.cause.Error()
	}
	return "nestling: request failed"
}

func (e *ServerError) Unwrap() error { return e.cause }

// IsServerError reports whether err came back from (or on the way to) the
// backend rather than from builder misuse.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}

// StatusError is a non-2xx HTTP response observed during dispatch. It is
// what retry predicates see for status-based retries; after retries it is
// wrapped in a ServerError.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nestling: unexpected status %d", e.Code)
}

// NotFoundError reports a single-record lookup, update or delete whose
// response row was null.
type NotFoundError struct {
	Table string
	Op    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("nestling: %s %s: record not found", e.Op, e.Table)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsNotFound reports whether err means the addressed record does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// InsertFailedError reports a single-row insert whose response row was
// null, which happens when an on_conflict clause matched and updated
// nothing.
type InsertFailedError struct {
	Table string
}

func (e *InsertFailedError) Error() string {
	return fmt.Sprintf("nestling: insert %s: no row returned", e.Table)
}

func (e *InsertFailedError) Is(target error) bool { return target == ErrInsertFailed }

// IsInsertFailed reports whether err means an insert produced no row.
func IsInsertFailed(err error) bool { return errors.Is(err, ErrInsertFailed) }

// MutationFailedError reports a volatile function call whose response was
// null.
type MutationFailedError struct {
	Function string
}

func (e *MutationFailedError) Error() string {
	return fmt.Sprintf("nestling: mutation %s: no result returned", e.Function)
}

func (e *MutationFailedError) Is(target error) bool { return target == ErrMutationFailed }

// IsMutationFailed reports whether err means a function mutation returned
// nothing.
func IsMutationFailed(err error) bool { return errors.Is(err, ErrMutationFailed) }
