package events

import "time"

// ExecuteStart is emitted before a document is dispatched.
type ExecuteStart struct {
	Operation string
	Document  string
	Variables int
	Batch     bool
}

// ExecuteFinish is emitted once the document's response has been decoded
// (or dispatch gave up).
type ExecuteFinish struct {
	Operation string
	Err       error
	Duration  time.Duration
}
