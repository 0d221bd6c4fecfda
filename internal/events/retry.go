package events

// RetryAttempt is emitted before a dispatch attempt is retried. Attempt is
// the 1-based number of the attempt that just failed.
type RetryAttempt struct {
	Attempt int
	Err     error
}
