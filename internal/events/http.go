package events

import "time"

// HTTPStart is emitted before one dispatch attempt leaves the process.
type HTTPStart struct {
	Method string
	URL    string
}

// HTTPFinish is emitted after one dispatch attempt returns.
type HTTPFinish struct {
	Method   string
	URL      string
	Status   int
	Err      error
	Duration time.Duration
}
