package nestling

import "net/http"

// Doer dispatches one HTTP request. *http.Client satisfies it; tests
// substitute fakes.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option adjusts a root before any operation is built on it.
type Option func(*root)

// WithConfig overlays cfg on the environment defaults for this root.
func WithConfig(cfg Config) Option {
	return func(r *root) { r.cfg = r.cfg.merge(cfg) }
}

// WithDoer makes the root dispatch through d instead of an internally
// owned http.Client. The caller keeps ownership; idle connections are not
// touched after execution.
func WithDoer(d Doer) Option {
	return func(r *root) {
		r.doer = d
		r.ownsDoer = false
	}
}

func newDefaultDoer() Doer { return &http.Client{} }

// releaseDoer drops idle connections of an internally owned client once
// the root is done with it.
func (r *root) releaseDoer() {
	if !r.ownsDoer {
		return
	}
	if c, ok := r.doer.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
