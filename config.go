package nestling

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"
)

// Environment variables read by DefaultConfig.
const (
	EnvURL         = "HASURA_URL"
	EnvAdminSecret = "HASURA_ADMIN_SECRET"
	EnvRole        = "HASURA_ROLE"
)

// Headers derived from the environment.
const (
	headerAdminSecret = "X-Hasura-Admin-Secret"
	headerRole        = "X-Hasura-Role"
)

// Config carries everything a root needs to reach the backend. The zero
// value is usable for rendering but not for dispatch; execution without a
// URL fails with a ClientError before any request is made.
type Config struct {
	// URL is the GraphQL endpoint, e.g. "http://localhost:8080/v1/graphql".
	URL string
	// Headers are sent on every request.
	Headers map[string]string
	// Retry governs dispatch retries. Zero value means DefaultRetryConfig.
	Retry RetryConfig
}

// RetryConfig configures the retry executor wrapped around each dispatch.
type RetryConfig struct {
	// MaxAttempts bounds the total number of tries, first attempt included.
	MaxAttempts int
	// BaseDelay and MaxDelay bound the exponential backoff between tries.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Jitter randomizes each delay by the given factor (0 disables).
	Jitter float64
	// RetryIf decides whether an attempt error is worth retrying. Nil means
	// DefaultShouldRetry.
	RetryIf func(error) bool
	// OnRetry runs before each re-attempt with the 1-based number of the
	// attempt that just failed and its error.
	OnRetry func(attempt int, err error)
}

func (rc RetryConfig) isZero() bool {
	return rc.MaxAttempts == 0 && rc.BaseDelay == 0 && rc.MaxDelay == 0 &&
		rc.Jitter == 0 && rc.RetryIf == nil && rc.OnRetry == nil
}

// DefaultRetryConfig returns the retry policy used when none is set: five
// attempts with exponential backoff from one second up to a minute, with
// jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    time.Minute,
		Jitter:      0.25,
	}
}

// DefaultShouldRetry retries transport-level failures and throttling or
// server-side statuses. Context cancellation and deadline expiry are never
// retried, and neither is anything that happens after a usable response
// arrived.
func DefaultShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	// Anything else at this layer is a transport failure.
	return true
}

var (
	envOnce sync.Once
	envCfg  Config
)

// DefaultConfig returns the process-wide configuration read from the
// environment on first use. The library never loads .env files itself; the
// CLI does that before calling in.
func DefaultConfig() Config {
	envOnce.Do(func() {
		envCfg = Config{
			URL:     os.Getenv(EnvURL),
			Headers: map[string]string{},
			Retry:   DefaultRetryConfig(),
		}
		if secret := os.Getenv(EnvAdminSecret); secret != "" {
			envCfg.Headers[headerAdminSecret] = secret
		}
		if role := os.Getenv(EnvRole); role != "" {
			envCfg.Headers[headerRole] = role
		}
	})
	return envCfg.clone()
}

func (c Config) clone() Config {
	out := c
	out.Headers = make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		out.Headers[k] = v
	}
	return out
}

// merge overlays override on top of c: URL shadows when set, headers merge
// per key, retry is replaced wholesale when any of its fields is set.
func (c Config) merge(override Config) Config {
	out := c.clone()
	if override.URL != "" {
		out.URL = override.URL
	}
	for k, v := range override.Headers {
		out.Headers[k] = v
	}
	if !override.Retry.isZero() {
		out.Retry = override.Retry
	}
	return out
}
