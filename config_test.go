package nestling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigMerge(t *testing.T) {
	base := Config{
		URL:     "http://base.test/v1/graphql",
		Headers: map[string]string{"X-Hasura-Role": "reader", "X-Keep": "yes"},
		Retry:   DefaultRetryConfig(),
	}

	merged := base.merge(Config{
		Headers: map[string]string{"X-Hasura-Role": "writer"},
	})
	require.Equal(t, "http://base.test/v1/graphql", merged.URL, "unset URL must not shadow")
	require.Equal(t, "writer", merged.Headers["X-Hasura-Role"])
	require.Equal(t, "yes", merged.Headers["X-Keep"])
	require.Equal(t, DefaultRetryConfig().MaxAttempts, merged.Retry.MaxAttempts)

	merged = base.merge(Config{
		URL:   "http://override.test/v1/graphql",
		Retry: RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	})
	require.Equal(t, "http://override.test/v1/graphql", merged.URL)
	require.Equal(t, 2, merged.Retry.MaxAttempts, "set retry must replace wholesale")

	// Merging never mutates the base.
	require.Equal(t, "reader", base.Headers["X-Hasura-Role"])
}

func TestDefaultShouldRetry(t *testing.T) {
	require.False(t, DefaultShouldRetry(nil))
	require.True(t, DefaultShouldRetry(&StatusError{Code: 500}))
	require.True(t, DefaultShouldRetry(&StatusError{Code: 429}))
	require.False(t, DefaultShouldRetry(&StatusError{Code: 400}))
	require.False(t, DefaultShouldRetry(&StatusError{Code: 404}))
}
