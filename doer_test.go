package nestling

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"
)

// fakeDoer serves canned responses and records every dispatched payload.
type fakeDoer struct {
	mu       sync.Mutex
	respond  func(call int, req *http.Request) (*http.Response, error)
	calls    int
	payloads []requestPayload
	headers  []http.Header
}

func (d *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	call := d.calls
	d.calls++
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		var p requestPayload
		_ = json.Unmarshal(body, &p)
		d.payloads = append(d.payloads, p)
	}
	d.headers = append(d.headers, req.Header.Clone())
	d.mu.Unlock()
	return d.respond(call, req)
}

func (d *fakeDoer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDoer) lastPayload(t *testing.T) requestPayload {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.payloads) == 0 {
		t.Fatal("no request was dispatched")
	}
	return d.payloads[len(d.payloads)-1]
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func dataDoer(body string) *fakeDoer {
	return &fakeDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return jsonResponse(200, body), nil
	}}
}

func testConfig() Config {
	return Config{
		URL: "http://hasura.test/v1/graphql",
		Retry: RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   time.Millisecond,
			MaxDelay:    time.Millisecond,
		},
	}
}

func testOptions(d Doer) []Option {
	return []Option{WithConfig(testConfig()), WithDoer(d)}
}
