package nestling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/hanpama/nestling/internal/eventbus"
	"github.com/hanpama/nestling/internal/events"
	"github.com/hanpama/nestling/internal/reqid"
	"github.com/hanpama/nestling/model"
)

const (
	opQuery    = "query"
	opMutation = "mutation"
)

// root owns one document: the operation node at the top of the tree, the
// variable counter every descendant draws names from, the merged
// configuration, and after execution the alias-keyed response data.
type root struct {
	node
	operation string
	cfg       Config
	doer      Doer
	ownsDoer  bool
	isBatch   bool

	varCount int
	executed bool
	response map[string]any
}

func newRoot(operation string, opts []Option) *root {
	r := &root{operation: operation, cfg: DefaultConfig()}
	r.node.root = r
	switch operation {
	case opMutation:
		r.node.frag = newFragments("mutation Mutation")
	default:
		r.node.frag = newFragments("query Query")
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.doer == nil {
		r.doer = newDefaultDoer()
		r.ownsDoer = true
	}
	return r
}

// nextVar issues the next document-unique generated name. Aliases and
// variables share the counter, so a name identifies exactly one thing in
// the whole document.
func (r *root) nextVar() string {
	r.varCount++
	return "var" + strconv.Itoa(r.varCount)
}

// newChild creates an operation node under the root with a fresh alias.
func (r *root) newChild(table *model.Table, queryName string) *node {
	n := &node{table: table, frag: newFragments(queryName)}
	n.alias = r.nextVar()
	if err := n.bindTo(&r.node); err != nil {
		panic(err)
	}
	return n
}

// renderDocument assembles the readable form: the operation header with
// every hoisted declaration, then each operation node.
func (r *root) renderDocument() string {
	var outer []string
	r.node.walk(func(n *node) {
		outer = append(outer, n.frag.outerArgs...)
	})
	var b strings.Builder
	b.WriteString(r.node.frag.queryName)
	if len(outer) > 0 {
		b.WriteString("(")
		b.WriteString(strings.Join(outer, ", "))
		b.WriteString(")")
	}
	b.WriteString(" {\n")
	for _, child := range r.node.children {
		child.renderTo(&b)
	}
	b.WriteString("}\n")
	return b.String()
}

// compactDocument collapses every whitespace run to a single space. The
// wire form carries no layout.
func compactDocument(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Document returns the compacted document text as it would be dispatched.
func (r *root) Document() string {
	return compactDocument(r.renderDocument())
}

// collectVariables gathers every node's bindings into one payload map with
// model values projected to mutation input form.
func (r *root) collectVariables() map[string]any {
	vars := map[string]any{}
	r.node.walk(func(n *node) {
		for name, v := range n.frag.variables {
			vars[name] = encodeValue(v)
		}
	})
	return vars
}

func encodeValue(v any) any {
	switch val := v.(type) {
	case model.Model:
		return model.Input(val)
	case []model.Model:
		out := make([]any, len(val))
		for i, m := range val {
			out[i] = model.Input(m)
		}
		return out
	case Where:
		return encodeValue(map[string]any(val))
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = encodeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = encodeValue(e)
		}
		return out
	default:
		return v
	}
}

type requestPayload struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (r *root) buildRequest() (requestPayload, []byte, error) {
	if r.cfg.URL == "" {
		return requestPayload{}, nil, clientErrorf("no endpoint URL configured")
	}
	payload := requestPayload{
		Query:     r.Document(),
		Variables: r.collectVariables(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return requestPayload{}, nil, clientErrorf("variables are not JSON-encodable: %v", err)
	}
	return payload, body, nil
}

// execute renders, dispatches and decodes the document. The response data
// replaces any previous execution's leftovers.
func (r *root) execute(ctx context.Context) error {
	payload, body, err := r.buildRequest()
	if err != nil {
		return err
	}
	ctx, _ = reqid.EnsureContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.ExecuteStart{
		Operation: r.operation,
		Document:  payload.Query,
		Variables: len(payload.Variables),
		Batch:     r.isBatch,
	})
	resp, err := r.dispatch(ctx, body)
	if err == nil {
		err = r.decodeResponse(resp)
	}
	r.releaseDoer()
	eventbus.Publish(ctx, events.ExecuteFinish{
		Operation: r.operation,
		Err:       err,
		Duration:  time.Since(start),
	})
	if err != nil {
		return err
	}
	r.executed = true
	return nil
}

// executeStream dispatches the document and hands back the undecoded body.
// The caller owns the body; closing it releases the transport.
func (r *root) executeStream(ctx context.Context) (io.ReadCloser, error) {
	payload, body, err := r.buildRequest()
	if err != nil {
		return nil, err
	}
	ctx, _ = reqid.EnsureContext(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.ExecuteStart{
		Operation: r.operation,
		Document:  payload.Query,
		Variables: len(payload.Variables),
	})
	resp, err := r.dispatch(ctx, body)
	if err != nil {
		r.releaseDoer()
		eventbus.Publish(ctx, events.ExecuteFinish{
			Operation: r.operation,
			Err:       err,
			Duration:  time.Since(start),
		})
		return nil, err
	}
	r.executed = true
	return &streamBody{
		ReadCloser: resp.Body,
		finish: func() {
			r.releaseDoer()
			eventbus.Publish(ctx, events.ExecuteFinish{
				Operation: r.operation,
				Duration:  time.Since(start),
			})
		},
	}, nil
}

type streamBody struct {
	io.ReadCloser
	once   sync.Once
	finish func()
}

func (s *streamBody) Close() error {
	err := s.ReadCloser.Close()
	s.once.Do(s.finish)
	return err
}

// dispatch POSTs the payload through the Doer wrapped in the retry
// executor. Only transport failures and retryable statuses come back as
// attempt errors; a decodable response never retries.
func (r *root) dispatch(ctx context.Context, body []byte) (*http.Response, error) {
	rc := r.cfg.Retry
	if rc.isZero() {
		rc = DefaultRetryConfig()
	}
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.BaseDelay <= 0 {
		rc.BaseDelay = time.Second
	}
	if rc.MaxDelay < rc.BaseDelay {
		rc.MaxDelay = rc.BaseDelay
	}
	retryIf := rc.RetryIf
	if retryIf == nil {
		retryIf = DefaultShouldRetry
	}

	builder := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(rc.BaseDelay, rc.MaxDelay).
		WithMaxRetries(rc.MaxAttempts - 1).
		HandleIf(func(_ *http.Response, err error) bool {
			return err != nil && retryIf(err)
		}).
		OnRetry(func(e failsafe.ExecutionEvent[*http.Response]) {
			eventbus.Publish(ctx, events.RetryAttempt{Attempt: e.Attempts(), Err: e.LastError()})
			if rc.OnRetry != nil {
				rc.OnRetry(e.Attempts(), e.LastError())
			}
		})
	if rc.Jitter > 0 {
		builder = builder.WithJitterFactor(rc.Jitter)
	}
	policy := builder.Build()

	attempt := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range r.cfg.Headers {
			req.Header.Set(k, v)
		}
		eventbus.Publish(ctx, events.HTTPStart{Method: req.Method, URL: r.cfg.URL})
		started := time.Now()
		resp, err := r.doer.Do(req)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		eventbus.Publish(ctx, events.HTTPFinish{
			Method:   req.Method,
			URL:      r.cfg.URL,
			Status:   status,
			Err:      err,
			Duration: time.Since(started),
		})
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode}
		}
		return resp, nil
	}

	resp, err := failsafe.With(policy).WithContext(ctx).Get(attempt)
	if err != nil {
		return nil, &ServerError{cause: err}
	}
	return resp, nil
}

func (r *root) decodeResponse(resp *http.Response) error {
	defer resp.Body.Close()
	var payload struct {
		Data   map[string]any `json:"data"`
		Error  *GraphQLError  `json:"error"`
		Errors []GraphQLError `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return &ServerError{cause: fmt.Errorf("decode response: %w", err)}
	}
	if payload.Error != nil {
		payload.Errors = append([]GraphQLError{*payload.Error}, payload.Errors...)
	}
	if len(payload.Errors) > 0 {
		return &ServerError{Errors: payload.Errors}
	}
	if payload.Data == nil {
		return &ServerError{cause: errors.New("response carried neither data nor errors")}
	}
	r.response = payload.Data
	return nil
}

var errNotExecuted = clientErrorf("response data accessed before execution")

// getResponse pops the alias's data from the response. Each alias is
// consumable exactly once; a second read observes absence, not stale data.
func (r *root) getResponse(alias string) (any, error) {
	if r.response == nil {
		return nil, errNotExecuted
	}
	v, ok := r.response[alias]
	if !ok {
		return nil, nil
	}
	delete(r.response, alias)
	return v, nil
}

// getResponseKey pops one sub-key of the alias's data, leaving its
// siblings for other accessors of the same operation.
func (r *root) getResponseKey(alias, key string) (any, error) {
	if r.response == nil {
		return nil, errNotExecuted
	}
	m, ok := r.response[alias].(map[string]any)
	if !ok {
		return nil, nil
	}
	v, ok := m[key]
	if !ok {
		return nil, nil
	}
	delete(m, key)
	return v, nil
}
