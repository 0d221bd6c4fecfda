package nestling

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestExecuteOneByPK(t *testing.T) {
	id := uuid.New()
	d := dataDoer(`{"data":{"var1":{"uuid":"` + id.String() + `","name":"ada"}}}`)

	got, err := NewQuery[Author](testOptions(d)...).OneByPK(id).Returning(context.Background(), "uuid", "name")
	require.NoError(t, err)
	require.Equal(t, id, *got.UUID)
	require.Equal(t, "ada", *got.Name)

	payload := d.lastPayload(t)
	require.Equal(t, "query Query($var2: uuid!) { var1:authors_by_pk(uuid: $var2) { uuid name } }", payload.Query)
	require.Equal(t, id.String(), payload.Variables["var2"])
}

func TestExecuteNotFound(t *testing.T) {
	d := dataDoer(`{"data":{"var1":null}}`)

	_, err := NewQuery[Author](testOptions(d)...).OneByPK(uuid.New()).Returning(context.Background())
	require.True(t, IsNotFound(err), "expected not-found, got %v", err)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "authors", nf.Table)
}

func TestExecuteManyEmpty(t *testing.T) {
	d := dataDoer(`{"data":{"var1":[]}}`)

	rows, err := NewQuery[Author](testOptions(d)...).Many(ListParams{}).Returning(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rows)
	require.Empty(t, rows)
}

func TestExecuteMissingURL(t *testing.T) {
	d := dataDoer(`{}`)
	cfg := testConfig()
	cfg.URL = ""

	_, err := NewQuery[Author](WithConfig(cfg), WithDoer(d)).Many(ListParams{}).Returning(context.Background())
	require.True(t, IsClientError(err), "expected client error, got %v", err)
	require.Equal(t, 0, d.callCount())
}

func TestExecuteGraphQLErrors(t *testing.T) {
	d := dataDoer(`{"errors":[{"message":"field not found"}]}`)

	_, err := NewQuery[Author](testOptions(d)...).Many(ListParams{}).Returning(context.Background())
	require.True(t, IsServerError(err), "expected server error, got %v", err)
	var se *ServerError
	require.ErrorAs(t, err, &se)
	require.Len(t, se.Errors, 1)
	require.Equal(t, "field not found", se.Errors[0].Message)
	// GraphQL errors arrive on a decodable response and are final.
	require.Equal(t, 1, d.callCount())
}

func TestExecuteHeaders(t *testing.T) {
	d := dataDoer(`{"data":{"var1":[]}}`)
	cfg := testConfig()
	cfg.Headers = map[string]string{"X-Hasura-Role": "reader"}

	_, err := NewQuery[Author](WithConfig(cfg), WithDoer(d)).Many(ListParams{}).Returning(context.Background())
	require.NoError(t, err)
	require.Equal(t, "reader", d.headers[0].Get("X-Hasura-Role"))
	require.Equal(t, "application/json", d.headers[0].Get("Content-Type"))
}

func TestRetryTransportError(t *testing.T) {
	d := &fakeDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return nil, &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	}}
	cfg := testConfig()
	retries := 0
	cfg.Retry = RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		OnRetry:     func(int, error) { retries++ },
	}

	_, err := NewQuery[Author](WithConfig(cfg), WithDoer(d)).Many(ListParams{}).Returning(context.Background())
	require.True(t, IsServerError(err), "expected server error, got %v", err)
	require.Equal(t, 3, d.callCount())
	require.Equal(t, 2, retries)
}

func TestRetryServerStatus(t *testing.T) {
	d := &fakeDoer{respond: func(call int, _ *http.Request) (*http.Response, error) {
		if call < 2 {
			return jsonResponse(503, `busy`), nil
		}
		return jsonResponse(200, `{"data":{"var1":[]}}`), nil
	}}
	cfg := testConfig()
	cfg.Retry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	rows, err := NewQuery[Author](WithConfig(cfg), WithDoer(d)).Many(ListParams{}).Returning(context.Background())
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, 3, d.callCount())
}

func TestNoRetryOnClientStatus(t *testing.T) {
	d := &fakeDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return jsonResponse(400, `bad request`), nil
	}}
	cfg := testConfig()
	cfg.Retry = RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	_, err := NewQuery[Author](WithConfig(cfg), WithDoer(d)).Many(ListParams{}).Returning(context.Background())
	require.True(t, IsServerError(err), "expected server error, got %v", err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, 400, se.Code)
	require.Equal(t, 1, d.callCount())
}

func TestResponsePopSemantics(t *testing.T) {
	r := newRoot(opQuery, testOptions(dataDoer(``)))
	r.response = map[string]any{"var1": map[string]any{"uuid": "x"}}

	v, err := r.getResponse("var1")
	require.NoError(t, err)
	require.NotNil(t, v)

	v, err = r.getResponse("var1")
	require.NoError(t, err)
	require.Nil(t, v, "second read must observe absence")
}

func TestResponseKeyPopSemantics(t *testing.T) {
	r := newRoot(opQuery, testOptions(dataDoer(``)))
	r.response = map[string]any{"var1": map[string]any{
		"returning":     []any{},
		"affected_rows": float64(2),
	}}

	v, err := r.getResponseKey("var1", "affected_rows")
	require.NoError(t, err)
	require.Equal(t, float64(2), v)

	v, err = r.getResponseKey("var1", "affected_rows")
	require.NoError(t, err)
	require.Nil(t, v)

	v, err = r.getResponseKey("var1", "returning")
	require.NoError(t, err)
	require.NotNil(t, v, "sibling keys must survive earlier pops")
}

func TestResponseBeforeExecution(t *testing.T) {
	r := newRoot(opQuery, testOptions(dataDoer(``)))
	_, err := r.getResponse("var1")
	require.True(t, IsClientError(err), "expected client error, got %v", err)
}
