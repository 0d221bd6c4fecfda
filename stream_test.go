package nestling

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func chunked(body string, size int) io.ReadCloser {
	rest := []byte(body)
	return io.NopCloser(ChunkReader(func() ([]byte, bool) {
		if len(rest) == 0 {
			return nil, false
		}
		n := size
		if n > len(rest) {
			n = len(rest)
		}
		chunk := rest[:n]
		rest = rest[n:]
		return chunk, true
	}))
}

func chunkedDoer(body string, size int) *fakeDoer {
	return &fakeDoer{respond: func(int, *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: 200, Body: chunked(body, size)}, nil
	}}
}

func TestChunkReader(t *testing.T) {
	r := chunked("hello world", 3)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))

	// Reads smaller than a chunk drain it across calls.
	r = chunked("abcdef", 4)
	buf := make([]byte, 2)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ab", string(buf[:n]))
	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "cdef", string(rest))
}

func TestYieldingRows(t *testing.T) {
	ids := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	body := `{"data":{"var1":[` +
		`{"uuid":"` + ids[0] + `","name":"a"},` +
		`{"uuid":"` + ids[1] + `","name":"b"},` +
		`{"uuid":"` + ids[2] + `","name":"c"}]}}`
	d := chunkedDoer(body, 7)

	rows, err := NewQuery[Author](testOptions(d)...).
		Many(ListParams{}).
		Yielding(context.Background(), "uuid", "name")
	require.NoError(t, err)
	defer rows.Close()

	var got []string
	for rows.Next() {
		var a Author
		require.NoError(t, rows.Scan(&a))
		got = append(got, a.UUID.String())
	}
	require.NoError(t, rows.Err())
	require.Equal(t, ids, got)
}

func TestYieldingEmptyList(t *testing.T) {
	d := chunkedDoer(`{"data":{"var1":[]}}`, 5)

	rows, err := NewQuery[Author](testOptions(d)...).
		Many(ListParams{}).
		Yielding(context.Background())
	require.NoError(t, err)
	defer rows.Close()

	require.False(t, rows.Next())
	require.NoError(t, rows.Err())
}

func TestYieldingErrorsBody(t *testing.T) {
	d := chunkedDoer(`{"errors":[{"message":"boom"}]}`, 9)

	rows, err := NewQuery[Author](testOptions(d)...).
		Many(ListParams{}).
		Yielding(context.Background())
	require.NoError(t, err)
	defer rows.Close()

	require.False(t, rows.Next())
	err = rows.Err()
	require.True(t, IsServerError(err), "expected server error, got %v", err)
	var se *ServerError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "boom", se.Errors[0].Message)
}

func TestYieldingSkipsOtherAliases(t *testing.T) {
	body := `{"data":{"var0":[1,2,3],"var1":[{"uuid":"` + uuid.NewString() + `"}]}}`
	d := chunkedDoer(body, 11)

	rows, err := NewQuery[Author](testOptions(d)...).
		Many(ListParams{}).
		Yielding(context.Background())
	require.NoError(t, err)
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	require.NoError(t, rows.Err())
	require.Equal(t, 1, count)
}

func TestYieldingInBatchRejected(t *testing.T) {
	d := dataDoer(`{}`)
	b := NewQueryBatch(testOptions(d)...)

	_, err := QueryIn[Author](b).Many(ListParams{}).Yielding(context.Background())
	require.True(t, IsClientError(err), "expected client error, got %v", err)
	require.Equal(t, 0, d.callCount())
}

func TestYieldingScanWithoutRow(t *testing.T) {
	d := chunkedDoer(`{"data":{"var1":[]}}`, 64)

	rows, err := NewQuery[Author](testOptions(d)...).
		Many(ListParams{}).
		Yielding(context.Background())
	require.NoError(t, err)
	defer rows.Close()

	var a Author
	err = rows.Scan(&a)
	require.True(t, IsClientError(err), "expected client error, got %v", err)
}
