package nestling

import (
	"encoding/json"
	"fmt"
	"io"
)

// ChunkReader adapts a pull-based chunk source into an io.Reader. next is
// called whenever the buffered chunk is exhausted; returning false ends
// the stream. Transports that deliver response bodies as discrete chunks
// plug into the streaming decoder through it.
func ChunkReader(next func() ([]byte, bool)) io.Reader {
	return &chunkReader{next: next}
}

type chunkReader struct {
	next func() ([]byte, bool)
	buf  []byte
	done bool
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		if c.done {
			return 0, io.EOF
		}
		chunk, ok := c.next()
		if !ok {
			c.done = true
			return 0, io.EOF
		}
		c.buf = chunk
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// Rows iterates one operation's row list incrementally while the response
// body is still arriving. It walks the decoder down to data.<alias> and
// then decodes one array element per Next call, so memory stays bounded by
// a single row. A Rows is single-use.
type Rows[T any] struct {
	body  io.ReadCloser
	dec   *json.Decoder
	alias string

	started bool
	done    bool
	cur     T
	err     error
}

func newRows[T any](body io.ReadCloser, alias string) *Rows[T] {
	return &Rows[T]{body: body, dec: json.NewDecoder(body), alias: alias}
}

func (r *Rows[T]) fail(err error) bool {
	r.err = err
	r.done = true
	r.body.Close()
	return false
}

// start positions the decoder at the opening bracket of the alias's array.
func (r *Rows[T]) start() bool {
	r.started = true
	if !r.expectDelim('{') {
		return false
	}
	for r.dec.More() {
		keyTok, err := r.dec.Token()
		if err != nil {
			return r.fail(&ServerError{cause: fmt.Errorf("decode stream: %w", err)})
		}
		key, _ := keyTok.(string)
		switch key {
		case "errors":
			var errs []GraphQLError
			if err := r.dec.Decode(&errs); err != nil {
				return r.fail(&ServerError{cause: fmt.Errorf("decode stream errors: %w", err)})
			}
			return r.fail(&ServerError{Errors: errs})
		case "error":
			var ge GraphQLError
			if err := r.dec.Decode(&ge); err != nil {
				return r.fail(&ServerError{cause: fmt.Errorf("decode stream errors: %w", err)})
			}
			return r.fail(&ServerError{Errors: []GraphQLError{ge}})
		case "data":
			return r.startData()
		default:
			if !r.skipValue() {
				return false
			}
		}
	}
	return r.finish()
}

// startData descends into the data object looking for the alias key.
func (r *Rows[T]) startData() bool {
	if !r.expectDelim('{') {
		return false
	}
	for r.dec.More() {
		keyTok, err := r.dec.Token()
		if err != nil {
			return r.fail(&ServerError{cause: fmt.Errorf("decode stream: %w", err)})
		}
		key, _ := keyTok.(string)
		if key == r.alias {
			return r.expectDelim('[')
		}
		if !r.skipValue() {
			return false
		}
	}
	return r.finish()
}

func (r *Rows[T]) expectDelim(want json.Delim) bool {
	tok, err := r.dec.Token()
	if err != nil {
		return r.fail(&ServerError{cause: fmt.Errorf("decode stream: %w", err)})
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return r.fail(&ServerError{cause: fmt.Errorf("decode stream: expected %q, got %v", want, tok)})
	}
	return true
}

func (r *Rows[T]) skipValue() bool {
	var raw json.RawMessage
	if err := r.dec.Decode(&raw); err != nil {
		return r.fail(&ServerError{cause: fmt.Errorf("decode stream: %w", err)})
	}
	return true
}

func (r *Rows[T]) finish() bool {
	r.done = true
	r.body.Close()
	return false
}

// Next advances to the next row. It returns false at the end of the list
// or on error; check Err afterwards.
func (r *Rows[T]) Next() bool {
	if r.done {
		return false
	}
	if !r.started {
		if !r.start() {
			return false
		}
	}
	if !r.dec.More() {
		return r.finish()
	}
	var row T
	if err := r.dec.Decode(&row); err != nil {
		return r.fail(&ServerError{cause: fmt.Errorf("decode row: %w", err)})
	}
	r.cur = row
	return true
}

// Scan copies the current row into dst.
func (r *Rows[T]) Scan(dst *T) error {
	if !r.started || r.done {
		return clientErrorf("Scan called without a current row")
	}
	*dst = r.cur
	return nil
}

// Err returns the first error encountered while iterating.
func (r *Rows[T]) Err() error { return r.err }

// Close releases the response body. It is safe to call at any point and
// after exhaustion.
func (r *Rows[T]) Close() error {
	r.done = true
	return r.body.Close()
}
