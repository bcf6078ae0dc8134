// Package feed supplies wire-protocol chunks to a dictation session.
//
// Sources deliver chunks in arrival order and make no promise about
// chunk boundaries; the downstream parser tolerates splits anywhere,
// so sources simply hand over whatever bytes arrive together.
package feed

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
)

// ErrClosed reports a read from a closed source.
var ErrClosed = errors.New("feed source closed")

// Source is a sequential chunk stream. Next blocks until a chunk is
// available and returns io.EOF when the stream ends cleanly. Close may
// be called from another goroutine to unblock a pending Next, which
// then returns ErrClosed.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Reader adapts an io.Reader (stdin, a recorded stream file) into a
// Source.
type Reader struct {
	r      io.Reader
	buf    []byte
	closed atomic.Bool
}

// NewReader creates a reader-backed source delivering chunks of at
// most bufSize bytes.
func NewReader(r io.Reader, bufSize int) *Reader {
	if bufSize <= 0 {
		bufSize = 4096
	}
	return &Reader{r: r, buf: make([]byte, bufSize)}
}

// Next returns the next chunk of raw bytes. Chunks may end anywhere,
// including inside a UTF-8 sequence.
func (r *Reader) Next(ctx context.Context) (string, error) {
	if r.closed.Load() {
		return "", ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	n, err := r.r.Read(r.buf)
	if n > 0 {
		return string(r.buf[:n]), nil
	}
	if r.closed.Load() {
		return "", ErrClosed
	}
	if err == nil {
		err = io.EOF
	}
	return "", err
}

// Close marks the source closed and closes the underlying reader if it
// implements io.Closer, which unblocks a pending Read.
func (r *Reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	if c, ok := r.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
