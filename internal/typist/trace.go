package typist

import (
	"fmt"
	"io"
)

// Trace writes a readable line per operation to an io.Writer. Used by
// the replay command and as a dry-run sink.
type Trace struct {
	W io.Writer
}

func (t *Trace) Delete(n int) error {
	_, err := fmt.Fprintf(t.W, "delete %d\n", n)
	return err
}

func (t *Trace) Insert(text string) error {
	_, err := fmt.Fprintf(t.W, "insert %q\n", text)
	return err
}
