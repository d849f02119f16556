// Package output renders server responses for the terminal.
package output

import (
	"fmt"
	"io"

	"github.com/latticekv/lattice/internal/wire"
)

// Formatter writes response projections to a stream.
type Formatter struct {
	w io.Writer
}

// NewFormatter creates a formatter writing to w.
func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

// Print writes the response's human projection followed by a newline.
func (f *Formatter) Print(resp *wire.Response) error {
	_, err := fmt.Fprintln(f.w, resp.String())
	return err
}

// IsError reports whether the response is an ERR frame, so callers can
// exit non-zero.
func IsError(resp *wire.Response) bool {
	return resp.Tag == wire.TagErr
}
