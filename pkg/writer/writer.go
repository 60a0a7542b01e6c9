// Package writer consumes the write-instructions a Transformer produces
// and stages them to a concrete output: a filesystem
// directory (StandardWriter) or an in-memory zip archive (ZipWriter).
// Both commit per-component: a component's writes are either all applied
// or rolled back (stage fully, then make visible, never leave a
// half-written result behind).
package writer

import (
	"bytes"
	"context"
	"io"

	"github.com/architect-io/mdpack/pkg/component"
)

// WriteInstruction is a single (source, destination) pair. Source is
// either an io.Reader (streamed) or, when Bytes is set, an in-memory
// buffer read directly without an intermediate stream.
type WriteInstruction struct {
	Source io.Reader
	Bytes  []byte
	Output string
}

// Open returns a reader over the instruction's payload: the streamed
// Source when set, otherwise the in-memory Bytes buffer.
func (w WriteInstruction) Open() io.Reader {
	if w.Source != nil {
		return w.Source
	}
	return bytes.NewReader(w.Bytes)
}

// WriterFormat is one component's worth of write instructions, produced
// by a Transformer and consumed by a Writer.
type WriterFormat struct {
	Component  component.MetadataComponent
	WriteInfos []WriteInstruction
}

// Writer stages and commits a WriterFormat. Implementations MUST apply
// all of a component's instructions or none of them.
type Writer interface {
	WriteComponent(ctx context.Context, wf WriterFormat) error
}

// Finalizer is implemented by writers that accumulate output and need an
// explicit step to produce the final artifact (ZipWriter).
type Finalizer interface {
	Finalize() ([]byte, error)
}

// closeSource closes r if it is also an io.Closer (e.g. a tree.Stream
// result), ignoring the close error: the copy's own error takes priority
// and a close failure on an already-fully-read stream is not actionable.
func closeSource(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}
