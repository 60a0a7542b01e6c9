package writer

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
)

// ZipWriter accumulates WriteInstructions into an in-memory archive.
// Per-component commit/rollback is implemented by buffering each
// component's entries into a staging map before they are merged into the
// writer's committed set; a failure on any one instruction discards that
// component's staged entries without touching ones already committed by
// other components. The actual archive/zip.Writer is not safe for
// concurrent use, so Finalize is the single point that serializes
// everything into the final buffer, in deterministic path order.
type ZipWriter struct {
	mu        sync.Mutex
	committed map[string][]byte
}

// NewZipWriter constructs an empty ZipWriter.
func NewZipWriter() *ZipWriter {
	return &ZipWriter{committed: map[string][]byte{}}
}

// WriteComponent reads every instruction's payload fully into memory and,
// only if all of them succeed, merges the result into the writer's
// committed entries.
func (w *ZipWriter) WriteComponent(ctx context.Context, wf WriterFormat) error {
	staged := map[string][]byte{}

	for _, instr := range wf.WriteInfos {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		src := instr.Open()
		data, err := io.ReadAll(src)
		closeSource(src)
		if err != nil {
			return mdpackerrors.WriteFailure(instr.Output, err)
		}
		staged[instr.Output] = data
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for path, data := range staged {
		w.committed[path] = data
	}
	return nil
}

// Finalize serializes every committed entry into a single zip archive,
// in sorted path order for deterministic output, and returns the
// resulting buffer.
func (w *ZipWriter) Finalize() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.committed))
	for p := range w.committed {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range paths {
		fw, err := zw.Create(p)
		if err != nil {
			return nil, mdpackerrors.WriteFailure(p, err)
		}
		if _, err := fw.Write(w.committed[p]); err != nil {
			return nil, mdpackerrors.WriteFailure(p, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeWrite, "failed to finalize zip archive", err)
	}

	return buf.Bytes(), nil
}
