package writer

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
)

// StandardWriter streams each WriteInstruction to <root>/<output>,
// creating directories as needed. It is backed by an afero.Fs the same
// way pkg/tree's OSTree is, so tests can exercise it against an
// in-memory filesystem without touching disk.
type StandardWriter struct {
	fs   afero.Fs
	root string
}

// NewStandardWriter constructs a StandardWriter rooted at root on the
// native filesystem.
func NewStandardWriter(root string) *StandardWriter {
	return &StandardWriter{fs: afero.NewOsFs(), root: root}
}

// NewStandardWriterFS constructs a StandardWriter over an explicit
// afero.Fs, for tests.
func NewStandardWriterFS(fs afero.Fs, root string) *StandardWriter {
	return &StandardWriter{fs: fs, root: root}
}

// WriteComponent applies every instruction in wf, creating parent
// directories as needed. If any instruction fails partway, the files
// already written for this component are removed before the error is
// returned.
func (w *StandardWriter) WriteComponent(ctx context.Context, wf WriterFormat) error {
	var written []string

	rollback := func() {
		for _, p := range written {
			_ = w.fs.Remove(p)
		}
	}

	for _, instr := range wf.WriteInfos {
		select {
		case <-ctx.Done():
			rollback()
			return ctx.Err()
		default:
		}

		dest := filepath.Join(w.root, filepath.FromSlash(instr.Output))
		if !within(w.root, dest) {
			rollback()
			return mdpackerrors.WriteFailure(instr.Output, fmt.Errorf("destination escapes output root"))
		}
		if err := w.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			rollback()
			return mdpackerrors.WriteFailure(instr.Output, err)
		}

		f, err := w.fs.Create(dest)
		if err != nil {
			rollback()
			return mdpackerrors.WriteFailure(instr.Output, err)
		}

		src := instr.Open()
		_, copyErr := io.Copy(f, src)
		closeSource(src)
		closeErr := f.Close()

		if copyErr != nil {
			_ = w.fs.Remove(dest)
			rollback()
			return mdpackerrors.WriteFailure(instr.Output, copyErr)
		}
		if closeErr != nil {
			_ = w.fs.Remove(dest)
			rollback()
			return mdpackerrors.WriteFailure(instr.Output, closeErr)
		}

		written = append(written, dest)
	}

	return nil
}

// within reports whether dest stays inside root after cleaning, rejecting
// instruction outputs that traverse upward.
func within(root, dest string) bool {
	cleanRoot := filepath.Clean(root)
	return dest == cleanRoot || strings.HasPrefix(dest, cleanRoot+string(filepath.Separator))
}
