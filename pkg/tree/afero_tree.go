package tree

import (
	"context"
	"io"
	"sort"

	"github.com/spf13/afero"

	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
)

// aferoTree adapts an afero.Fs rooted at root into the Tree contract. Both
// OSTree and MemTree are thin constructors over this type.
type aferoTree struct {
	fs   afero.Fs
	root string
}

// OSTree returns a Tree backed by the native filesystem, rooted at root.
func OSTree(root string) Tree {
	return &aferoTree{fs: afero.NewOsFs(), root: root}
}

// newAferoTree wraps an already-constructed afero.Fs; used by MemTree.
func newAferoTree(fs afero.Fs, root string) Tree {
	return &aferoTree{fs: fs, root: root}
}

func (t *aferoTree) join(p string) string {
	p = normalize(p)
	if p == "" {
		return t.root
	}
	return t.root + "/" + p
}

func (t *aferoTree) Exists(p string) (bool, error) {
	return afero.Exists(t.fs, t.join(p))
}

func (t *aferoTree) IsDirectory(p string) (bool, error) {
	info, err := t.fs.Stat(t.join(p))
	if err != nil {
		return false, mdpackerrors.PathNotFound(p)
	}
	return info.IsDir(), nil
}

func (t *aferoTree) ReadDirectory(p string) ([]string, error) {
	entries, err := afero.ReadDir(t.fs, t.join(p))
	if err != nil {
		return nil, mdpackerrors.PathNotFound(p)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

func (t *aferoTree) ReadFile(ctx context.Context, p string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	data, err := afero.ReadFile(t.fs, t.join(p))
	if err != nil {
		return nil, mdpackerrors.PathNotFound(p)
	}
	return data, nil
}

func (t *aferoTree) Stream(ctx context.Context, p string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := t.fs.Open(t.join(p))
	if err != nil {
		return nil, mdpackerrors.PathNotFound(p)
	}
	return f, nil
}
