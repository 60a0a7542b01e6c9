// Package tree provides an abstract read-only file-tree interface with
// multiple backings (native filesystem, in-memory virtual tree, a
// version-control ref snapshot). Resolvers and adapters walk a Tree without
// caring which backing produced it.
package tree

import (
	"context"
	"io"
)

// Tree is a read-only view over a hierarchy of files and directories.
// Paths are OS-normalized (forward slashes, no trailing separator) before
// being handed to a backing.
type Tree interface {
	// Exists reports whether a path is present, file or directory.
	Exists(path string) (bool, error)

	// IsDirectory reports whether a path is a directory. It returns
	// ErrCodePathNotFound if the path does not exist.
	IsDirectory(path string) (bool, error)

	// ReadDirectory lists the entry names (not joined paths) directly
	// under path, in the order the backing reports them.
	ReadDirectory(path string) ([]string, error)

	// ReadFile reads the full contents of the file at path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// Stream opens the file at path for incremental reading. Callers
	// must close the returned reader.
	Stream(ctx context.Context, path string) (io.ReadCloser, error)
}
