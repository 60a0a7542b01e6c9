package tree

import (
	"github.com/spf13/afero"
)

// MemEntry describes one child of a MemDir: either a bare name, which is
// created as a directory (any entry whose Data is nil is), or a
// {name, data} pair for a file (an empty, non-nil Data gives a zero-byte
// file), so fixtures can be declared as {dirPath, children: [name |
// {name, data}]} literals.
type MemEntry struct {
	Name string
	Data []byte
	// IsDir forces the entry to be created as a directory even with no
	// children of its own.
	IsDir bool
}

// MemDir is one directory's worth of declared children, rooted at DirPath.
type MemDir struct {
	DirPath  string
	Children []MemEntry
}

// File is a convenience constructor for a MemEntry backed by file content.
func File(name string, data []byte) MemEntry {
	return MemEntry{Name: name, Data: data}
}

// Dir is a convenience constructor for a MemEntry that is itself a directory
// with no declared content of its own (its children come from a separate
// MemDir entry keyed at the nested path).
func Dir(name string) MemEntry {
	return MemEntry{Name: name, IsDir: true}
}

// MemTree builds a virtual in-memory Tree from a list of directory
// declarations, rooted at "" (the tree's own root).
func MemTree(dirs []MemDir) Tree {
	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/", 0o755)
	for _, d := range dirs {
		dirPath := "/" + normalize(d.DirPath)
		_ = fs.MkdirAll(dirPath, 0o755)
		for _, c := range d.Children {
			childPath := dirPath + "/" + c.Name
			if c.IsDir || c.Data == nil {
				_ = fs.MkdirAll(childPath, 0o755)
				continue
			}
			_ = afero.WriteFile(fs, childPath, c.Data, 0o644)
		}
	}
	return newAferoTree(fs, "")
}
