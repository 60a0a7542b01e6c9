package component

import (
	"strings"

	"github.com/architect-io/mdpack/pkg/catalog"
)

// GetPackageRelativePath computes where this component belongs inside a
// metadata-package-formatted tree: directoryName,
// optionally an inFolder segment split off the slash-joined fullName, then
// the file name built from Name and the type's declared suffix.
//
// A decomposed child nests one level further: its parent's own relative
// directory, then the child type's own directoryName.
func (c *SourceComponent) GetPackageRelativePath() string {
	if c.typ == nil {
		return c.name
	}

	if c.parent != nil {
		return joinRel(parentPackageDir(c.parent), c.typ.DirectoryName, fileNameFor(c.name, c.typ))
	}

	if c.typ.InFolder {
		folder, leaf := splitFolderedName(c.FullName())
		return joinRel(c.typ.DirectoryName, folder, fileNameFor(leaf, c.typ))
	}

	return joinRel(c.typ.DirectoryName, fileNameFor(c.name, c.typ))
}

// parentPackageDir resolves the relative directory (without a file name) a
// parent component's decomposed children nest under.
func parentPackageDir(parent MetadataComponent) string {
	pt := parent.Type()
	if pt == nil {
		return ""
	}
	if pt.InFolder {
		folder, _ := splitFolderedName(parent.FullName())
		return joinRel(pt.DirectoryName, folder, parent.Name())
	}
	return joinRel(pt.DirectoryName, parent.Name())
}

func fileNameFor(name string, t *catalog.MetadataType) string {
	if t.Suffix == "" {
		return name
	}
	return name + "." + t.Suffix
}

// splitFolderedName splits a foldered fullName ("MyFolder/MyReport") into
// its folder and leaf segments. A fullName with no slash has no folder
// segment.
func splitFolderedName(fullName string) (folder, leaf string) {
	idx := strings.LastIndex(fullName, "/")
	if idx < 0 {
		return "", fullName
	}
	return fullName[:idx], fullName[idx+1:]
}

func joinRel(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}
