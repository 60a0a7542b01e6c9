package adapter

import (
	"context"
	"strings"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/ignore"
	"github.com/architect-io/mdpack/pkg/tree"
)

// mixedContentAdapter handles a content entry that is either a single
// suffixed file ("staticresources/Logo.resource") or an exploded
// directory ("staticresources/SiteAssets/..."), paired with a sibling
// "<name>.<suffix>-meta.xml". Resolution can start from the xml, the
// content root, or any descendant of an exploded directory; every
// starting point ascends to the entry directly below the type's
// directoryName, derives the component name from it, and pairs xml and
// content from there.
type mixedContentAdapter struct{}

func (mixedContentAdapter) AllowMetadataWithContent() bool { return true }

func (a mixedContentAdapter) GetComponent(ctx context.Context, t tree.Tree, ig *ignore.Matcher, typ *catalog.MetadataType, fsPath string, isResolvingSource bool) (*component.SourceComponent, error) {
	root := ascendToComponentRoot(fsPath, typ.DirectoryName)
	dir := dirname(root)

	// The root entry names the component whatever shape it is: the xml
	// itself ("Logo.resource-meta.xml"), the single content file
	// ("Logo.resource"), or the exploded directory ("SiteAssets").
	name := basename(root)
	if isMetadataXML(name) {
		name = stripMetaSuffix(name)
	}
	name = trimSuffixDot(name, typ.Suffix)

	xmlPath := joinPath(dir, name+"."+typ.Suffix+"-meta.xml")
	if exists, _ := t.Exists(xmlPath); !exists {
		xmlPath = ""
	}

	// Content is the suffixed single file when present, otherwise the
	// exploded directory of the same name.
	contentPath := joinPath(dir, name+"."+typ.Suffix)
	if exists, _ := t.Exists(contentPath); !exists {
		contentPath = joinPath(dir, name)
		if exists, _ := t.Exists(contentPath); !exists {
			contentPath = ""
		}
	}

	if xmlPath == "" && contentPath == "" {
		return nil, nil
	}

	return component.New(component.Options{
		Name:    name,
		Type:    typ,
		XML:     xmlPath,
		Content: contentPath,
		Tree:    t,
		Ignore:  ig,
	})
}

// ascendToComponentRoot returns the path of the entry sitting directly
// below directoryName on fsPath's segment chain: the component's own
// root entry. A path already at that level passes through unchanged.
func ascendToComponentRoot(fsPath, directoryName string) string {
	segments := strings.Split(strings.Trim(fsPath, "/"), "/")
	for i, seg := range segments {
		if seg == directoryName && i+1 < len(segments) {
			return strings.Join(segments[:i+2], "/")
		}
	}
	return fsPath
}
