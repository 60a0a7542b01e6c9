package adapter

import (
	"context"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/ignore"
	"github.com/architect-io/mdpack/pkg/tree"
)

// decomposedAdapter is mixedContentAdapter plus children: content is
// always a directory, and the component's own Children() walk promotes
// each "-meta.xml" file matching type.Children.Suffixes to a child
// component. The child-walking itself lives on SourceComponent
// (pkg/component); this adapter only builds the parent.
type decomposedAdapter struct{}

func (decomposedAdapter) AllowMetadataWithContent() bool { return true }

func (a decomposedAdapter) GetComponent(ctx context.Context, t tree.Tree, ig *ignore.Matcher, typ *catalog.MetadataType, fsPath string, isResolvingSource bool) (*component.SourceComponent, error) {
	root := ascendToComponentRoot(fsPath, typ.DirectoryName)
	name := trimSuffixDot(basename(root), typ.Suffix)

	xmlPath := joinPath(root, basename(root)+"."+typ.Suffix+"-meta.xml")
	if exists, _ := t.Exists(xmlPath); !exists {
		xmlPath = ""
	}

	if exists, _ := t.Exists(root); !exists {
		return nil, nil
	}

	return component.New(component.Options{
		Name:    name,
		Type:    typ,
		XML:     xmlPath,
		Content: root,
		Tree:    t,
		Ignore:  ig,
	})
}
