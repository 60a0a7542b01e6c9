package adapter

import (
	"context"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/ignore"
	"github.com/architect-io/mdpack/pkg/tree"
)

// bundleAdapter is mixedContentAdapter with one restriction: content is
// always a directory named after the component, and a walk from any of
// its descendants never escapes that directory. Multiple
// files under it compose the bundle; there is no separate bundle-level
// xml file in the catalog's bundle types (aura/lwc).
type bundleAdapter struct{}

func (bundleAdapter) AllowMetadataWithContent() bool { return true }

func (a bundleAdapter) GetComponent(ctx context.Context, t tree.Tree, ig *ignore.Matcher, typ *catalog.MetadataType, fsPath string, isResolvingSource bool) (*component.SourceComponent, error) {
	root := ascendToComponentRoot(fsPath, typ.DirectoryName)
	name := basename(root)

	if exists, _ := t.Exists(root); !exists {
		return nil, nil
	}

	return component.New(component.Options{
		Name:    name,
		Type:    typ,
		Content: root,
		Tree:    t,
		Ignore:  ig,
	})
}
