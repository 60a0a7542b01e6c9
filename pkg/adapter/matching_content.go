package adapter

import (
	"context"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/ignore"
	"github.com/architect-io/mdpack/pkg/tree"
)

// matchingContentAdapter pairs "X-meta.xml" with the sibling content file
// "X.<suffix>". Resolving from the content file alone
// (isResolvingSource == false) looks for its sibling xml instead.
type matchingContentAdapter struct{}

func (matchingContentAdapter) AllowMetadataWithContent() bool { return true }

func (a matchingContentAdapter) GetComponent(ctx context.Context, t tree.Tree, ig *ignore.Matcher, typ *catalog.MetadataType, fsPath string, isResolvingSource bool) (*component.SourceComponent, error) {
	dir := dirname(fsPath)
	name := basename(fsPath)

	var xmlPath, contentPath, componentName string

	if isMetadataXML(name) {
		xmlPath = fsPath
		contentBase := stripMetaSuffix(name)
		componentName = trimSuffixDot(contentBase, typ.Suffix)
		contentPath = joinPath(dir, contentBase)
		if exists, _ := t.Exists(contentPath); !exists {
			contentPath = ""
		}
	} else {
		contentPath = fsPath
		componentName = trimSuffixDot(name, typ.Suffix)
		xmlPath = fsPath + "-meta.xml"
		if exists, _ := t.Exists(xmlPath); !exists {
			xmlPath = ""
		}
	}

	if xmlPath == "" && contentPath == "" {
		return nil, nil
	}

	return component.New(component.Options{
		Name:    folderedName(typ, fsPath, componentName),
		Type:    typ,
		XML:     xmlPath,
		Content: contentPath,
		Tree:    t,
		Ignore:  ig,
	})
}
