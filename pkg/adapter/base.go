package adapter

import (
	"context"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/ignore"
	"github.com/architect-io/mdpack/pkg/tree"
)

// baseAdapter handles xml-only types: the resolved path is itself the
// component's xml, there is no content.
type baseAdapter struct{}

func (baseAdapter) AllowMetadataWithContent() bool { return false }

func (baseAdapter) GetComponent(ctx context.Context, t tree.Tree, ig *ignore.Matcher, typ *catalog.MetadataType, fsPath string, isResolvingSource bool) (*component.SourceComponent, error) {
	name := folderedName(typ, fsPath, componentNameFromXML(typ, basename(fsPath)))
	return component.New(component.Options{
		Name:   name,
		Type:   typ,
		XML:    fsPath,
		Tree:   t,
		Ignore: ig,
	})
}

// componentNameFromXML derives a component's own Name from its xml file
// name: "MyProfile.profile-meta.xml" -> "MyProfile"; a folder-style
// "MyFolder-meta.xml" -> "MyFolder".
func componentNameFromXML(typ *catalog.MetadataType, fileName string) string {
	base := stripMetaSuffix(fileName)
	if typ != nil && typ.Suffix != "" {
		if trimmed := trimSuffixDot(base, typ.Suffix); trimmed != base {
			return trimmed
		}
	}
	return base
}

func trimSuffixDot(base, suffix string) string {
	dotSuffix := "." + suffix
	if len(base) > len(dotSuffix) && base[len(base)-len(dotSuffix):] == dotSuffix {
		return base[:len(base)-len(dotSuffix)]
	}
	return base
}
