// Package adapter implements the per-type component assembly strategies:
// given an inferred MetadataType and a filesystem path, each adapter knows
// how to pair an xml file with its content and build the resulting
// SourceComponent. Dispatch is by the string adapter id the catalog
// declares, through a small factory.
package adapter

import (
	"context"
	"strings"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
	"github.com/architect-io/mdpack/pkg/ignore"
	"github.com/architect-io/mdpack/pkg/tree"
)

// Adapter assembles a SourceComponent from a resolved filesystem path.
type Adapter interface {
	// GetComponent builds the component rooted at fsPath, or returns a nil
	// component (and nil error) when fsPath does not anchor one (e.g. it
	// is a content file reached before its xml during a source walk).
	GetComponent(ctx context.Context, t tree.Tree, ig *ignore.Matcher, typ *catalog.MetadataType, fsPath string, isResolvingSource bool) (*component.SourceComponent, error)

	// AllowMetadataWithContent reports whether resolve_component should
	// still inspect a content file on its own when resolving a deploy
	// target (isResolvingSource == false), rather than deferring entirely
	// to its sibling xml.
	AllowMetadataWithContent() bool
}

const (
	IDBase            = "base"
	IDMatchingContent = "matchingContent"
	IDMixedContent    = "mixedContent"
	IDBundle          = "bundle"
	IDDecomposed      = "decomposed"
)

// New dispatches a MetadataType's strategies.adapterId to its Adapter.
func New(id string) (Adapter, error) {
	switch id {
	case IDBase:
		return baseAdapter{}, nil
	case IDMatchingContent:
		return matchingContentAdapter{}, nil
	case IDMixedContent:
		return mixedContentAdapter{}, nil
	case IDBundle:
		return bundleAdapter{}, nil
	case IDDecomposed:
		return decomposedAdapter{}, nil
	default:
		return nil, mdpackerrors.RegistryError("adapter", id)
	}
}

// isMetadataXML reports whether name looks like a metadata xml file,
// either "X-meta.xml" (folder-style) or "X.<suffix>-meta.xml".
func isMetadataXML(name string) bool {
	return strings.HasSuffix(name, "-meta.xml")
}

// stripMetaSuffix removes the trailing "-meta.xml", returning the xml
// "base" (e.g. "MyClass.cls" from "MyClass.cls-meta.xml").
func stripMetaSuffix(name string) string {
	return strings.TrimSuffix(name, "-meta.xml")
}

func dirname(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

func basename(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

// folderedName prefixes name with the folder segments sitting between the
// type's directoryName and the file itself, slash-joined, for inFolder
// member types ("reports/MyFolder/MyReport.report-meta.xml" names the
// component "MyFolder/MyReport"). Non-foldered types pass through.
func folderedName(typ *catalog.MetadataType, fsPath, name string) string {
	if typ == nil || !typ.InFolder {
		return name
	}
	segments := strings.Split(strings.Trim(fsPath, "/"), "/")
	for i, seg := range segments {
		if seg == typ.DirectoryName {
			folders := segments[i+1 : len(segments)-1]
			if len(folders) > 0 {
				return strings.Join(folders, "/") + "/" + name
			}
			return name
		}
	}
	return name
}

func joinPath(parts ...string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, strings.Trim(p, "/"))
		}
	}
	return strings.Join(nonEmpty, "/")
}
