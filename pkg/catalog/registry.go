package catalog

import (
	_ "embed"
	"encoding/json"

	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
)

//go:embed catalog.json
var embeddedCatalog []byte

type catalogFile struct {
	APIVersion string          `json:"apiVersion"`
	Types      []*MetadataType `json:"types"`
}

// Registry is the loaded, immutable catalog of MetadataType records.
// ByID, BySuffix, ByDirectoryName, ParentOf and FolderTypeFor are
// constant-time map lookups built once at Load; ByName and FindType scan
// the types linearly in catalog order.
type Registry struct {
	apiVersion  string
	byID        map[string]*MetadataType
	bySuffix    map[string]*MetadataType
	byDirectory map[string][]*MetadataType
	parentOf    map[string]*MetadataType
	ordered     []*MetadataType
}

// Load parses the embedded JSON catalog into a Registry. Call once and
// pass the result down explicitly; it carries no package-level state.
func Load() (*Registry, error) {
	var cf catalogFile
	if err := json.Unmarshal(embeddedCatalog, &cf); err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeParse, "failed to parse metadata catalog", err)
	}
	return build(cf)
}

// LoadBytes parses an arbitrary JSON catalog document with the same shape
// as catalog.json; used by tests that need a narrower or synthetic type set.
func LoadBytes(data []byte) (*Registry, error) {
	var cf catalogFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, mdpackerrors.Wrap(mdpackerrors.ErrCodeParse, "failed to parse metadata catalog", err)
	}
	return build(cf)
}

func build(cf catalogFile) (*Registry, error) {
	r := &Registry{
		apiVersion:  cf.APIVersion,
		byID:        map[string]*MetadataType{},
		bySuffix:    map[string]*MetadataType{},
		byDirectory: map[string][]*MetadataType{},
		parentOf:    map[string]*MetadataType{},
	}

	var index func(t *MetadataType)
	index = func(t *MetadataType) {
		r.byID[t.ID] = t
		r.ordered = append(r.ordered, t)
		if t.Suffix != "" {
			r.bySuffix[t.Suffix] = t
		}
		r.byDirectory[t.DirectoryName] = append(r.byDirectory[t.DirectoryName], t)
		if t.Children != nil {
			for _, child := range t.Children.Types {
				r.parentOf[child.ID] = t
				index(child)
			}
		}
	}

	for _, t := range cf.Types {
		index(t)
	}

	return r, nil
}

// GetAPIVersion returns the catalog-declared API version.
func (r *Registry) GetAPIVersion() string {
	return r.apiVersion
}

// ByID looks up a type by its stable, lowercased id.
func (r *Registry) ByID(id string) (*MetadataType, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// ByName looks up a type by its presentational name. It scans every type
// in catalog order; there is no name-keyed map.
func (r *Registry) ByName(name string) (*MetadataType, bool) {
	for _, t := range r.ordered {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// BySuffix looks up a type by its file-extension suffix (without the dot).
func (r *Registry) BySuffix(suffix string) (*MetadataType, bool) {
	t, ok := r.bySuffix[suffix]
	return t, ok
}

// ByDirectoryName returns every type whose package-root folder is
// directoryName. Most folders own exactly one type, but folder-style types
// (e.g. Report/ReportFolder) share a directory.
func (r *Registry) ByDirectoryName(directoryName string) []*MetadataType {
	return r.byDirectory[directoryName]
}

// ParentOf returns the decomposed type that owns childID as a child, if
// any. A file matched to a child type by suffix belongs to its parent's
// component and must be resolved through the parent's adapter.
func (r *Registry) ParentOf(childID string) (*MetadataType, bool) {
	t, ok := r.parentOf[childID]
	return t, ok
}

// FolderTypeFor resolves the companion folder MetadataType declared as id.
func (r *Registry) FolderTypeFor(id string) (*MetadataType, bool) {
	return r.ByID(id)
}

// FindType scans the types linearly with an arbitrary predicate, used only
// for the folder-style-xml resolver edge case: find the type whose directoryName
// matches and which is not itself an inFolder member type.
func (r *Registry) FindType(predicate func(*MetadataType) bool) (*MetadataType, bool) {
	for _, t := range r.ordered {
		if predicate(t) {
			return t, true
		}
	}
	return nil, false
}

// All returns every registered type in catalog-declaration order
// (decomposed children included, depth-first).
func (r *Registry) All() []*MetadataType {
	out := make([]*MetadataType, len(r.ordered))
	copy(out, r.ordered)
	return out
}
