// Package resolver walks a Tree and infers typed SourceComponents from
// it. An Options struct carries the injected collaborators (registry,
// ignore-file name, logger); each resolution branch lives in its own
// private method, dispatched on the walked path and its inferred
// MetadataType.
package resolver

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/architect-io/mdpack/pkg/adapter"
	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/componentset"
	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
	"github.com/architect-io/mdpack/pkg/ignore"
	"github.com/architect-io/mdpack/pkg/tree"
)

// Options configures a Resolver.
type Options struct {
	// Registry is the loaded MetadataType catalog used for type inference.
	Registry *catalog.Registry

	// IgnoreFileName overrides the ignore-file name searched for while
	// walking (defaults to ignore.DefaultFileName).
	IgnoreFileName string

	// Logger receives walk diagnostics; defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// Resolver infers typed components from a Tree by walking it and matching
// paths against the Registry's MetadataType catalog.
type Resolver struct {
	registry       *catalog.Registry
	ignoreFileName string
	log            logrus.FieldLogger
}

// New constructs a Resolver.
func New(opts Options) *Resolver {
	ignoreFileName := opts.IgnoreFileName
	if ignoreFileName == "" {
		ignoreFileName = ignore.DefaultFileName
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{registry: opts.Registry, ignoreFileName: ignoreFileName, log: log}
}

// ResolveSource resolves every path in paths against t, returning a
// ComponentSet of the components found. filter, if non-nil, restricts the
// result to components (or their matching children) covered by it.
func (r *Resolver) ResolveSource(ctx context.Context, t tree.Tree, paths []string, filter *componentset.Set) (*componentset.Set, error) {
	result := componentset.New(nil)

	for _, path := range paths {
		exists, err := t.Exists(path)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, mdpackerrors.PathNotFound(path)
		}

		ig, err := ignore.Load(t, path, r.ignoreFileName)
		if err != nil {
			return nil, err
		}

		isDir, err := t.IsDirectory(path)
		if err != nil {
			return nil, err
		}

		if !isDir {
			c, err := r.resolveComponent(ctx, t, ig, path, true)
			if err != nil {
				return nil, err
			}
			r.yield(result, filter, c)
			continue
		}

		if typ, ok := r.resolveDirectoryAsComponent(t, path); ok {
			a, err := adapter.New(typ.Strategies.AdapterID)
			if err != nil {
				return nil, err
			}
			c, err := a.GetComponent(ctx, t, ig, typ, path, true)
			if err != nil {
				return nil, err
			}
			r.yield(result, filter, c)
			continue
		}

		if err := r.walkDirectory(ctx, t, ig, path, result, filter); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// walkDirectory performs the recursive resolution walk: try "resolve as
// one component" at every directory
// boundary first, and otherwise recurse; consumed paths (an already-
// yielded component's own xml/content) are skipped on sight.
func (r *Resolver) walkDirectory(ctx context.Context, t tree.Tree, ig *ignore.Matcher, dir string, result *componentset.Set, filter *componentset.Set) error {
	names, err := t.ReadDirectory(dir)
	if err != nil {
		return err
	}

	var consumed []string

	for _, name := range names {
		childPath := joinPath(dir, name)
		if isConsumed(childPath, consumed) {
			continue
		}
		if ig != nil && ig.Denies(childPath) {
			r.log.WithField("path", childPath).Debug("skipping ignored path")
			continue
		}

		isDir, err := t.IsDirectory(childPath)
		if err != nil {
			return err
		}

		if isDir {
			if typ, ok := r.resolveDirectoryAsComponent(t, childPath); ok {
				r.log.WithField("path", childPath).WithField("type", typ.Name).Debug("resolving directory as component")
				a, err := adapter.New(typ.Strategies.AdapterID)
				if err != nil {
					return err
				}
				c, err := a.GetComponent(ctx, t, ig, typ, childPath, true)
				if err != nil {
					return err
				}
				if c != nil {
					r.yield(result, filter, c)
					consumed = appendConsumed(consumed, c)
					continue
				}
			}
			if err := r.walkDirectory(ctx, t, ig, childPath, result, filter); err != nil {
				return err
			}
			continue
		}

		c, err := r.resolveComponent(ctx, t, ig, childPath, false)
		if err != nil {
			return err
		}
		if c != nil {
			r.yield(result, filter, c)
			consumed = appendConsumed(consumed, c)
		}
	}

	return nil
}

// appendConsumed records c's own xml path and content path (or subtree,
// for a directory-backed content) as consumed, so a later sibling in the
// same directory walk does not re-resolve paths already claimed by c.
func appendConsumed(consumed []string, c *component.SourceComponent) []string {
	if c.HasXML() {
		consumed = append(consumed, c.XML())
	}
	if c.HasContent() {
		consumed = append(consumed, c.Content())
	}
	return consumed
}

// isConsumed reports whether p is, or is nested under, one of the
// previously-consumed paths.
func isConsumed(p string, consumed []string) bool {
	for _, c := range consumed {
		if p == c || strings.HasPrefix(p, c+"/") {
			return true
		}
	}
	return false
}

// yield adds c to result honoring filter semantics: if c
// itself is covered, add it whole; otherwise, fall back to adding only its
// children that are covered (for a decomposed or element-parsed type).
func (r *Resolver) yield(result *componentset.Set, filter *componentset.Set, c *component.SourceComponent) {
	if c == nil {
		return
	}
	if filter == nil || filter.Has(c) {
		result.Add(c)
		return
	}
	children, err := c.Children(context.Background())
	if err != nil {
		return
	}
	for _, child := range children {
		if filter.Has(child) {
			result.Add(child)
		}
	}
}

// resolveComponent classifies a single file path and dispatches it to its
// type's adapter.
func (r *Resolver) resolveComponent(ctx context.Context, t tree.Tree, ig *ignore.Matcher, fsPath string, isResolvingSource bool) (*component.SourceComponent, error) {
	name := basename(fsPath)
	if isMetadataXMLName(name) && ig != nil && ig.Denies(fsPath) {
		return nil, nil
	}

	typ, err := r.resolveType(fsPath)
	if err != nil {
		return nil, err
	}

	a, err := adapter.New(typ.Strategies.AdapterID)
	if err != nil {
		return nil, err
	}

	// A bare content file whose adapter can't pair from content is left
	// for the walk to reach its xml separately. Metadata xml files are
	// never short-circuited: for xml-only types they are the component.
	if !isResolvingSource && !isMetadataXMLName(name) && typ.Suffix != "" && !a.AllowMetadataWithContent() {
		return nil, nil
	}

	return a.GetComponent(ctx, t, ig, typ, fsPath, isResolvingSource)
}

// resolveType infers a path's MetadataType. The strategies run in a fixed
// precedence order: strict-folder match, metadata-xml suffix, folder-style
// xml, then bare extension.
func (r *Resolver) resolveType(fsPath string) (*catalog.MetadataType, error) {
	segments := strings.Split(strings.Trim(fsPath, "/"), "/")
	name := segments[len(segments)-1]

	// 1. Strict-folder types.
	for _, t := range r.registry.All() {
		if !t.StrictDirectoryName {
			continue
		}
		idx := indexOf(segments, t.DirectoryName)
		if idx < 0 {
			continue
		}
		parentIsSameDir := idx > 0 && segments[idx-1] == t.DirectoryName
		if !t.InFolder || !parentIsSameDir {
			return t, nil
		}
	}

	// 2. Parse as metadata xml.
	if isMetadataXMLName(name) {
		base := strings.TrimSuffix(name, "-meta.xml")
		if idx := strings.LastIndex(base, "."); idx >= 0 {
			suffix := base[idx+1:]
			if t, ok := r.registry.BySuffix(suffix); ok {
				return r.promoteChildType(t), nil
			}
		} else {
			// 3. Folder-style xml: "<name>-meta.xml" with no dot in <name>.
			parentDir := ""
			if len(segments) >= 2 {
				parentDir = segments[len(segments)-2]
			}
			if t, ok := r.registry.FindType(func(mt *catalog.MetadataType) bool {
				return mt.DirectoryName == parentDir && !mt.InFolder
			}); ok {
				return t, nil
			}
		}
	}

	// 4. Extension as suffix.
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		suffix := name[idx+1:]
		if t, ok := r.registry.BySuffix(suffix); ok {
			return r.promoteChildType(t), nil
		}
	}

	return nil, mdpackerrors.TypeInferenceFailed(fsPath)
}

// promoteChildType maps a decomposed child type to the parent that owns
// it, so a child file reached ahead of its parent's xml still resolves
// through the parent's adapter (which ascends to the component root)
// instead of yielding a spurious unparented child.
func (r *Resolver) promoteChildType(t *catalog.MetadataType) *catalog.MetadataType {
	if parent, ok := r.registry.ParentOf(t.ID); ok {
		return parent
	}
	return t
}

// resolveDirectoryAsComponent reports whether dir should resolve as one
// component rather than be recursed into: a type must resolve for the
// directory (by path signal, or by an exploded content directory's
// sibling xml), the type must have no children, and the directory must
// sit exactly one level (two for inFolder types) below the type's
// directoryName.
func (r *Resolver) resolveDirectoryAsComponent(t tree.Tree, dir string) (*catalog.MetadataType, bool) {
	typ, err := r.resolveType(dir)
	if err != nil {
		typ = r.mixedContentDirType(t, dir)
		if typ == nil {
			return nil, false
		}
	}
	if typ.HasChildren() {
		return nil, false
	}

	segments := strings.Split(strings.Trim(dir, "/"), "/")
	idx := indexOf(segments, typ.DirectoryName)
	if idx < 0 {
		return nil, false
	}
	offset := 2
	if typ.InFolder {
		offset = 3
	}
	if len(segments)-idx == offset {
		return typ, true
	}
	return nil, false
}

// mixedContentDirType recognizes an exploded content directory, whose
// bare name carries no xml or extension signal of its own, by the
// sibling "<name>.<suffix>-meta.xml" its adapter pairs it with. Without
// this, the walk would recurse into the directory and fail type
// inference on the first asset file inside it.
func (r *Resolver) mixedContentDirType(t tree.Tree, dir string) *catalog.MetadataType {
	segments := strings.Split(strings.Trim(dir, "/"), "/")
	if len(segments) < 2 {
		return nil
	}
	parentDir := segments[len(segments)-2]

	for _, typ := range r.registry.ByDirectoryName(parentDir) {
		if typ.Suffix == "" || typ.HasChildren() || typ.Strategies.AdapterID != adapter.IDMixedContent {
			continue
		}
		xmlPath := dir + "." + typ.Suffix + "-meta.xml"
		if exists, _ := t.Exists(xmlPath); exists {
			return typ
		}
	}
	return nil
}

func isMetadataXMLName(name string) bool {
	return strings.HasSuffix(name, "-meta.xml")
}

func basename(p string) string {
	idx := strings.LastIndex(strings.TrimRight(p, "/"), "/")
	if idx < 0 {
		return p
	}
	return p[idx+1:]
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func indexOf(segments []string, value string) int {
	for i, s := range segments {
		if s == value {
			return i
		}
	}
	return -1
}
