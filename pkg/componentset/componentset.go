// Package componentset implements the de-duplicating, wildcard-aware
// collection at the center of resolve/convert/transfer control flow. The
// lazy union is a pull-based Seed rather than a channel, since membership
// tests need to force the seed to exhaustion before answering.
package componentset

import (
	"sort"

	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/manifest"
)

// wildcardFullName marks a member as matching every component of its type.
const wildcardFullName = "*"

// Seed lazily produces components to pre-populate a Set. Next returns
// ok=false once exhausted; it is never called again afterward.
type Seed func() (c component.MetadataComponent, ok bool)

// entry is the state kept per identity key (type.id + "#" + fullName).
type entry struct {
	typ      *catalog.MetadataType
	fullName string
	wildcard bool

	// variants de-duplicates source-backed instances of the same logical
	// component, keyed by type.Name + fullName + xml + content.
	// Preserves insertion order via order.
	variants map[string]component.MetadataComponent
	order    []string
}

// Set is the de-duplicating, wildcard-aware component collection.
type Set struct {
	seed    Seed
	flushed bool

	entries  map[string]*entry
	keyOrder []string
}

// New constructs a Set, optionally pre-seeded with a lazily-pulled
// iterator. Pass a nil seed to start empty.
func New(seed Seed) *Set {
	return &Set{seed: seed, entries: map[string]*entry{}}
}

// flushNoYield drains the seed into the set's own storage without
// exposing its items directly to the caller, so that Add,
// Has, iteration, and GetSourceComponents all observe a fully-materialized
// set regardless of how much of the seed has been pulled so far.
func (s *Set) flushNoYield() {
	if s.flushed || s.seed == nil {
		return
	}
	for {
		c, ok := s.seed()
		if !ok {
			break
		}
		s.insert(c)
	}
	s.flushed = true
	s.seed = nil
}

func identityKey(typ *catalog.MetadataType, fullName string) string {
	id := ""
	if typ != nil {
		id = typ.ID
	}
	return id + "#" + fullName
}

func variantKey(typ *catalog.MetadataType, fullName, xml, content string) string {
	name := ""
	if typ != nil {
		name = typ.Name
	}
	return name + "#" + fullName + "#" + xml + "#" + content
}

func sourcePaths(c component.MetadataComponent) (xmlPath, contentPath string) {
	type sourcePathed interface {
		XML() string
		Content() string
	}
	if sc, ok := c.(sourcePathed); ok {
		return sc.XML(), sc.Content()
	}
	return "", ""
}

func (s *Set) insert(c component.MetadataComponent) {
	key := identityKey(c.Type(), c.FullName())
	e, ok := s.entries[key]
	if !ok {
		e = &entry{
			typ:      c.Type(),
			fullName: c.FullName(),
			wildcard: c.FullName() == wildcardFullName,
			variants: map[string]component.MetadataComponent{},
		}
		s.entries[key] = e
		s.keyOrder = append(s.keyOrder, key)
	}
	if e.wildcard {
		return
	}

	xmlPath, contentPath := sourcePaths(c)
	vk := variantKey(c.Type(), c.FullName(), xmlPath, contentPath)
	if _, exists := e.variants[vk]; exists {
		return
	}
	e.variants[vk] = c
	e.order = append(e.order, vk)
}

// Add inserts a component into the set, first draining any pending seed.
func (s *Set) Add(c component.MetadataComponent) {
	s.flushNoYield()
	s.insert(c)
}

// Has reports whether c is covered by the set: directly, via a wildcard
// entry for its type, or (recursively) because a parent of c is covered.
func (s *Set) Has(c component.MetadataComponent) bool {
	s.flushNoYield()
	return s.has(c)
}

func (s *Set) has(c component.MetadataComponent) bool {
	if c == nil {
		return false
	}
	if _, ok := s.entries[identityKey(c.Type(), c.FullName())]; ok {
		return true
	}
	if _, ok := s.entries[identityKey(c.Type(), wildcardFullName)]; ok {
		return true
	}
	if c.Parent() != nil {
		return s.has(c.Parent())
	}
	return false
}

// All returns every distinct component in the set, in the order their
// identity keys were first inserted. A wildcard-only entry yields a
// single abstract component with FullName "*". A source-backed entry
// with multiple physical variants yields each one.
func (s *Set) All() []component.MetadataComponent {
	s.flushNoYield()

	var out []component.MetadataComponent
	for _, key := range s.keyOrder {
		e := s.entries[key]
		if e.wildcard {
			out = append(out, wildcardComponent{typ: e.typ})
			continue
		}
		for _, vk := range e.order {
			out = append(out, e.variants[vk])
		}
	}
	return out
}

// GetSourceComponents returns every source-backed component in the set,
// excluding abstract wildcard entries.
func (s *Set) GetSourceComponents() []component.MetadataComponent {
	s.flushNoYield()

	var out []component.MetadataComponent
	for _, key := range s.keyOrder {
		e := s.entries[key]
		if e.wildcard {
			continue
		}
		for _, vk := range e.order {
			out = append(out, e.variants[vk])
		}
	}
	return out
}

// Len returns the number of distinct identity keys held by the set.
func (s *Set) Len() int {
	s.flushNoYield()
	return len(s.keyOrder)
}

// wildcardComponent is the abstract component yielded for a wildcard
// entry; it has no parent, xml, or content.
type wildcardComponent struct {
	typ *catalog.MetadataType
}

func (w wildcardComponent) Name() string                        { return wildcardFullName }
func (w wildcardComponent) FullName() string                    { return wildcardFullName }
func (w wildcardComponent) Type() *catalog.MetadataType         { return w.typ }
func (w wildcardComponent) Parent() component.MetadataComponent { return nil }

// GetPackageXML serializes the set into a package.xml manifest, grouped
// and sorted by type name, with folderContentType rewrites collapsing a
// folder-content child's members into its declaring parent type.
func (s *Set) GetPackageXML(apiVersion, indent string) ([]byte, error) {
	s.flushNoYield()

	membersByTypeName := map[string][]string{}
	seenByTypeName := map[string]map[string]struct{}{}

	addMember := func(typeName, member string) {
		if seenByTypeName[typeName] == nil {
			seenByTypeName[typeName] = map[string]struct{}{}
		}
		if _, ok := seenByTypeName[typeName][member]; ok {
			return
		}
		seenByTypeName[typeName][member] = struct{}{}
		membersByTypeName[typeName] = append(membersByTypeName[typeName], member)
	}

	// folderContentOwner maps a contained type's id to the id of the
	// folder type that collapses it in the manifest.
	folderContentOwner := map[string]*catalog.MetadataType{}
	for _, key := range s.keyOrder {
		e := s.entries[key]
		if e.typ != nil && e.typ.FolderContentType != "" {
			folderContentOwner[e.typ.FolderContentType] = e.typ
		}
	}

	for _, key := range s.keyOrder {
		e := s.entries[key]
		if e.typ == nil {
			continue
		}
		typeName := e.typ.Name
		if owner, ok := folderContentOwner[e.typ.ID]; ok {
			typeName = owner.Name
		}
		addMember(typeName, e.fullName)
	}

	typeNames := make([]string, 0, len(membersByTypeName))
	for name := range membersByTypeName {
		typeNames = append(typeNames, name)
	}
	sort.Strings(typeNames)

	pkg := &manifest.Package{Version: apiVersion}
	for _, name := range typeNames {
		members := membersByTypeName[name]
		sort.Strings(members)
		pkg.Types = append(pkg.Types, manifest.PackageType{Name: name, Members: members})
	}

	return manifest.MarshalIndent(pkg, indent)
}

// FromSlice builds a Seed over a fixed slice, for callers that already
// have their components in memory (e.g. Resolver results).
func FromSlice(components []component.MetadataComponent) Seed {
	i := 0
	return func() (component.MetadataComponent, bool) {
		if i >= len(components) {
			return nil, false
		}
		c := components[i]
		i++
		return c, true
	}
}

// Wildcard constructs the abstract wildcard component for typ, suitable
// for Add(Wildcard(typ)) to mark every component of that type as matched.
func Wildcard(typ *catalog.MetadataType) component.MetadataComponent {
	return wildcardComponent{typ: typ}
}

// manifestComponent is the abstract MetadataComponent synthesized for a
// parsed manifest entry: a bare type+fullName identity
// with no xml/content/parent, sufficient for Set membership tests.
type manifestComponent struct {
	typ      *catalog.MetadataType
	fullName string
}

func (m manifestComponent) Name() string                        { return m.fullName }
func (m manifestComponent) FullName() string                    { return m.fullName }
func (m manifestComponent) Type() *catalog.MetadataType         { return m.typ }
func (m manifestComponent) Parent() component.MetadataComponent { return nil }

// FromManifest builds a Set of abstract components from a parsed
// manifest's entries (pkg/manifest.Parse's ParsedManifest.Entries),
// suitable as the filter argument to a Resolver's ResolveSource
// or as the round-trip target for
// GetPackageXML.
func FromManifest(entries []manifest.Entry) *Set {
	s := New(nil)
	for _, e := range entries {
		if e.FullName == wildcardFullName {
			s.Add(Wildcard(e.Type))
			continue
		}
		s.Add(manifestComponent{typ: e.Type, fullName: e.FullName})
	}
	return s
}
