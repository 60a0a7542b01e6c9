// Package component implements the typed logical unit at the center of the
// converter: MetadataComponent (the abstract identity) and SourceComponent
// (the concrete, file-backed variant). SourceComponent sits behind the
// small MetadataComponent interface and is immutable once constructed.
package component

import (
	"github.com/architect-io/mdpack/pkg/catalog"
	"github.com/architect-io/mdpack/pkg/ignore"
	"github.com/architect-io/mdpack/pkg/tree"
)

// MetadataComponent is the abstract identity shared by every component:
// a typed, possibly-parented name.
type MetadataComponent interface {
	// Name is the component's own name, without any parent/namespace prefix.
	Name() string

	// FullName is dot-joined with the parent's FullName when parented;
	// the dotted form is the contracted behavior (see DESIGN.md).
	FullName() string

	// Type is the component's MetadataType.
	Type() *catalog.MetadataType

	// Parent is the enclosing component, or nil for a top-level component.
	Parent() MetadataComponent
}

// SourceComponent is the concrete, file-backed MetadataComponent. It is
// immutable once constructed; Tree and Ignore are shared by reference with
// every component derived from it (children, via Children()).
type SourceComponent struct {
	name   string
	typ    *catalog.MetadataType
	parent MetadataComponent

	xml     string
	content string

	tree   tree.Tree
	ignore *ignore.Matcher
}

// Options constructs a SourceComponent. At least one of XML or Content must
// be set.
type Options struct {
	Name    string
	Type    *catalog.MetadataType
	Parent  MetadataComponent
	XML     string
	Content string
	Tree    tree.Tree
	Ignore  *ignore.Matcher
}

// errNoXMLOrContent is returned by New when neither Options.XML nor
// Options.Content is set.
var errNoXMLOrContent = "source component must have at least one of xml or content"

// New constructs a SourceComponent, enforcing the xml-or-content invariant.
func New(opts Options) (*SourceComponent, error) {
	if opts.XML == "" && opts.Content == "" {
		return nil, newInvariantError(errNoXMLOrContent)
	}
	return &SourceComponent{
		name:    opts.Name,
		typ:     opts.Type,
		parent:  opts.Parent,
		xml:     opts.XML,
		content: opts.Content,
		tree:    opts.Tree,
		ignore:  opts.Ignore,
	}, nil
}

func (c *SourceComponent) Name() string { return c.name }

func (c *SourceComponent) FullName() string {
	if c.parent != nil && c.parent.FullName() != "" {
		return c.parent.FullName() + "." + c.name
	}
	return c.name
}

func (c *SourceComponent) Type() *catalog.MetadataType { return c.typ }

func (c *SourceComponent) Parent() MetadataComponent { return c.parent }

// XML is the path to the component's metadata xml file, or "" if it has none.
func (c *SourceComponent) XML() string { return c.xml }

// HasXML reports whether the component has a metadata xml file.
func (c *SourceComponent) HasXML() bool { return c.xml != "" }

// Content is the path to the component's content file or directory, or ""
// if it has none.
func (c *SourceComponent) Content() string { return c.content }

// HasContent reports whether the component has a content path.
func (c *SourceComponent) HasContent() bool { return c.content != "" }

// Tree is the backing tree shared by this component and all of its
// descendants.
func (c *SourceComponent) Tree() tree.Tree { return c.tree }

// Ignore is the ignore matcher shared by this component and all of its
// descendants.
func (c *SourceComponent) Ignore() *ignore.Matcher { return c.ignore }

type invariantError struct{ msg string }

func (e *invariantError) Error() string { return e.msg }

func newInvariantError(msg string) error { return &invariantError{msg: msg} }
