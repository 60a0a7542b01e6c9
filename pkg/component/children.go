package component

import (
	"bytes"
	"context"
	"encoding/xml"
	"sort"
	"strings"

	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
)

// Children yields this component's child components, if its type
// decomposes. Only meaningful on a top-level
// component (parent == nil); a child component itself never has children.
//
// Two strategies, matching the type's declared shape:
//   - Decomposed: walk Content (a directory), promoting each "-meta.xml"
//     file matching Type().Children.Suffixes to a child component.
//   - Non-decomposed with an ElementParser: parse the elements at
//     Strategies.ElementParser.XMLPath out of the parent's own xml file.
func (c *SourceComponent) Children(ctx context.Context) ([]*SourceComponent, error) {
	if c.parent != nil || c.typ == nil || !c.typ.HasChildren() {
		return nil, nil
	}

	if c.typ.IsDecomposed() {
		return c.decomposedChildren(ctx)
	}
	if c.typ.Strategies.ElementParser != nil {
		return c.elementParsedChildren(ctx)
	}
	return nil, nil
}

func (c *SourceComponent) decomposedChildren(ctx context.Context) ([]*SourceComponent, error) {
	if c.content == "" {
		return nil, nil
	}

	var children []*SourceComponent
	var walk func(dir string) error
	walk = func(dir string) error {
		names, err := c.tree.ReadDirectory(dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			childPath := dir + "/" + name
			if c.ignore != nil && c.ignore.Denies(childPath) {
				continue
			}
			isDir, err := c.tree.IsDirectory(childPath)
			if err != nil {
				return err
			}
			if isDir {
				if err := walk(childPath); err != nil {
					return err
				}
				continue
			}

			childTypeID, base, ok := matchChildSuffix(name, c.typ.Children.Suffixes)
			if !ok {
				continue
			}
			childType, ok := c.typ.Children.Types[childTypeID]
			if !ok {
				continue
			}

			child, err := New(Options{
				Name:   base,
				Type:   childType,
				Parent: c,
				XML:    childPath,
				Tree:   c.tree,
				Ignore: c.ignore,
			})
			if err != nil {
				return err
			}
			children = append(children, child)
		}
		return nil
	}

	if err := walk(c.content); err != nil {
		return nil, err
	}

	sort.Slice(children, func(i, j int) bool { return children[i].FullName() < children[j].FullName() })
	return children, nil
}

// matchChildSuffix finds the longest declared suffix (e.g. "field-meta.xml")
// that name ends with, returning the child type id and the base name with
// that suffix (and the separating dot) stripped.
func matchChildSuffix(name string, suffixes map[string]string) (typeID, base string, ok bool) {
	best := ""
	for suffix := range suffixes {
		if strings.HasSuffix(name, "."+suffix) && len(suffix) > len(best) {
			best = suffix
		}
	}
	if best == "" {
		return "", "", false
	}
	return suffixes[best], strings.TrimSuffix(name, "."+best), true
}

func (c *SourceComponent) elementParsedChildren(ctx context.Context) ([]*SourceComponent, error) {
	if c.xml == "" {
		return nil, nil
	}
	data, err := c.tree.ReadFile(ctx, c.xml)
	if err != nil {
		return nil, err
	}

	parser := c.typ.Strategies.ElementParser
	names, err := extractElementNames(data, parser.XMLPath, parser.NameAttr)
	if err != nil {
		return nil, mdpackerrors.ParseError(c.xml, err)
	}

	children := make([]*SourceComponent, 0, len(names))
	for _, name := range names {
		child, err := New(Options{
			Name:   name,
			Type:   c.typ,
			Parent: c,
			XML:    c.xml,
			Tree:   c.tree,
			Ignore: c.ignore,
		})
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// extractElementNames walks xml looking for repeated elements whose local
// name is elementTag, and returns the text content of each one's nameAttr
// child element, in document order.
func extractElementNames(data []byte, elementTag, nameAttr string) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var names []string
	var inElement bool
	var inNameAttr bool
	var depth int
	var current strings.Builder

	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == elementTag && !inElement {
				inElement = true
				depth = 0
				current.Reset()
				continue
			}
			if inElement {
				depth++
				if t.Name.Local == nameAttr {
					inNameAttr = true
					current.Reset()
				}
			}
		case xml.CharData:
			if inNameAttr {
				current.Write(t)
			}
		case xml.EndElement:
			if inElement && t.Name.Local == nameAttr && inNameAttr {
				inNameAttr = false
				names = append(names, strings.TrimSpace(current.String()))
			}
			if inElement && t.Name.Local == elementTag && depth == 0 {
				inElement = false
			}
			if inElement {
				depth--
			}
		}
	}

	return names, nil
}
