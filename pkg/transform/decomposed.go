package transform

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/architect-io/mdpack/pkg/component"
	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
	"github.com/architect-io/mdpack/pkg/manifest"
	"github.com/architect-io/mdpack/pkg/writer"
)

// decomposedTransformer recomposes a decomposed type's separately-filed
// children (CustomField, ListView, RecordType...) into their merged
// metadata-format representation, and splits a merged document back into
// per-child source files. The element tag each child collapses into inside the
// parent document is the child type's own DirectoryName ("fields",
// "listViews", "recordTypes"), which the catalog already names to match
// the Salesforce metadata API's array element names.
type decomposedTransformer struct{}

func (decomposedTransformer) ToMetadataFormat(ctx context.Context, c *component.SourceComponent) (*writer.WriterFormat, error) {
	wf := &writer.WriterFormat{Component: c}
	if !c.HasXML() {
		return wf, nil
	}

	parentData, err := c.Tree().ReadFile(ctx, c.XML())
	if err != nil {
		return nil, err
	}

	children, err := c.Children(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(children, func(i, j int) bool {
		ti, tj := children[i].Type(), children[j].Type()
		if ti.DirectoryName != tj.DirectoryName {
			return ti.DirectoryName < tj.DirectoryName
		}
		return children[i].FullName() < children[j].FullName()
	})

	var blocks [][]byte
	for _, child := range children {
		if !child.HasXML() {
			continue
		}
		childData, err := c.Tree().ReadFile(ctx, child.XML())
		if err != nil {
			return nil, err
		}
		inner, err := extractRootInner(childData)
		if err != nil {
			return nil, mdpackerrors.ParseError(child.XML(), err)
		}
		tag := child.Type().DirectoryName
		blocks = append(blocks, []byte(fmt.Sprintf("  <%s>\n%s\n  </%s>", tag, indentLines(inner, "    "), tag)))
	}

	merged, err := spliceBeforeRootClose(parentData, blocks)
	if err != nil {
		return nil, mdpackerrors.ParseError(c.XML(), err)
	}

	wf.WriteInfos = []writer.WriteInstruction{{Bytes: merged, Output: c.GetPackageRelativePath()}}
	return wf, nil
}

func (decomposedTransformer) ToSourceFormat(ctx context.Context, c *component.SourceComponent, mergeWith *component.SourceComponent) (*writer.WriterFormat, error) {
	wf := &writer.WriterFormat{Component: c}
	if !c.HasXML() || c.Type() == nil || c.Type().Children == nil {
		return wf, nil
	}

	parentData, err := c.Tree().ReadFile(ctx, c.XML())
	if err != nil {
		return nil, err
	}

	contentDir := c.Type().DirectoryName + "/" + c.Name()
	if mergeWith != nil && mergeWith.Content() != "" {
		contentDir = mergeWith.Content()
	}

	var removed []elementBlock
	for _, childType := range c.Type().Children.Types {
		tag := childType.DirectoryName
		blocks, err := extractElementBlocks(parentData, tag)
		if err != nil {
			return nil, mdpackerrors.ParseError(c.XML(), err)
		}
		for _, b := range blocks {
			name, err := extractFullName(b.Raw)
			if err != nil || name == "" {
				continue
			}
			inner, err := extractRootInner(b.Raw)
			if err != nil {
				return nil, mdpackerrors.ParseError(c.XML(), err)
			}
			childDoc := wrapXMLDocument(childType.Name, inner)
			output := joinSlash(contentDir, childType.DirectoryName, name+"."+childType.Suffix+"-meta.xml")
			wf.WriteInfos = append(wf.WriteInfos, writer.WriteInstruction{Bytes: childDoc, Output: output})
			removed = append(removed, b)
		}
	}

	trimmed := removeBlocks(parentData, removed)
	parentOutput := joinSlash(contentDir, c.Name()+"."+c.Type().Suffix+"-meta.xml")
	wf.WriteInfos = append(wf.WriteInfos, writer.WriteInstruction{Bytes: trimmed, Output: parentOutput})

	sort.Slice(wf.WriteInfos, func(i, j int) bool { return wf.WriteInfos[i].Output < wf.WriteInfos[j].Output })
	return wf, nil
}

// elementBlock is a top-level child element found directly under a
// document's root, with its exact byte range so the parent copy can
// later be spliced to remove it.
type elementBlock struct {
	Start, End int64
	Raw        []byte
}

// extractElementBlocks returns every top-level occurrence of a <tag>
// element directly under data's root element, in document order.
func extractElementBlocks(data []byte, tag string) ([]elementBlock, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var blocks []elementBlock
	depth := 0
	var start int64 = -1

	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 1 && t.Name.Local == tag && start < 0 {
				start = before
			}
			depth++
		case xml.EndElement:
			depth--
			if depth == 1 && t.Name.Local == tag && start >= 0 {
				end := dec.InputOffset()
				blocks = append(blocks, elementBlock{Start: start, End: end, Raw: data[start:end]})
				start = -1
			}
		}
	}
	return blocks, nil
}

// extractRootInner returns the trimmed byte range strictly between a
// document's root start and end tags.
func extractRootInner(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	var innerStart, innerEnd int64

	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 1 {
				innerStart = dec.InputOffset()
			}
		case xml.EndElement:
			if depth == 1 {
				innerEnd = before
			}
			depth--
		}
	}
	if innerEnd < innerStart {
		return nil, fmt.Errorf("no root element found")
	}
	return bytes.TrimSpace(data[innerStart:innerEnd]), nil
}

// rootCloseOffset returns the byte offset immediately before a
// document's root closing tag.
func rootCloseOffset(data []byte) (int64, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		before := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
			if depth == 0 {
				return before, nil
			}
		}
	}
	return 0, fmt.Errorf("no root close tag found")
}

// spliceBeforeRootClose inserts blocks, each on its own line, immediately
// before data's root closing tag.
func spliceBeforeRootClose(data []byte, blocks [][]byte) ([]byte, error) {
	if len(blocks) == 0 {
		return data, nil
	}
	offset, err := rootCloseOffset(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(bytes.TrimRight(data[:offset], "\n\t "))
	buf.WriteByte('\n')
	for _, b := range blocks {
		buf.Write(b)
		buf.WriteByte('\n')
	}
	buf.Write(data[offset:])
	return buf.Bytes(), nil
}

// removeBlocks strips the byte ranges named by blocks out of data,
// highest offset first so earlier offsets stay valid.
func removeBlocks(data []byte, blocks []elementBlock) []byte {
	if len(blocks) == 0 {
		return data
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start > blocks[j].Start })
	out := append([]byte(nil), data...)
	for _, b := range blocks {
		out = append(out[:b.Start], out[b.End:]...)
	}
	return out
}

// extractFullName returns the text of a top-level <fullName> child
// inside an element block, used to name a split-out decomposed child
// file.
func extractFullName(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	inName := false
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 && t.Name.Local == "fullName" {
				inName = true
				sb.Reset()
			}
		case xml.CharData:
			if inName {
				sb.Write(t)
			}
		case xml.EndElement:
			if inName && t.Name.Local == "fullName" {
				return strings.TrimSpace(sb.String()), nil
			}
			depth--
		}
	}
	return "", nil
}

// wrapXMLDocument wraps inner content in a standalone metadata-namespace
// document rooted at rootName.
func wrapXMLDocument(rootName string, inner []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<" + rootName + ` xmlns="` + manifest.XMLNamespace + `">` + "\n")
	buf.Write(inner)
	buf.WriteString("\n</" + rootName + ">\n")
	return buf.Bytes()
}

// indentLines prefixes every non-empty line of s with prefix.
func indentLines(s []byte, prefix string) string {
	lines := strings.Split(string(s), "\n")
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
