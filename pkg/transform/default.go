package transform

import (
	"context"
	"strings"

	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/writer"
)

// defaultTransformer is the pass-through transformer used by every type
// whose on-disk shape is already identical between the two formats
// except for the xml-only "-meta.xml" suffix convention:
// Base, MatchingContent and MixedContent adapters all dispatch here.
type defaultTransformer struct{}

func (defaultTransformer) ToMetadataFormat(ctx context.Context, c *component.SourceComponent) (*writer.WriterFormat, error) {
	return buildWriterFormat(ctx, c, Metadata, nil)
}

func (defaultTransformer) ToSourceFormat(ctx context.Context, c *component.SourceComponent, mergeWith *component.SourceComponent) (*writer.WriterFormat, error) {
	return buildWriterFormat(ctx, c, Source, mergeWith)
}

// buildWriterFormat emits one instruction for the component's xml file
// (if any) and, when it has content, one instruction per file under its
// content root (a single file, or every leaf under a content directory
// for MixedContent types like staticresource).
func buildWriterFormat(ctx context.Context, c *component.SourceComponent, target Target, mergeWith *component.SourceComponent) (*writer.WriterFormat, error) {
	wf := &writer.WriterFormat{Component: c}

	base := c.GetPackageRelativePath()

	if c.HasXML() {
		// Xml-only components drop the "-meta.xml" suffix in metadata
		// format and carry it in source format; components with content
		// always keep it.
		xmlOutput := base
		if c.HasContent() || target == Source {
			xmlOutput = base + "-meta.xml"
		}
		instr, err := readInstruction(ctx, c, c.XML(), xmlOutput, mergeWith)
		if err != nil {
			return nil, err
		}
		wf.WriteInfos = append(wf.WriteInfos, instr)
	}

	if c.HasContent() {
		instrs, err := contentInstructions(ctx, c, c.Content(), base, mergeWith)
		if err != nil {
			return nil, err
		}
		wf.WriteInfos = append(wf.WriteInfos, instrs...)
	}

	return wf, nil
}

// readInstruction streams srcPath from c's tree into a WriteInstruction
// destined for defaultOutput, rebased onto mergeWith's content root when
// mergeWith is set.
func readInstruction(ctx context.Context, c *component.SourceComponent, srcPath, defaultOutput string, mergeWith *component.SourceComponent) (writer.WriteInstruction, error) {
	rc, err := c.Tree().Stream(ctx, srcPath)
	if err != nil {
		return writer.WriteInstruction{}, err
	}
	output := rebase(defaultOutput, srcPath, c, mergeWith)
	return writer.WriteInstruction{Source: rc, Output: output}, nil
}

// contentInstructions walks root (a file or a directory) under c's tree,
// emitting one instruction per leaf file. For a single-file root, the
// instruction's destination is simply base; for a directory, each file's
// path relative to root is appended to base.
func contentInstructions(ctx context.Context, c *component.SourceComponent, root, base string, mergeWith *component.SourceComponent) ([]writer.WriteInstruction, error) {
	isDir, err := c.Tree().IsDirectory(root)
	if err != nil {
		return nil, err
	}
	if !isDir {
		instr, err := readInstruction(ctx, c, root, base, mergeWith)
		if err != nil {
			return nil, err
		}
		return []writer.WriteInstruction{instr}, nil
	}

	var out []writer.WriteInstruction
	var walk func(dir, relDir string) error
	walk = func(dir, relDir string) error {
		names, err := c.Tree().ReadDirectory(dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			childPath := joinSlash(dir, name)
			childRel := joinSlash(relDir, name)
			if c.Ignore() != nil && c.Ignore().Denies(childPath) {
				continue
			}
			isDir, err := c.Tree().IsDirectory(childPath)
			if err != nil {
				return err
			}
			if isDir {
				if err := walk(childPath, childRel); err != nil {
					return err
				}
				continue
			}
			instr, err := readInstruction(ctx, c, childPath, joinSlash(base, childRel), mergeWith)
			if err != nil {
				return err
			}
			out = append(out, instr)
		}
		return nil
	}
	if err := walk(root, ""); err != nil {
		return nil, err
	}
	return out, nil
}

// rebase computes the merged destination for srcPath, preserving its
// relative suffix past c's own content root and re-rooting it onto
// mergeWith.Content(). Without a mergeWith, defaultOutput
// is used unchanged.
func rebase(defaultOutput, srcPath string, c *component.SourceComponent, mergeWith *component.SourceComponent) string {
	if mergeWith == nil || mergeWith.Content() == "" || c.Content() == "" {
		return defaultOutput
	}
	if !strings.HasPrefix(srcPath, c.Content()) {
		return defaultOutput
	}
	// The suffix keeps its own leading separator ("/inner/file" for a file
	// under the content root, "-meta.xml" for the sibling xml), so plain
	// concatenation lands both correctly.
	return mergeWith.Content() + strings.TrimPrefix(srcPath, c.Content())
}

func joinSlash(parts ...string) string {
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}
