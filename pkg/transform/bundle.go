package transform

import (
	"context"

	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/writer"
)

// bundleTransformer handles Aura/LWC-style bundles: content is always a
// directory named after the component, with no separate bundle-level xml
// file. Both directions walk the directory and copy
// every file straight across; the format distinction that matters for
// other types (the "-meta.xml" suffix dance) does not apply here since
// bundle types carry no type-level suffix.
type bundleTransformer struct{}

func (bundleTransformer) ToMetadataFormat(ctx context.Context, c *component.SourceComponent) (*writer.WriterFormat, error) {
	return bundleWriterFormat(ctx, c, nil)
}

func (bundleTransformer) ToSourceFormat(ctx context.Context, c *component.SourceComponent, mergeWith *component.SourceComponent) (*writer.WriterFormat, error) {
	return bundleWriterFormat(ctx, c, mergeWith)
}

func bundleWriterFormat(ctx context.Context, c *component.SourceComponent, mergeWith *component.SourceComponent) (*writer.WriterFormat, error) {
	wf := &writer.WriterFormat{Component: c}
	if !c.HasContent() {
		return wf, nil
	}

	base := c.GetPackageRelativePath()
	instrs, err := contentInstructions(ctx, c, c.Content(), base, mergeWith)
	if err != nil {
		return nil, err
	}
	wf.WriteInfos = instrs
	return wf, nil
}
