// Package transform implements the polymorphic per-type strategies that
// turn a Component into write-instructions for a target layout:
// a default pass-through transformer plus bundle and
// decomposed-recomposition variants, dispatched by the registry's
// transformerId the same string-id-factory way pkg/adapter dispatches
// adapterId. The bundle variant copies each file of the bundle directory
// across unchanged; it does not concatenate them into one document.
package transform

import (
	"context"

	"github.com/architect-io/mdpack/pkg/component"
	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
	"github.com/architect-io/mdpack/pkg/writer"
)

// Target names the layout a Transformer is converting a component into.
type Target int

const (
	// Metadata is the flat, project-root-less layout the remote metadata
	// service deploys from and retrieves into.
	Metadata Target = iota
	// Source is the project's decomposed-or-packaged source tree layout.
	Source
)

// Transformer turns a Component into a WriterFormat for one direction.
type Transformer interface {
	// ToMetadataFormat converts a source-backed component into the
	// metadata-layout write instructions for it.
	ToMetadataFormat(ctx context.Context, c *component.SourceComponent) (*writer.WriterFormat, error)

	// ToSourceFormat converts a metadata-layout-backed component into
	// source-layout write instructions. mergeWith, if non-nil, is the
	// existing source component this output should be merged onto (its
	// content root is used to rebase relative destinations) rather
	// than the type's bare default location.
	ToSourceFormat(ctx context.Context, c *component.SourceComponent, mergeWith *component.SourceComponent) (*writer.WriterFormat, error)
}

const (
	IDDefault    = "default"
	IDBundle     = "bundle"
	IDDecomposed = "decomposed"
)

// New dispatches a MetadataType's strategies.transformerId to its
// Transformer.
func New(id string) (Transformer, error) {
	switch id {
	case IDDefault:
		return defaultTransformer{}, nil
	case IDBundle:
		return bundleTransformer{}, nil
	case IDDecomposed:
		return decomposedTransformer{}, nil
	default:
		return nil, mdpackerrors.RegistryError("transformer", id)
	}
}
