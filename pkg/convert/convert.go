// Package convert orchestrates transformer dispatch over a ComponentSet,
// feeding a chosen Writer. Per-component pipelines run with a bounded
// fan-out via golang.org/x/sync/errgroup and semaphore.Weighted;
// components are independent units, so only the fan-out bound serializes
// them.
package convert

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/architect-io/mdpack/pkg/component"
	"github.com/architect-io/mdpack/pkg/componentset"
	mdpackerrors "github.com/architect-io/mdpack/pkg/errors"
	"github.com/architect-io/mdpack/pkg/transform"
	"github.com/architect-io/mdpack/pkg/writer"
)

// DefaultParallelism bounds the number of components converted
// concurrently when Options.Parallelism is left at zero.
const DefaultParallelism = 8

// Direction selects which of a Transformer's two conversion methods the
// Converter drives.
type Direction int

const (
	// ToMetadata converts source-backed components into metadata-layout
	// output (the shape a deploy uploads).
	ToMetadata Direction = iota
	// ToSource converts metadata-layout components into source-layout
	// output (the shape a retrieve writes back into a project).
	ToSource
)

// Options configures a Converter.
type Options struct {
	// Parallelism bounds how many components are converted concurrently.
	// Zero selects DefaultParallelism.
	Parallelism int64

	// MergeWith supplies, for ToSource conversions, the existing source
	// component a given metadata component should be merged onto,
	// keyed by "type.id#fullName". Absent entries convert to their
	// type's bare default location.
	MergeWith map[string]*component.SourceComponent

	// Logger receives per-component diagnostics; defaults to
	// logrus.StandardLogger().
	Logger logrus.FieldLogger
}

// Converter drives transform.Transformer → writer.Writer for every
// component in a set, honoring a bounded fan-out.
type Converter struct {
	opts Options
	log  logrus.FieldLogger
}

// New constructs a Converter.
func New(opts Options) *Converter {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Converter{opts: opts, log: log}
}

// Convert transforms every source-backed component in set in direction
// dir and writes the result through w. A failure on one component's
// pipeline cancels the remaining in-flight pipelines (context
// cancellation propagates to errgroup) but does not roll back components
// already committed to w; commits are per-component.
func (c *Converter) Convert(ctx context.Context, set *componentset.Set, dir Direction, w writer.Writer) error {
	components := set.GetSourceComponents()

	sourceBacked := make([]*component.SourceComponent, 0, len(components))
	for _, mc := range components {
		if sc, ok := mc.(*component.SourceComponent); ok {
			sourceBacked = append(sourceBacked, sc)
		}
	}

	sem := semaphore.NewWeighted(c.opts.Parallelism)
	g, gctx := errgroup.WithContext(ctx)

	for _, sc := range sourceBacked {
		sc := sc
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if err := c.convertOne(gctx, sc, dir, w); err != nil {
				c.log.WithField("component", sc.FullName()).WithError(err).Debug("component conversion failed")
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

func (c *Converter) convertOne(ctx context.Context, sc *component.SourceComponent, dir Direction, w writer.Writer) error {
	if sc.Type() == nil {
		return mdpackerrors.RegistryError("type", sc.Name())
	}

	tr, err := transform.New(sc.Type().Strategies.TransformerID)
	if err != nil {
		return err
	}

	var wf *writer.WriterFormat
	switch dir {
	case ToMetadata:
		wf, err = tr.ToMetadataFormat(ctx, sc)
	case ToSource:
		mergeWith := c.opts.MergeWith[mergeKey(sc)]
		wf, err = tr.ToSourceFormat(ctx, sc, mergeWith)
	}
	if err != nil {
		return err
	}

	return w.WriteComponent(ctx, *wf)
}

func mergeKey(c *component.SourceComponent) string {
	id := ""
	if c.Type() != nil {
		id = c.Type().ID
	}
	return id + "#" + c.FullName()
}
