// Package publish pushes a converted metadata package directory to an OCI
// registry and pulls one back down, recording each operation in a local
// history cache. It wires pkg/oci (go-containerregistry push/pull) and
// pkg/registry (JSON-backed artifact log) into a single API for the CLI's
// push/pull commands, an optional distribution path for converted
// packages.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/architect-io/mdpack/pkg/oci"
	"github.com/architect-io/mdpack/pkg/registry"
)

// Options configures a Publisher.
type Options struct {
	// Client performs the OCI push/pull. Defaults to oci.NewClient().
	Client *oci.Client

	// History records push/pull operations locally. Defaults to the
	// registry at registry.DefaultRegistryPath().
	History registry.Registry

	// CacheDir is the base directory pulled packages are extracted under.
	// Defaults to registry.DefaultCachePath().
	CacheDir string

	// APIVersion is recorded in the pushed artifact's config.
	APIVersion string

	// SourceHash, if set, is recorded in the pushed artifact's config
	// (e.g. a hash of the source tree the package was converted from).
	SourceHash string
}

// Publisher pushes and pulls converted metadata packages as OCI artifacts.
type Publisher struct {
	client     *oci.Client
	history    registry.Registry
	cacheDir   string
	apiVersion string
	sourceHash string
}

// New constructs a Publisher, filling in defaults for any unset Options.
func New(opts Options) (*Publisher, error) {
	client := opts.Client
	if client == nil {
		client = oci.NewClient()
	}

	history := opts.History
	if history == nil {
		reg, err := registry.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("failed to open local push/pull history: %w", err)
		}
		history = reg
	}

	cacheDir := opts.CacheDir
	if cacheDir == "" {
		dir, err := registry.DefaultCachePath()
		if err != nil {
			return nil, fmt.Errorf("failed to determine cache path: %w", err)
		}
		cacheDir = dir
	}

	return &Publisher{
		client:     client,
		history:    history,
		cacheDir:   cacheDir,
		apiVersion: opts.APIVersion,
		sourceHash: opts.SourceHash,
	}, nil
}

// Push builds an OCI artifact from dir (a converted metadata package
// directory) and pushes it to reference, recording the push in the local
// history.
func (p *Publisher) Push(ctx context.Context, dir, reference string) (*registry.ArtifactEntry, error) {
	config := oci.MetadataPackageConfig{
		SchemaVersion: "v1",
		APIVersion:    p.apiVersion,
		SourceHash:    p.sourceHash,
		BuildTime:     time.Now().UTC().Format(time.RFC3339),
	}

	artifact, err := p.client.BuildFromDirectory(ctx, dir, oci.ArtifactTypeMetadataPackage, config)
	if err != nil {
		return nil, fmt.Errorf("failed to build artifact from %s: %w", dir, err)
	}
	artifact.Reference = reference

	if err := p.client.Push(ctx, artifact); err != nil {
		return nil, err
	}
	logrus.Debugf("pushed %s (%d layers)", reference, len(artifact.Layers))

	var size int64
	for _, layer := range artifact.Layers {
		size += int64(len(layer.Data))
	}

	repo, tag := registry.ParseReference(reference)
	entry := registry.ArtifactEntry{
		Reference:  reference,
		Repository: repo,
		Tag:        tag,
		Type:       registry.TypeMetadataPackage,
		Size:       size,
		CreatedAt:  time.Now(),
	}

	if err := p.history.Add(entry); err != nil {
		return nil, fmt.Errorf("pushed %s but failed to record it locally: %w", reference, err)
	}

	return &entry, nil
}

// Pull pulls reference down to the local cache, overwriting any previously
// cached copy, and records the pull in the local history. It returns the
// directory the package was extracted to.
func (p *Publisher) Pull(ctx context.Context, reference string) (string, error) {
	destDir, err := registry.CachePathForRef(reference)
	if err != nil {
		return "", err
	}
	if p.cacheDir != "" {
		destDir = filepath.Join(p.cacheDir, registry.CacheKey(reference))
	}

	if _, err := os.Stat(destDir); err == nil {
		if err := os.RemoveAll(destDir); err != nil {
			return "", fmt.Errorf("failed to clear existing cache at %s: %w", destDir, err)
		}
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := p.client.Pull(ctx, reference, destDir); err != nil {
		return "", err
	}
	logrus.Debugf("pulled %s into %s", reference, destDir)

	size, err := dirSize(destDir)
	if err != nil {
		size = 0
	}

	repo, tag := registry.ParseReference(reference)
	entry := registry.ArtifactEntry{
		Reference:  reference,
		Repository: repo,
		Tag:        tag,
		Type:       registry.TypeMetadataPackage,
		Size:       size,
		CreatedAt:  time.Now(),
		CachePath:  destDir,
	}

	if err := p.history.Add(entry); err != nil {
		return "", fmt.Errorf("pulled %s but failed to record it locally: %w", reference, err)
	}

	return destDir, nil
}

// Exists reports whether reference already exists in the remote registry.
func (p *Publisher) Exists(ctx context.Context, reference string) (bool, error) {
	return p.client.Exists(ctx, reference)
}

// History returns every push/pull recorded locally, most recent first.
func (p *Publisher) History() ([]registry.ArtifactEntry, error) {
	return p.history.List()
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
