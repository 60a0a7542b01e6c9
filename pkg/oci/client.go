// Package oci distributes converted metadata packages through OCI
// registries. A package travels as a single-layer artifact whose layer
// is the same zip the converter's ZipWriter produces for a deploy, so
// push/pull and deploy share one interchange format; the package config
// (API version, source hash, build time) rides on the manifest as
// annotations where Client.PullConfig can read it without downloading
// the layer.
package oci

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"
)

// Manifest annotation keys carrying the package metadata.
const (
	AnnotationArtifactType = "vnd.mdpack.artifact-type"
	AnnotationConfig       = "vnd.mdpack.config"
)

// Client provides OCI registry operations for metadata package artifacts.
type Client struct {
	auth authn.Keychain
}

// NewClient creates a new OCI client using the ambient docker keychain.
func NewClient() *Client {
	return &Client{
		auth: authn.DefaultKeychain,
	}
}

// Push uploads the artifact to its Reference: each layer becomes a
// zip-media-type blob, and the artifact's config document is attached as
// a manifest annotation.
func (c *Client) Push(ctx context.Context, artifact *Artifact) error {
	ref, err := name.ParseReference(artifact.Reference)
	if err != nil {
		return fmt.Errorf("invalid reference: %w", err)
	}

	img := mutate.ConfigMediaType(empty.Image, types.MediaType(MediaTypeMetadataPackageConfig))
	for _, layer := range artifact.Layers {
		l := static.NewLayer(layer.Data, types.MediaType(MediaTypeMetadataPackageLayer))
		img, err = mutate.AppendLayers(img, l)
		if err != nil {
			return fmt.Errorf("failed to append layer: %w", err)
		}
	}

	annotations := map[string]string{
		AnnotationArtifactType: string(artifact.Type),
	}
	if len(artifact.Config) > 0 {
		annotations[AnnotationConfig] = string(artifact.Config)
	}
	for k, v := range artifact.Annotations {
		annotations[k] = v
	}
	img = mutate.Annotations(img, annotations).(v1.Image)

	if err := remote.Write(ref, img, remote.WithAuthFromKeychain(c.auth), remote.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to push: %w", err)
	}

	return nil
}

// Pull downloads reference and unpacks each zip layer into destDir,
// reproducing the converted package directory the artifact was built
// from.
func (c *Client) Pull(ctx context.Context, reference string, destDir string) error {
	ref, err := name.ParseReference(reference)
	if err != nil {
		return fmt.Errorf("invalid reference: %w", err)
	}

	img, err := remote.Image(ref, remote.WithAuthFromKeychain(c.auth), remote.WithContext(ctx))
	if err != nil {
		return registryError(reference, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("failed to get layers: %w", err)
	}

	for _, layer := range layers {
		rc, err := layer.Uncompressed()
		if err != nil {
			return fmt.Errorf("failed to open layer: %w", err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read layer: %w", err)
		}

		if err := extractZip(data, destDir); err != nil {
			return fmt.Errorf("failed to extract layer: %w", err)
		}
	}

	return nil
}

// PullConfig fetches only the package config document from reference's
// manifest annotations, without downloading any layer.
func (c *Client) PullConfig(ctx context.Context, reference string) ([]byte, error) {
	ref, err := name.ParseReference(reference)
	if err != nil {
		return nil, fmt.Errorf("invalid reference: %w", err)
	}

	img, err := remote.Image(ref, remote.WithAuthFromKeychain(c.auth), remote.WithContext(ctx))
	if err != nil {
		return nil, registryError(reference, err)
	}

	manifest, err := img.Manifest()
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}

	config, ok := manifest.Annotations[AnnotationConfig]
	if !ok {
		return nil, fmt.Errorf("%s carries no package config annotation", reference)
	}
	return []byte(config), nil
}

// Exists checks if an artifact exists in the registry.
func (c *Client) Exists(ctx context.Context, reference string) (bool, error) {
	ref, err := name.ParseReference(reference)
	if err != nil {
		return false, fmt.Errorf("invalid reference: %w", err)
	}

	_, err = remote.Head(ref, remote.WithAuthFromKeychain(c.auth), remote.WithContext(ctx))
	if err != nil {
		return false, nil
	}

	return true, nil
}

// Tag adds a new tag to an existing artifact.
func (c *Client) Tag(ctx context.Context, srcRef, destRef string) error {
	src, err := name.ParseReference(srcRef)
	if err != nil {
		return fmt.Errorf("invalid source reference: %w", err)
	}

	dest, err := name.ParseReference(destRef)
	if err != nil {
		return fmt.Errorf("invalid destination reference: %w", err)
	}

	img, err := remote.Image(src, remote.WithAuthFromKeychain(c.auth), remote.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to get source image: %w", err)
	}

	if err := remote.Write(dest, img, remote.WithAuthFromKeychain(c.auth), remote.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to tag: %w", err)
	}

	return nil
}

// BuildFromDirectory zips a converted package directory (the output of
// `mdpack convert`) into a single-layer artifact.
func (c *Client) BuildFromDirectory(ctx context.Context, dir string, artifactType ArtifactType, config interface{}) (*Artifact, error) {
	zipData, err := buildZip(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to zip %s: %w", dir, err)
	}
	return c.BuildFromZip(zipData, artifactType, config)
}

// BuildFromZip wraps an already-built package zip (e.g. a ZipWriter's
// Finalize output) as a single-layer artifact, skipping the directory
// walk entirely.
func (c *Client) BuildFromZip(zipData []byte, artifactType ArtifactType, config interface{}) (*Artifact, error) {
	configData, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	return &Artifact{
		Type:   artifactType,
		Config: configData,
		Layers: []Layer{{
			MediaType: MediaTypeMetadataPackageLayer,
			Data:      zipData,
		}},
	}, nil
}

// registryError translates OCI registry errors into user-friendly messages.
func registryError(reference string, err error) error {
	var transportErr *transport.Error
	if errors.As(err, &transportErr) {
		for _, diagnostic := range transportErr.Errors {
			switch diagnostic.Code {
			case transport.ManifestUnknownErrorCode:
				return fmt.Errorf("package not found: %s does not exist or the tag is invalid", reference)
			case transport.NameUnknownErrorCode:
				return fmt.Errorf("repository not found: %s does not exist in the registry", reference)
			case transport.UnauthorizedErrorCode:
				return fmt.Errorf("authentication required: you may need to log in to access %s", reference)
			case transport.DeniedErrorCode:
				return fmt.Errorf("access denied: you don't have permission to pull %s", reference)
			}
		}

		if transportErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("package not found: %s does not exist in the registry", reference)
		}
	}

	return fmt.Errorf("failed to pull: %w", err)
}

// buildZip archives every regular file under srcDir, paths relative to
// srcDir and slash-separated, in sorted order for deterministic digests.
// Hidden files are skipped: a converted package directory holds only
// package.xml and component files, so dotfiles are editor or VCS
// droppings, not package content.
func buildZip(srcDir string) ([]byte, error) {
	var relPaths []string
	err := filepath.Walk(srcDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if strings.HasPrefix(filepath.Base(rel), ".") {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			relPaths = append(relPaths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(relPaths)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, rel := range relPaths {
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", rel, err)
		}
		f, err := os.Open(filepath.Join(srcDir, rel))
		if err != nil {
			return nil, err
		}
		_, copyErr := io.Copy(fw, f)
		f.Close()
		if copyErr != nil {
			return nil, fmt.Errorf("failed to archive %s: %w", rel, copyErr)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// extractZip unpacks a package zip into destDir, rejecting entries that
// would escape it. A pulled layer is remote input and gets the same
// containment treatment as a retrieve payload.
func extractZip(data []byte, destDir string) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to read package zip: %w", err)
	}

	for _, f := range zr.File {
		target := filepath.Join(destDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("invalid zip path: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("failed to create parent directory: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open zip entry: %w", err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			rc.Close()
			return fmt.Errorf("failed to create file: %w", err)
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return fmt.Errorf("failed to write file: %w", copyErr)
		}
	}

	return nil
}
