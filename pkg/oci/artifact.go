package oci

import (
	"strings"
)

// ArtifactType identifies the type of OCI artifact. This domain only ever
// distributes one kind of payload: a converted metadata package zip.
type ArtifactType string

const (
	ArtifactTypeMetadataPackage ArtifactType = "metadata-package"
)

// MediaTypes for mdpack artifacts.
const (
	MediaTypeMetadataPackageConfig = "application/vnd.mdpack.metadata-package.config.v1+json"
	MediaTypeMetadataPackageLayer  = "application/vnd.mdpack.metadata-package.layer.v1.zip"
)

// Artifact represents an OCI artifact.
type Artifact struct {
	Type        ArtifactType
	Reference   string // OCI reference (repo:tag)
	Digest      string // Content digest
	Config      []byte // Artifact configuration
	Layers      []Layer
	Annotations map[string]string
}

// Layer represents a layer in the artifact.
type Layer struct {
	MediaType   string
	Digest      string
	Size        int64
	Data        []byte
	Annotations map[string]string
}

// Reference represents a parsed OCI reference.
type Reference struct {
	Registry   string // e.g., "docker.io", "ghcr.io"
	Repository string // e.g., "library/nginx", "myorg/myapp"
	Tag        string // e.g., "latest", "v1.0.0"
	Digest     string // e.g., "sha256:abc123..."
}

// ParseReference parses an OCI reference string.
func ParseReference(ref string) (*Reference, error) {
	result := &Reference{}

	// Check for digest
	if idx := strings.Index(ref, "@"); idx != -1 {
		result.Digest = ref[idx+1:]
		ref = ref[:idx]
	}

	// Check for tag
	if idx := strings.LastIndex(ref, ":"); idx != -1 {
		// Make sure this isn't a port number
		afterColon := ref[idx+1:]
		if !strings.Contains(afterColon, "/") {
			result.Tag = afterColon
			ref = ref[:idx]
		}
	}

	// Default tag
	if result.Tag == "" && result.Digest == "" {
		result.Tag = "latest"
	}

	// Parse registry and repository
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) == 1 {
		// No registry, assume docker.io
		result.Registry = "docker.io"
		result.Repository = "library/" + parts[0]
	} else if strings.Contains(parts[0], ".") || strings.Contains(parts[0], ":") || parts[0] == "localhost" {
		// Has registry
		result.Registry = parts[0]
		result.Repository = parts[1]
	} else {
		// No registry, assume docker.io
		result.Registry = "docker.io"
		result.Repository = ref
	}

	return result, nil
}

// String returns the full reference string.
func (r *Reference) String() string {
	result := r.Registry + "/" + r.Repository
	if r.Tag != "" {
		result += ":" + r.Tag
	}
	if r.Digest != "" {
		result += "@" + r.Digest
	}
	return result
}

// MetadataPackageConfig is the configuration stored alongside a converted
// metadata package artifact.
type MetadataPackageConfig struct {
	SchemaVersion string `json:"schemaVersion"`
	APIVersion    string `json:"apiVersion,omitempty"`
	SourceHash    string `json:"sourceHash,omitempty"`
	BuildTime     string `json:"buildTime,omitempty"`
}
