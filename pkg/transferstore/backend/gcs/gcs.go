// Package gcs stores transfer records in a Google Cloud Storage bucket,
// for teams whose metadata deployments run in or alongside GCP.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/architect-io/mdpack/pkg/transferstore/backend"
)

func init() {
	backend.Register("gcs", NewBackend)
}

// Store is the raw GCS object surface. backend.NewBackend wraps it with
// the shared record semantics.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBackend creates a GCS-backed transfer record backend.
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	st, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewBackend(st), nil
}

// NewStore builds the raw GCS store. Required config: "bucket".
// Optional: "prefix", "credentials" (file path), "credentials_json", and
// "endpoint" for the emulator.
func NewStore(cfg map[string]string) (*Store, error) {
	bucketName, ok := cfg["bucket"]
	if !ok || bucketName == "" {
		return nil, fmt.Errorf("gcs backend requires 'bucket' configuration")
	}

	ctx := context.Background()
	var opts []option.ClientOption
	opts = append(opts, storage.WithJSONReads())

	if credentialsFile := cfg["credentials"]; credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if credentialsJSON := cfg["credentials_json"]; credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	if endpoint := cfg["endpoint"]; endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
		opts = append(opts, option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &Store{
		client: client,
		bucket: bucketName,
		prefix: cfg["prefix"],
	}, nil
}

func (s *Store) Type() string {
	return "gcs"
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectPath := s.fullKey(key)

	reader, err := s.client.Bucket(s.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record from gs://%s/%s: %w", s.bucket, objectPath, err)
	}

	return reader, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	objectPath := s.fullKey(key)

	writer := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write record to gs://%s/%s: %w", s.bucket, objectPath, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	objectPath := s.fullKey(key)

	err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return backend.ErrNotFound
		}
		return fmt.Errorf("failed to delete record from gs://%s/%s: %w", s.bucket, objectPath, err)
	}

	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.fullKey(prefix)

	var keys []string
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: fullPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		keys = append(keys, s.relKey(attrs.Name))
	}

	return keys, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	objectPath := s.fullKey(key)

	_, err := s.client.Bucket(s.bucket).Object(objectPath).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

// Close closes the GCS client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return path.Join(s.prefix, key)
}

func (s *Store) relKey(objectKey string) string {
	if s.prefix == "" {
		return objectKey
	}
	return strings.TrimPrefix(objectKey, s.prefix+"/")
}

var _ backend.ObjectStore = (*Store)(nil)
