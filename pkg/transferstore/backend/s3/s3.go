// Package s3 stores transfer records in an S3-compatible bucket, so a
// team's deploy/retrieve history is shared rather than stranded on the
// machine that ran the transfer. MinIO- and R2-style deployments are
// supported through the endpoint and force_path_style settings.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/architect-io/mdpack/pkg/transferstore/backend"
)

func init() {
	backend.Register("s3", NewBackend)
}

// Store is the raw S3 object surface. backend.NewBackend wraps it with
// the shared record semantics.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
	region string
}

// NewBackend creates an S3-backed transfer record backend.
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	st, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewBackend(st), nil
}

// NewStore builds the raw S3 store. Required config: "bucket". Optional:
// "region" (default us-east-1), "key" (object key prefix), "access_key"/
// "secret_key" for static credentials, "endpoint" and "force_path_style"
// for S3-compatible services.
func NewStore(cfg map[string]string) (*Store, error) {
	bucket, ok := cfg["bucket"]
	if !ok || bucket == "" {
		return nil, fmt.Errorf("s3 backend requires 'bucket' configuration")
	}

	region := cfg["region"]
	if region == "" {
		region = "us-east-1"
	}

	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(region))

	if accessKey := cfg["access_key"]; accessKey != "" {
		secretKey := cfg["secret_key"]
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg["force_path_style"] == "true"
		if endpoint := cfg["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &Store{
		client: client,
		bucket: bucket,
		prefix: cfg["key"],
		region: region,
	}, nil
}

func (s *Store) Type() string {
	return "s3"
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	fullKey := s.fullKey(key)

	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &fullKey,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record from s3://%s/%s: %w", s.bucket, fullKey, err)
	}

	return output.Body, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	fullKey := s.fullKey(key)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &fullKey,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to write record to s3://%s/%s: %w", s.bucket, fullKey, err)
	}

	return nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	fullKey := s.fullKey(key)

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &fullKey,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return backend.ErrNotFound
		}
		return fmt.Errorf("failed to delete record from s3://%s/%s: %w", s.bucket, fullKey, err)
	}

	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.fullKey(prefix)

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &fullPrefix,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, s.relKey(*obj.Key))
		}
	}

	return keys, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	fullKey := s.fullKey(key)

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &fullKey,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return false, nil
		}
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
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
