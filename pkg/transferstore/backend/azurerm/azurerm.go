// Package azurerm stores transfer records in an Azure Blob Storage
// container, for teams whose metadata deployments run alongside Azure.
package azurerm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/architect-io/mdpack/pkg/transferstore/backend"
)

func init() {
	backend.Register("azurerm", NewBackend)
}

// Store is the raw Azure blob surface. backend.NewBackend wraps it with
// the shared record semantics.
type Store struct {
	client        *azblob.Client
	containerName string
	prefix        string
}

// NewBackend creates an Azure-blob-backed transfer record backend.
func NewBackend(cfg map[string]string) (backend.Backend, error) {
	st, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewBackend(st), nil
}

// NewStore builds the raw Azure store. Required config:
// "storage_account_name" and "container_name". Authentication is taken
// from, in order: "access_key", "sas_token", "connection_string", or the
// ambient DefaultAzureCredential. "endpoint" targets Azurite.
func NewStore(cfg map[string]string) (*Store, error) {
	storageAccount, ok := cfg["storage_account_name"]
	if !ok || storageAccount == "" {
		return nil, fmt.Errorf("azurerm backend requires 'storage_account_name' configuration")
	}

	containerName, ok := cfg["container_name"]
	if !ok || containerName == "" {
		return nil, fmt.Errorf("azurerm backend requires 'container_name' configuration")
	}

	var client *azblob.Client
	var err error

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", storageAccount)
	if endpoint := cfg["endpoint"]; endpoint != "" {
		serviceURL = endpoint
	}

	if accessKey := cfg["access_key"]; accessKey != "" {
		cred, err := azblob.NewSharedKeyCredential(storageAccount, accessKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client with shared key: %w", err)
		}
	} else if sasToken := cfg["sas_token"]; sasToken != "" {
		var serviceURLWithSAS string
		if !strings.Contains(serviceURL, "?") {
			serviceURLWithSAS = serviceURL + "?" + strings.TrimPrefix(sasToken, "?")
		} else {
			serviceURLWithSAS = serviceURL + "&" + strings.TrimPrefix(sasToken, "?")
		}
		client, err = azblob.NewClientWithNoCredential(serviceURLWithSAS, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client with SAS token: %w", err)
		}
	} else if connectionString := cfg["connection_string"]; connectionString != "" {
		client, err = azblob.NewClientFromConnectionString(connectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client from connection string: %w", err)
		}
	} else {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default Azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure client: %w", err)
		}
	}

	return &Store{
		client:        client,
		containerName: containerName,
		prefix:        cfg["key"],
	}, nil
}

func (s *Store) Type() string {
	return "azurerm"
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	blobPath := s.fullKey(key)

	resp, err := s.client.DownloadStream(ctx, s.containerName, blobPath, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read record from azure://%s/%s: %w", s.containerName, blobPath, err)
	}

	return resp.Body, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	blobPath := s.fullKey(key)

	contentType := "application/json"
	_, err := s.client.UploadBuffer(ctx, s.containerName, blobPath, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: &contentType,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write record to azure://%s/%s: %w", s.containerName, blobPath, err)
	}

	return nil
}

func (s *Store) Del(ctx context.Context, key string) error {
	blobPath := s.fullKey(key)

	_, err := s.client.DeleteBlob(ctx, s.containerName, blobPath, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return backend.ErrNotFound
		}
		return fmt.Errorf("failed to delete record from azure://%s/%s: %w", s.containerName, blobPath, err)
	}

	return nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.fullKey(prefix)

	var keys []string
	pager := s.client.NewListBlobsFlatPager(s.containerName, &container.ListBlobsFlatOptions{
		Prefix: &fullPrefix,
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, s.relKey(*item.Name))
			}
		}
	}

	return keys, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	blobPath := s.fullKey(key)

	_, err := s.client.ServiceClient().NewContainerClient(s.containerName).NewBlobClient(blobPath).GetProperties(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return false, nil
		}
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
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

func (s *Store) relKey(blobName string) string {
	if s.prefix == "" {
		return blobName
	}
	return strings.TrimPrefix(blobName, s.prefix+"/")
}

var _ backend.ObjectStore = (*Store)(nil)
