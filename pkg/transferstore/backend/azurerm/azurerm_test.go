package azurerm

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/architect-io/mdpack/pkg/transferstore/backend"
)

// mockAzureBlobServer simulates just enough of the Azure Blob API for
// the Store's Get/Put/Del/Keys/Exists calls.
type mockAzureBlobServer struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func newMockAzureBlobServer() *mockAzureBlobServer {
	return &mockAzureBlobServer{blobs: make(map[string][]byte)}
}

func (m *mockAzureBlobServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 {
		if r.URL.Query().Get("restype") == "container" && r.URL.Query().Get("comp") == "list" {
			m.handleListBlobs(w, r, parts[0])
			return
		}
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	key := parts[0] + "/" + parts[1]

	switch r.Method {
	case http.MethodGet:
		data, ok := m.blobs[key]
		if !ok {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			http.Error(w, "BlobNotFound", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		m.blobs[key] = data
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if _, ok := m.blobs[key]; !ok {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			http.Error(w, "BlobNotFound", http.StatusNotFound)
			return
		}
		delete(m.blobs, key)
		w.WriteHeader(http.StatusAccepted)
	case http.MethodHead:
		if _, ok := m.blobs[key]; !ok {
			w.Header().Set("x-ms-error-code", "BlobNotFound")
			http.Error(w, "BlobNotFound", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m *mockAzureBlobServer) handleListBlobs(w http.ResponseWriter, r *http.Request, containerName string) {
	prefix := r.URL.Query().Get("prefix")

	var names []string
	for key := range m.blobs {
		if strings.HasPrefix(key, containerName+"/") {
			blobName := strings.TrimPrefix(key, containerName+"/")
			if prefix == "" || strings.HasPrefix(blobName, prefix) {
				names = append(names, blobName)
			}
		}
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)

	response := `<?xml version="1.0" encoding="utf-8"?><EnumerationResults><Blobs>`
	for _, name := range names {
		response += `<Blob><Name>` + name + `</Name></Blob>`
	}
	response += `</Blobs></EnumerationResults>`
	_, _ = w.Write([]byte(response))
}

func testStore(t *testing.T, extra map[string]string) *Store {
	t.Helper()
	mock := newMockAzureBlobServer()
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	cfg := map[string]string{
		"storage_account_name": "testaccount",
		"container_name":       "testcontainer",
		"endpoint":             server.URL + "/",
		"connection_string":    "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=" + server.URL + "/;",
	}
	for k, v := range extra {
		cfg[k] = v
	}

	st, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return st
}

func TestNewStore_ConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]string
		errorMsg string
	}{
		{"empty config", map[string]string{}, "storage_account_name"},
		{"missing container", map[string]string{"storage_account_name": "test"}, "container_name"},
		{"empty storage account", map[string]string{"storage_account_name": "", "container_name": "test"}, "storage_account_name"},
		{"empty container", map[string]string{"storage_account_name": "test", "container_name": ""}, "container_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStore(tt.config)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestStore_Type(t *testing.T) {
	st := testStore(t, nil)
	if st.Type() != "azurerm" {
		t.Errorf("expected type 'azurerm', got %q", st.Type())
	}
}

func TestStore_KeyPrefixing(t *testing.T) {
	st := &Store{prefix: "mdpack"}
	if got := st.fullKey("transfers/abc.json"); got != "mdpack/transfers/abc.json" {
		t.Errorf("fullKey: got %q", got)
	}
	if got := st.relKey("mdpack/transfers/abc.json"); got != "transfers/abc.json" {
		t.Errorf("relKey: got %q", got)
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	st := testStore(t, nil)
	ctx := context.Background()

	record := []byte(`{"id":"abc","kind":"deploy"}`)
	if err := st.Put(ctx, "transfers/abc.json", record); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	rc, err := st.Get(ctx, "transfers/abc.json")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()

	if !bytes.Equal(data, record) {
		t.Errorf("expected %s, got %s", record, data)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	st := testStore(t, nil)
	_, err := st.Get(context.Background(), "transfers/missing.json")
	if err != backend.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DelNotFound(t *testing.T) {
	st := testStore(t, nil)
	err := st.Del(context.Background(), "transfers/missing.json")
	if err != backend.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBackend_DeleteIsIdempotentThroughStore(t *testing.T) {
	st := testStore(t, nil)
	b := backend.NewBackend(st)
	ctx := context.Background()

	if err := b.Delete(ctx, "transfers/missing.json"); err != nil {
		t.Errorf("delete of a missing record should be a no-op, got %v", err)
	}
}

func TestBackend_LockConflictThroughStore(t *testing.T) {
	st := testStore(t, nil)
	b := backend.NewBackend(st)
	ctx := context.Background()

	lock, err := b.Lock(ctx, "transfers/abc", backend.LockInfo{Who: "tester", Operation: "save"})
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}

	if _, err := b.Lock(ctx, "transfers/abc", backend.LockInfo{Who: "intruder"}); err == nil {
		t.Error("expected conflicting lock to fail")
	}

	if err := lock.Unlock(ctx); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
}
