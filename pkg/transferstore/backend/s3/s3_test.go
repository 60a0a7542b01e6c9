package s3

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

// mockS3Server simulates just enough of the S3 API for the Store's
// Get/Put/Del/Keys/Exists calls.
type mockS3Server struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func newMockS3Server() *mockS3Server {
	return &mockS3Server{objects: make(map[string][]byte)}
}

func (m *mockS3Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 1 || parts[0] == "" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	bucket := parts[0]
	key := ""
	if len(parts) > 1 {
		key = parts[1]
	}

	if key == "" && r.URL.Query().Get("list-type") == "2" {
		m.handleListObjects(w, r, bucket)
		return
	}

	fullKey := bucket + "/" + key

	switch r.Method {
	case http.MethodGet:
		data, ok := m.objects[fullKey]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code></Error>`))
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
		m.objects[fullKey] = data
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		delete(m.objects, fullKey)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodHead:
		if _, ok := m.objects[fullKey]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m *mockS3Server) handleListObjects(w http.ResponseWriter, r *http.Request, bucket string) {
	prefix := r.URL.Query().Get("prefix")

	var keys []string
	for key := range m.objects {
		if strings.HasPrefix(key, bucket+"/") {
			objectKey := strings.TrimPrefix(key, bucket+"/")
			if prefix == "" || strings.HasPrefix(objectKey, prefix) {
				keys = append(keys, objectKey)
			}
		}
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)

	response := `<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><Name>` + bucket + `</Name>`
	for _, key := range keys {
		response += `<Contents><Key>` + key + `</Key></Contents>`
	}
	response += `</ListBucketResult>`
	_, _ = w.Write([]byte(response))
}

func testStore(t *testing.T, extra map[string]string) (*Store, *mockS3Server) {
	t.Helper()
	mock := newMockS3Server()
	server := httptest.NewServer(mock)
	t.Cleanup(server.Close)

	cfg := map[string]string{
		"bucket":           "test-bucket",
		"endpoint":         server.URL,
		"access_key":       "test-key",
		"secret_key":       "test-secret",
		"force_path_style": "true",
	}
	for k, v := range extra {
		cfg[k] = v
	}

	st, err := NewStore(cfg)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return st, mock
}

func TestNewStore_MissingBucket(t *testing.T) {
	_, err := NewStore(map[string]string{"region": "us-east-1"})
	if err == nil || !strings.Contains(err.Error(), "bucket") {
		t.Errorf("expected a bucket-configuration error, got %v", err)
	}
}

func TestNewStore_DefaultRegion(t *testing.T) {
	st, _ := testStore(t, nil)
	if st.region != "us-east-1" {
		t.Errorf("expected default region 'us-east-1', got %q", st.region)
	}
	if st.Type() != "s3" {
		t.Errorf("expected type 's3', got %q", st.Type())
	}
}

func TestStore_KeyPrefixing(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		key      string
		expected string
	}{
		{"no prefix", "", "transfers/abc.json", "transfers/abc.json"},
		{"with prefix", "mdpack", "transfers/abc.json", "mdpack/transfers/abc.json"},
		{"nested prefix", "team/dev", "transfers/abc.json", "team/dev/transfers/abc.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &Store{prefix: tt.prefix}
			if got := st.fullKey(tt.key); got != tt.expected {
				t.Errorf("fullKey: expected %q, got %q", tt.expected, got)
			}
			if got := st.relKey(tt.expected); got != tt.key {
				t.Errorf("relKey: expected %q, got %q", tt.key, got)
			}
		})
	}
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	st, _ := testStore(t, nil)
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
	st, _ := testStore(t, nil)
	_, err := st.Get(context.Background(), "transfers/missing.json")
	if err != backend.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_KeysWithPrefix(t *testing.T) {
	st, _ := testStore(t, map[string]string{"key": "mdpack"})
	ctx := context.Background()

	_ = st.Put(ctx, "transfers/a.json", []byte("{}"))
	_ = st.Put(ctx, "transfers/b.json", []byte("{}"))

	keys, err := st.Keys(ctx, "transfers/")
	if err != nil {
		t.Fatalf("keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(keys), keys)
	}
	for _, k := range keys {
		if strings.HasPrefix(k, "mdpack/") {
			t.Errorf("expected prefix-relative key, got %q", k)
		}
	}
}

func TestStore_Exists(t *testing.T) {
	st, _ := testStore(t, nil)
	ctx := context.Background()

	exists, err := st.Exists(ctx, "transfers/abc.json")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if exists {
		t.Error("expected record to not exist yet")
	}

	_ = st.Put(ctx, "transfers/abc.json", []byte("{}"))
	exists, err = st.Exists(ctx, "transfers/abc.json")
	if err != nil {
		t.Fatalf("exists failed: %v", err)
	}
	if !exists {
		t.Error("expected record to exist after put")
	}
}

func TestBackend_LockConflictThroughStore(t *testing.T) {
	st, _ := testStore(t, nil)
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
	if _, err := b.Lock(ctx, "transfers/abc", backend.LockInfo{Who: "tester"}); err != nil {
		t.Errorf("relock after unlock failed: %v", err)
	}
}
