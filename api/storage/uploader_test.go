package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"slideConverter/api/config"
)

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	baseURL   string
	signErr   error
	putErr    error
	hideAfter int
}

func newMemoryStore(baseURL string) *memoryStore {
	return &memoryStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		baseURL: baseURL,
	}
}

func (m *memoryStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: %d != %d", len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hideAfter > 0 && len(m.objects) >= m.hideAfter {
		return nil
	}
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryStore) SignedURL(key string, ttl time.Duration) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return m.baseURL + "/" + key + "?sig=abc", nil
}

func (m *memoryStore) PublicURL(key string) string {
	return m.baseURL + "/" + key
}

func (m *memoryStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		data, ok := m.objects[strings.TrimPrefix(r.URL.Path, "/")]
		m.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Range") == "bytes=0-0" {
			w.WriteHeader(http.StatusPartialContent)
			w.Write(data[:1])
			return
		}
		w.Write(data)
	})
}

func writePages(t *testing.T, n int) []string {
	dir := t.TempDir()
	files := make([]string, n)
	for i := range files {
		files[i] = filepath.Join(dir, fmt.Sprintf("%03d.png", i+1))
		if err := os.WriteFile(files[i], []byte("\x89PNG fake page"), 0644); err != nil {
			t.Fatalf("Failed to write page: %v", err)
		}
	}
	return files
}

func testStorageConfig() config.StorageConfig {
	return config.StorageConfig{
		Bucket:       "slides",
		Region:       "us-east1",
		KeyPrefix:    "ppt2video",
		SignedURLTTL: time.Hour,
		CheckTimeout: 5 * time.Second,
	}
}

func TestUploader_UploadAll(t *testing.T) {
	store := newMemoryStore("")
	server := httptest.NewServer(store.handler())
	defer server.Close()
	store.baseURL = server.URL

	uploader := NewUploaderWithStore(testStorageConfig(), store, server.Client(), zaptest.NewLogger(t))
	files := writePages(t, 3)

	var progress []int
	urls, err := uploader.UploadAll(context.Background(), "task-1", files, func(done, total int) {
		if total != 3 {
			t.Errorf("Expected total 3, got %d", total)
		}
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("UploadAll failed: %v", err)
	}

	if len(urls) != 3 {
		t.Fatalf("Expected 3 urls, got %d", len(urls))
	}
	want := server.URL + "/ppt2video/task-1/002.png?sig=abc"
	if urls[1] != want {
		t.Errorf("Expected %s, got %s", want, urls[1])
	}
	if store.types["ppt2video/task-1/001.png"] != "image/png" {
		t.Errorf("Expected image/png content type, got %q", store.types["ppt2video/task-1/001.png"])
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("Unexpected progress: %v", progress)
	}
}

func TestUploader_FallsBackToPublicURL(t *testing.T) {
	store := newMemoryStore("")
	server := httptest.NewServer(store.handler())
	defer server.Close()
	store.baseURL = server.URL
	store.signErr = errors.New("no private key")

	uploader := NewUploaderWithStore(testStorageConfig(), store, server.Client(), zaptest.NewLogger(t))

	urls, err := uploader.UploadAll(context.Background(), "task-1", writePages(t, 1), nil)
	if err != nil {
		t.Fatalf("UploadAll failed: %v", err)
	}
	if urls[0] != server.URL+"/ppt2video/task-1/001.png" {
		t.Errorf("Expected public URL, got %s", urls[0])
	}
}

func TestUploader_UnreachableNamesFile(t *testing.T) {
	store := newMemoryStore("")
	server := httptest.NewServer(store.handler())
	defer server.Close()
	store.baseURL = server.URL
	store.hideAfter = 1

	uploader := NewUploaderWithStore(testStorageConfig(), store, server.Client(), zaptest.NewLogger(t))

	_, err := uploader.UploadAll(context.Background(), "task-1", writePages(t, 2), nil)
	if err == nil {
		t.Fatal("Expected reachability failure, got nil")
	}
	if !strings.Contains(err.Error(), "002.png") || !strings.Contains(err.Error(), "404") {
		t.Errorf("Expected error naming 002.png and the status, got %v", err)
	}
}

func TestUploader_PutFailure(t *testing.T) {
	store := newMemoryStore("http://127.0.0.1:0")
	store.putErr = errors.New("quota exceeded")

	uploader := NewUploaderWithStore(testStorageConfig(), store, nil, zaptest.NewLogger(t))

	_, err := uploader.UploadAll(context.Background(), "task-1", writePages(t, 1), nil)
	if err == nil || !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("Expected put failure, got %v", err)
	}
}

func TestUploader_MissingBucketFailsFast(t *testing.T) {
	cfg := testStorageConfig()
	cfg.Bucket = ""
	store := newMemoryStore("http://127.0.0.1:0")

	uploader := NewUploaderWithStore(cfg, store, nil, zaptest.NewLogger(t))

	_, err := uploader.UploadAll(context.Background(), "task-1", writePages(t, 2), nil)
	if !errors.Is(err, ErrMisconfigured) {
		t.Fatalf("Expected ErrMisconfigured, got %v", err)
	}
	if !strings.Contains(err.Error(), "STORAGE_BUCKET") {
		t.Errorf("Expected error to name the setting, got %v", err)
	}
	if len(store.objects) != 0 {
		t.Error("Nothing should be uploaded with a bad configuration")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.StorageConfig)
		wantErr bool
	}{
		{"valid", func(c *config.StorageConfig) {}, false},
		{"valid endpoint with port", func(c *config.StorageConfig) { c.Endpoint = "minio.local:9000" }, false},
		{"missing bucket", func(c *config.StorageConfig) { c.Bucket = " " }, true},
		{"bucket is url", func(c *config.StorageConfig) { c.Bucket = "https://slides.storage.googleapis.com" }, true},
		{"bucket with path", func(c *config.StorageConfig) { c.Bucket = "slides/pages" }, true},
		{"bucket bare protocol", func(c *config.StorageConfig) { c.Bucket = "https" }, true},
		{"bucket dangling suffix", func(c *config.StorageConfig) { c.Bucket = "slides.https" }, true},
		{"endpoint is url", func(c *config.StorageConfig) { c.Endpoint = "https://storage.example.com" }, true},
		{"endpoint bare protocol", func(c *config.StorageConfig) { c.Endpoint = "http" }, true},
		{"endpoint dangling suffix", func(c *config.StorageConfig) { c.Endpoint = "storage.example.com.http" }, true},
		{"region bare protocol", func(c *config.StorageConfig) { c.Region = "HTTPS" }, true},
		{"region dangling suffix", func(c *config.StorageConfig) { c.Region = "us-east1.https" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testStorageConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrMisconfigured) {
				t.Errorf("Expected ErrMisconfigured, got %v", err)
			}
		})
	}
}

func TestHost(t *testing.T) {
	cfg := config.StorageConfig{Bucket: "b"}
	if got := Host(cfg); got != "storage.googleapis.com" {
		t.Errorf("Expected global host, got %s", got)
	}
	cfg.Region = "europe-west3"
	if got := Host(cfg); got != "storage.europe-west3.rep.googleapis.com" {
		t.Errorf("Expected regional host, got %s", got)
	}
	cfg.Endpoint = "minio.local:9000"
	if got := Host(cfg); got != "minio.local:9000" {
		t.Errorf("Expected explicit endpoint, got %s", got)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, task, name string
		index              int
		want               string
	}{
		{"ppt2video", "t1", "001.png", 1, "ppt2video/t1/001.png"},
		{"/ppt2video/", "t1", "slide one?.png", 1, "ppt2video/t1/slide_one_.png"},
		{"", "t1", "002.png", 2, "t1/002.png"},
		{"p", "t1", "???", 7, "p/t1/page-007.png"},
		{"p", "t1", "", 3, "p/t1/page-003.png"},
		{"p", "t1", "幻灯片.png", 4, "p/t1/___.png"},
	}

	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.task, tt.name, tt.index); got != tt.want {
			t.Errorf("ObjectKey(%q, %q, %q) = %q, want %q", tt.prefix, tt.task, tt.name, got, tt.want)
		}
	}
}
