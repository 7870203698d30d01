package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"slideConverter/api/config"
)

type ProgressFunc func(done, total int)

// Uploader pushes page images to object storage and returns a URL for each
// that has been confirmed reachable.
type Uploader struct {
	cfg    config.StorageConfig
	open   func(ctx context.Context) (ObjectStore, error)
	http   *http.Client
	logger *zap.Logger

	mu    sync.Mutex
	store ObjectStore
}

func NewUploader(cfg config.StorageConfig, logger *zap.Logger) *Uploader {
	return &Uploader{
		cfg: cfg,
		open: func(ctx context.Context) (ObjectStore, error) {
			return NewGCSStore(ctx, cfg)
		},
		http:   &http.Client{Timeout: cfg.CheckTimeout},
		logger: logger,
	}
}

// NewUploaderWithStore uses store instead of dialing the configured backend.
// The configuration is still validated on first use.
func NewUploaderWithStore(cfg config.StorageConfig, store ObjectStore, client *http.Client, logger *zap.Logger) *Uploader {
	if client == nil {
		client = &http.Client{Timeout: cfg.CheckTimeout}
	}
	return &Uploader{
		cfg: cfg,
		open: func(ctx context.Context) (ObjectStore, error) {
			if err := ValidateConfig(cfg); err != nil {
				return nil, err
			}
			return store, nil
		},
		http:   client,
		logger: logger,
	}
}

func (u *Uploader) objectStore(ctx context.Context) (ObjectStore, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.store != nil {
		return u.store, nil
	}
	store, err := u.open(ctx)
	if err != nil {
		u.logger.Error("Object storage unavailable", zap.Error(err))
		return nil, err
	}
	u.store = store
	return store, nil
}

// UploadAll uploads files in order under a key namespaced by taskID. Any
// failure aborts the whole batch.
func (u *Uploader) UploadAll(ctx context.Context, taskID string, files []string, progress ProgressFunc) ([]string, error) {
	store, err := u.objectStore(ctx)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(files))
	for i, file := range files {
		key := ObjectKey(u.cfg.KeyPrefix, taskID, filepath.Base(file), i+1)

		if err := u.put(ctx, store, file, key); err != nil {
			return nil, err
		}

		url := u.resolveURL(store, key)
		if err := u.checkReachable(ctx, url); err != nil {
			return nil, fmt.Errorf("uploaded file %s is not reachable: %w", filepath.Base(file), err)
		}
		urls = append(urls, url)

		u.logger.Debug("Page uploaded",
			zap.String("task_id", taskID),
			zap.String("key", key),
		)
		if progress != nil {
			progress(i+1, len(files))
		}
	}

	return urls, nil
}

func (u *Uploader) put(ctx context.Context, store ObjectStore, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(file), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(file), err)
	}

	if err := store.Put(ctx, key, f, info.Size(), contentType(file)); err != nil {
		return fmt.Errorf("upload %s: %w", filepath.Base(file), err)
	}
	return nil
}

func (u *Uploader) resolveURL(store ObjectStore, key string) string {
	signed, err := store.SignedURL(key, u.cfg.SignedURLTTL)
	if err == nil && signed != "" {
		return signed
	}
	u.logger.Debug("Signing failed, using public URL", zap.String("key", key), zap.Error(err))
	return store.PublicURL(key)
}

// checkReachable fetches the first byte of the object.
func (u *Uploader) checkReachable(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := u.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// ObjectKey builds prefix/taskID/name. Characters outside [A-Za-z0-9._-] are
// replaced, and a name with nothing usable left becomes page-NNN.png.
func ObjectKey(prefix, taskID, name string, index int) string {
	clean := SanitizeName(name)
	if clean == "" {
		clean = fmt.Sprintf("page-%03d.png", index)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join(SanitizeName(taskID), clean)
	}
	return path.Join(prefix, SanitizeName(taskID), clean)
}

func SanitizeName(name string) string {
	var b strings.Builder
	hasAlnum := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			hasAlnum = true
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if !hasAlnum {
		return ""
	}
	return strings.TrimLeft(b.String(), ".")
}

func contentType(file string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(file))); ct != "" {
		return ct
	}
	return "image/png"
}
