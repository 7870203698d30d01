package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"slideConverter/api/config"
)

// ObjectStore is the subset of an object storage service the uploader needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	SignedURL(key string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

type GCSStore struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
	name   string
	host   string
}

func NewGCSStore(ctx context.Context, cfg config.StorageConfig) (*GCSStore, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	host := Host(cfg)
	var opts []option.ClientOption
	if host != defaultHost {
		opts = append(opts, option.WithEndpoint("https://"+host+"/storage/v1/"))
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		host:   host,
	}, nil
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = contentType
	// Page images are small; send each in a single request.
	if size > 0 && size < googleapi.DefaultUploadChunkSize {
		w.ChunkSize = 0
	}

	n, err := io.Copy(w, r)
	if err != nil {
		w.Close()
		return fmt.Errorf("copy to gs://%s/%s failed: %w", s.name, key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s failed: %w", s.name, key, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("short write to gs://%s/%s: wrote %d of %d bytes", s.name, key, n, size)
	}
	return nil
}

func (s *GCSStore) SignedURL(key string, ttl time.Duration) (string, error) {
	return s.bucket.SignedURL(key, &gcs.SignedURLOptions{
		Method:   "GET",
		Expires:  time.Now().Add(ttl),
		Scheme:   gcs.SigningSchemeV4,
		Hostname: s.host,
	})
}

func (s *GCSStore) PublicURL(key string) string {
	return (&url.URL{
		Scheme: "https",
		Host:   s.host,
		Path:   "/" + s.name + "/" + strings.TrimPrefix(key, "/"),
	}).String()
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
