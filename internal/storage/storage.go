package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/codearena/apiserver/config"
)

// ObjectStorage defines the object operations the bundle archive needs
// from a backend.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Bucket() string
}

const bundleContentType = "application/gzip"

// Storage archives test-case bundles in an object store. Keys are
// content addressed (sha256 of the archive), so identical uploads
// collapse into one object.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage over the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// NewFromConfig selects and connects the configured object storage
// backend. An empty backend name yields nil: bundle archival is
// optional and skipped when no store is configured.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "minio":
		backend, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		return NewStorage(backend), nil
	case "gcs":
		backend, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		return NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

// EnsureBucket ensures the archive bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// ArchiveBundle stores a bundle archive under its content-addressed
// key. It reports whether an upload actually happened: an object
// already present under the key has identical bytes and is reused.
func (s *Storage) ArchiveBundle(ctx context.Context, key string, r io.Reader, size int64) (bool, error) {
	exists, err := s.backend.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.backend.Put(ctx, key, r, size, bundleContentType); err != nil {
		return false, err
	}
	return true, nil
}

// OpenBundle opens a reader for an archived bundle.
func (s *Storage) OpenBundle(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// DeleteBundle removes an archived bundle.
func (s *Storage) DeleteBundle(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the archive bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
