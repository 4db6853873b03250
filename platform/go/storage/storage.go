package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// ErrObjectNotFound indicates a missing blob.
var ErrObjectNotFound = errors.New("object not found")

// BlobStore reads and writes lease document bytes. The object key is a
// service-relative path such as "leases/<lease_id>/v3/agreement.pdf".
type BlobStore interface {
	Put(ctx context.Context, key string, contentType string, body io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DocumentObjectKey builds the canonical object key for a lease document.
func DocumentObjectKey(leaseID string, version int, filename string) (string, error) {
	leaseID = strings.TrimSpace(leaseID)
	if leaseID == "" {
		return "", fmt.Errorf("lease id is required")
	}
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("filename is required")
	}
	return fmt.Sprintf("leases/%s/v%d/%s", leaseID, version, name), nil
}

// GCSStore stores blobs in a Google Cloud Storage bucket under a fixed prefix.
type GCSStore struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStore returns a blob store backed by the given bucket. The prefix, if
// set, is prepended to every key.
func NewGCSStore(client *gcs.Client, bucket, prefix string) (*GCSStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	prefix = strings.Trim(prefix, "/")
	return &GCSStore{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSStore) objectPath(key string) string {
	key = strings.TrimPrefix(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *GCSStore) Put(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	writer := s.client.Bucket(s.bucket).Object(s.objectPath(key)).NewWriter(ctx)
	writer.ContentType = contentType

	written, err := io.Copy(writer, body)
	if err != nil {
		_ = writer.Close()
		return 0, fmt.Errorf("write object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("close object %s: %w", key, err)
	}
	return written, nil
}

func (s *GCSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	reader, err := s.client.Bucket(s.bucket).Object(s.objectPath(key)).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return reader, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(s.objectPath(key)).Delete(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// LocalStore stores blobs on the local filesystem, for development and tests.
type LocalStore struct {
	root string
}

// NewLocalStore returns a blob store rooted at the given directory.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) filePath(key string) (string, error) {
	cleaned := filepath.Clean(strings.TrimPrefix(key, "/"))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(s.root, cleaned), nil
}

func (s *LocalStore) Put(ctx context.Context, key, contentType string, body io.Reader) (int64, error) {
	_ = contentType // the filesystem backend has nowhere to record it

	path, err := s.filePath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create object %s: %w", key, err)
	}
	defer file.Close()

	written, err := io.Copy(file, body)
	if err != nil {
		return 0, fmt.Errorf("write object %s: %w", key, err)
	}
	return written, nil
}

func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.filePath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	return file, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := s.filePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

var (
	_ BlobStore = (*GCSStore)(nil)
	_ BlobStore = (*LocalStore)(nil)
)
