// Package gcs provides a snapshot store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	gstorage "cloud.google.com/go/storage"

	"github.com/JakeFAU/pipelinewatch/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket      string
	Prefix      string
	ContentType string
}

// Store writes snapshots to a configured GCS bucket. An object upload only
// becomes visible when the writer is closed successfully, so readers never
// observe a partial snapshot.
type Store struct {
	client      *gstorage.Client
	bucket      string
	prefix      string
	contentType string
}

// New creates a GCS-backed store.
func New(client *gstorage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = "text/csv"
	}
	return &Store{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      strings.Trim(cfg.Prefix, "/"),
		contentType: contentType,
	}, nil
}

// Save uploads data, replacing any previous object of the same name.
func (s *Store) Save(ctx context.Context, objectName string, data []byte) error {
	key, err := objectKey(s.prefix, objectName)
	if err != nil {
		return err
	}
	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = s.contentType
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object %s: %w (close writer: %v)", key, err, closeErr)
		}
		return fmt.Errorf("write object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}

// Load downloads the object, returning storage.ErrNotFound when it is absent.
func (s *Store) Load(ctx context.Context, objectName string) ([]byte, error) {
	key, err := objectKey(s.prefix, objectName)
	if err != nil {
		return nil, err
	}
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", key, err)
	}
	defer func() { _ = reader.Close() }()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

func objectKey(prefix, objectName string) (string, error) {
	name := strings.TrimSpace(objectName)
	if name == "" {
		return "", fmt.Errorf("object name is required")
	}
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}
	if prefix == "" {
		return name, nil
	}
	return path.Join(prefix, name), nil
}
