package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/purchasing-api/internal/config"
	"go.uber.org/zap"
)

// ErrObjectNotFound is returned by Open when the stored object is missing.
var ErrObjectNotFound = errors.New("stored object not found")

// Object describes an uploaded file.
type Object struct {
	// Path is the storage-relative key used for Open and Delete.
	Path string
	// URL is the stable address persisted alongside invoice photos.
	URL  string
	Size int64
}

// Storage holds invoice photos and other uploaded evidence.
type Storage interface {
	Put(ctx context.Context, prefix, filename, contentType string, data io.Reader) (Object, error)
	Open(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
}

// NewStorage picks local disk or Azure Blob Storage from configuration.
func NewStorage(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Mode {
	case "local":
		return NewLocalStorage(cfg.LocalBasePath)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(ctx, cfg.CloudConnectionString, cfg.CloudContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// objectKey builds "<prefix>/<uuid><ext>" with a sanitized prefix.
func objectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	name := uuid.New().String() + ext
	prefix = strings.Trim(path.Clean("/"+filepath.ToSlash(prefix)), "/")
	if prefix == "" || prefix == "." {
		return name
	}
	return prefix + "/" + name
}

// LocalStorage stores files below a base directory.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (s *LocalStorage) Put(ctx context.Context, prefix, filename, contentType string, data io.Reader) (Object, error) {
	key := objectKey(prefix, filename)
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return Object{}, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return Object{}, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, data)
	if err != nil {
		os.Remove(fullPath)
		return Object{}, fmt.Errorf("failed to write file: %w", err)
	}

	return Object{Path: key, URL: "local://" + key, Size: size}, nil
}

func (s *LocalStorage) Open(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	file, err := os.Open(s.resolve(storagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (s *LocalStorage) Delete(ctx context.Context, storagePath string) error {
	if err := os.Remove(s.resolve(storagePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// resolve keeps lookups inside basePath.
func (s *LocalStorage) resolve(storagePath string) string {
	clean := path.Clean("/" + filepath.ToSlash(storagePath))
	return filepath.Join(s.basePath, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}
