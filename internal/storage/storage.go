package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrObjectNotFound - объекта с таким ключом нет
var ErrObjectNotFound = errors.New("object not found")

// Storage defines the interface for document object storage
type Storage interface {
	// Save stores an object and returns the number of bytes written
	Save(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (int64, error)

	// Get opens an object for reading
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object; a missing object is not an error
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)

	// GetSignedURL returns a temporary download URL
	GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config holds storage configuration
type Config struct {
	Type         string // local, s3
	BasePath     string // For local storage
	BaseURL      string // Public URL base
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	Endpoint     string // MinIO, R2 or custom S3
	UsePathStyle bool
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case "local", "":
		return NewLocalStorage(cfg)
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
