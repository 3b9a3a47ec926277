package blobstart

import (
	"context"
	"fmt"
	"time"
)

// Container is a handle on one remote container. Implementations delegate all
// network work to their SDK; none of them retry on their own.
type Container interface {
	// Name returns the container name.
	Name() string
	// URL returns the container URL as reported by the backend.
	URL() string
	// BlobURL returns the URL of the named blob inside the container.
	BlobURL(name string) string

	// Exists reports whether the container exists.
	Exists(ctx context.Context) (bool, error)
	// Create creates the container. Returns ErrContainerExists if it is already there.
	Create(ctx context.Context) error

	// UploadFile uploads the local file at path under the given blob name,
	// overwriting any existing blob.
	UploadFile(ctx context.Context, name, path string) error
	// DownloadFile writes the named blob to the local file at path and
	// returns the number of bytes written. Returns ErrNotFound for a missing blob.
	DownloadFile(ctx context.Context, name, path string) (int64, error)
	// List returns every blob in the container in backend order.
	List(ctx context.Context) ([]BlobInfo, error)
	// Delete removes the named blob. Returns ErrNotFound for a missing blob.
	Delete(ctx context.Context, name string) error
}

// BlobInfo is the listing entry for a single blob.
type BlobInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size_bytes"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

// Backend identifies a Container implementation.
type Backend string

const (
	BackendAzure      Backend = "azure"
	BackendS3         Backend = "s3"
	BackendFilesystem Backend = "filesystem"
)

func (b Backend) IsValid() bool {
	switch b {
	case BackendAzure, BackendS3, BackendFilesystem:
		return true
	default:
		return false
	}
}

func ParseBackend(s string) (Backend, error) {
	backend := Backend(s)
	if !backend.IsValid() {
		return "", fmt.Errorf("invalid backend: %s (valid backends: azure, s3, filesystem)", s)
	}
	return backend, nil
}
