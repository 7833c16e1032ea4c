// Package storage persists uploaded document content. Two backends are
// provided: Amazon S3 for deployments and local disk for development.
// The backend is selected once from configuration at startup.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no content exists for a key.
var ErrNotFound = errors.New("stored object not found")

// Backend stores and retrieves document content by opaque key.
type Backend interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// NewKey builds a storage key for an uploaded file: the organization id
// as a prefix for isolation, a random id, and the original extension so
// content type survives round trips.
func NewKey(orgID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s%s", orgID, uuid.New().String(), ext)
}

// ContentTypeFor infers a MIME type from the file extension, falling
// back to application/octet-stream.
func ContentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
