// Package storage defines the interface for object storage operations.
// Two backends are provided: Supabase Storage through the storage-go client, and MinIO for
// any S3-compatible provider (handy for local development).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Storage is the interface for uploading and removing objects.
type Storage interface {
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}

// ErrMissingConfig is returned by the constructors when a required setting is empty.
var ErrMissingConfig = errors.New("storage credentials not configured")

// requireSettings fails on the first empty value, naming its variable.
func requireSettings(settings ...[2]string) error {
	for _, s := range settings {
		if s[1] == "" {
			return fmt.Errorf("%w: %s is empty", ErrMissingConfig, s[0])
		}
	}
	return nil
}
