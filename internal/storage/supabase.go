package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
)

// SupabaseStorage implements Storage on top of the Supabase Storage API.
type SupabaseStorage struct {
	endpoint string
	key      string
	bucket   string
	timeout  time.Duration
	public   *storage_go.Client
}

// NewSupabaseStorage validates the credentials and returns a ready-to-use
// SupabaseStorage. endpoint is the storage API root, e.g.
// "https://<project>.supabase.co/storage/v1". A zero timeout leaves calls
// bounded only by the caller's context.
func NewSupabaseStorage(endpoint, secretKey, bucket string, timeout time.Duration) (*SupabaseStorage, error) {
	if err := requireSettings(
		[2]string{"STORAGE_BUCKET", bucket},
		[2]string{"STORAGE_ENDPOINT", endpoint},
		[2]string{"STORAGE_SECRET_KEY", secretKey},
	); err != nil {
		return nil, err
	}
	endpoint = strings.TrimRight(endpoint, "/")
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse STORAGE_ENDPOINT: %w", err)
	}

	s := &SupabaseStorage{
		endpoint: endpoint,
		key:      secretKey,
		bucket:   bucket,
		timeout:  timeout,
	}
	s.public = s.client()
	return s, nil
}

// client returns a fresh API client. Upload options are stored on the
// client's shared headers, so clients are never reused across calls.
func (s *SupabaseStorage) client() *storage_go.Client {
	return storage_go.NewClient(s.endpoint, s.key, map[string]string{"apikey": s.key})
}

// Upload stores the object, overwriting any existing object at key.
func (s *SupabaseStorage) Upload(ctx context.Context, key string, reader io.Reader, _ int64, contentType string) error {
	upsert := true
	err := s.call(ctx, func(c *storage_go.Client) error {
		_, err := c.UploadFile(s.bucket, key, reader, storage_go.FileOptions{
			ContentType: &contentType,
			Upsert:      &upsert,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("upload object %q: %w", key, err)
	}
	return nil
}

// Delete removes the object at key from the bucket.
func (s *SupabaseStorage) Delete(ctx context.Context, key string) error {
	err := s.call(ctx, func(c *storage_go.Client) error {
		_, err := c.RemoveFile(s.bucket, []string{key})
		return err
	})
	if err != nil {
		return fmt.Errorf("delete object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns "{endpoint}/object/public/{bucket}/{key}".
func (s *SupabaseStorage) PublicURL(key string) string {
	return s.public.GetPublicUrl(s.bucket, key).SignedURL
}

// call runs fn against a new client and returns when it finishes or ctx
// ends, whichever comes first. The client takes no context, so an abandoned
// request completes in the background.
func (s *SupabaseStorage) call(ctx context.Context, fn func(*storage_go.Client) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- fn(s.client()) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
