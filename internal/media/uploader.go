package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loja/storefront/internal/storage"
)

// Upload defaults.
const (
	DefaultFolder      = "produto_imagens"
	DefaultContentType = "image/png"
)

// Object is an uploaded object: its key inside the bucket and its public URL.
type Object struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Uploader places byte payloads in object storage under date-keyed paths.
type Uploader struct {
	store storage.Storage
	log   *zap.Logger
	now   func() time.Time
}

// UploaderOption customizes an Uploader.
type UploaderOption func(*Uploader)

// WithClock replaces time.Now when computing object paths.
func WithClock(now func() time.Time) UploaderOption {
	return func(u *Uploader) { u.now = now }
}

// NewUploader wraps store. Credential checks happen in the storage constructors,
// so a non-nil store is always usable.
func NewUploader(store storage.Storage, log *zap.Logger, opts ...UploaderOption) *Uploader {
	u := &Uploader{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// ObjectPath returns "{folder}/{YYYY}/{MM}/{filename}" for the date of at.
func ObjectPath(folder, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s", folder, at.Format("2006/01"), filename)
}

// NormalizeFilename swaps the extension for ".png" unless the name already
// ends in ".png" in any letter case.
func NormalizeFilename(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".png") {
		return name
	}
	if ext := path.Ext(name); ext != name {
		name = strings.TrimSuffix(name, ext)
	}
	return name + ".png"
}

// Upload stores data as folder/YYYY/MM/filename and returns the stored object.
// filename is forced to a .png extension whatever contentType says. Empty
// contentType and folder fall back to DefaultContentType and DefaultFolder.
// Seekable readers are rewound first. An existing object at the same path is
// overwritten.
func (u *Uploader) Upload(ctx context.Context, data io.Reader, filename, contentType, folder string) (*Object, error) {
	if contentType == "" {
		contentType = DefaultContentType
	}
	if folder == "" {
		folder = DefaultFolder
	}

	if s, ok := data.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind upload data: %w", err)
		}
	}
	payload, err := io.ReadAll(data)
	if err != nil {
		return nil, fmt.Errorf("read upload data: %w", err)
	}

	key := ObjectPath(folder, NormalizeFilename(filename), u.now())
	if err := u.store.Upload(ctx, key, bytes.NewReader(payload), int64(len(payload)), contentType); err != nil {
		u.log.Error("object upload failed", zap.String("path", key), zap.Error(err))
		return nil, err
	}

	obj := &Object{Path: key, URL: u.store.PublicURL(key)}
	u.log.Info("object uploaded", zap.String("path", key), zap.Int("bytes", len(payload)))
	return obj, nil
}

// Delete removes the object stored at objectPath (a path returned by Upload,
// not the public URL).
func (u *Uploader) Delete(ctx context.Context, objectPath string) error {
	if err := u.store.Delete(ctx, objectPath); err != nil {
		return err
	}
	u.log.Info("object removed", zap.String("path", objectPath))
	return nil
}

// TryDelete is Delete for cleanup paths: failures are logged and reported as false.
func (u *Uploader) TryDelete(ctx context.Context, objectPath string) bool {
	if err := u.Delete(ctx, objectPath); err != nil {
		u.log.Warn("object removal failed", zap.String("path", objectPath), zap.Error(err))
		return false
	}
	return true
}
