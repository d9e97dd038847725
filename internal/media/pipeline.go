package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/loja/storefront/internal/slug"
)

// Pipeline resizes an uploaded file and stores the result.
type Pipeline struct {
	transformer *Transformer
	uploader    *Uploader
	folder      string
	newID       func() string
}

// NewPipeline chains t and u, storing objects under folder
// (DefaultFolder when empty).
func NewPipeline(t *Transformer, u *Uploader, folder string) *Pipeline {
	if folder == "" {
		folder = DefaultFolder
	}
	return &Pipeline{transformer: t, uploader: u, folder: folder, newID: uuid.NewString}
}

// Process runs src through the Transformer and uploads the PNG. The object name
// is derived from filename plus a random id, so two uploads of "x.jpg" in the
// same month land on different paths.
func (p *Pipeline) Process(ctx context.Context, src io.Reader, filename string) (*Object, error) {
	buf, err := p.transformer.Transform(src)
	if err != nil {
		return nil, fmt.Errorf("transform image: %w", err)
	}

	obj, err := p.uploader.Upload(ctx, buf, p.objectName(filename), DefaultContentType, p.folder)
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}
	return obj, nil
}

// Discard removes a previously stored object, best effort.
func (p *Pipeline) Discard(ctx context.Context, objectPath string) bool {
	return p.uploader.TryDelete(ctx, objectPath)
}

func (p *Pipeline) objectName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	stem := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if stem == "" {
		stem = "image"
	}
	return stem + "-" + p.newID() + ".png"
}
