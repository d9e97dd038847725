package product

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/loja/storefront/internal/media"
	"github.com/loja/storefront/internal/slug"
)

// PageSize is the number of products per listing page.
const PageSize = 10

// Store is the persistence the Service relies on; *Repository implements it.
type Store interface {
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) (*string, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, limit, offset int) ([]Product, int, error)
	Search(ctx context.Context, term string, limit, offset int) ([]Product, int, error)
	GetVariation(ctx context.Context, id string) (*Variation, error)
	CreateVariation(ctx context.Context, v *Variation) error
	UpdateVariation(ctx context.Context, v *Variation) error
	DeleteVariation(ctx context.Context, id string) error
}

// ImageProcessor turns an uploaded file into a stored object; *media.Pipeline implements it.
type ImageProcessor interface {
	Process(ctx context.Context, src io.Reader, filename string) (*media.Object, error)
	Discard(ctx context.Context, objectPath string) bool
}

// Page is one page of a product listing.
type Page struct {
	Products []Product `json:"products"`
	Page     int       `json:"page"`
	Pages    int       `json:"pages"`
	Total    int       `json:"total"`
}

// Service contains the catalog business logic.
type Service struct {
	repo    Store
	images  ImageProcessor
	cleanup bool
	log     *zap.Logger
}

// NewService creates a new product Service. With cleanup set, images that are
// replaced, orphaned by a failed save, or left by a deleted product are
// removed from storage.
func NewService(repo Store, images ImageProcessor, cleanup bool, log *zap.Logger) *Service {
	return &Service{repo: repo, images: images, cleanup: cleanup, log: log}
}

// Save creates p when it has no ID and updates it otherwise. A missing slug is
// derived from the name. A pending local image is resized and uploaded first;
// if that fails nothing is written and the error is returned.
func (s *Service) Save(ctx context.Context, p *Product) error {
	if p.Slug == "" {
		p.Slug = slug.Make(p.Name)
	}
	if p.Type == "" {
		p.Type = TypeVariable
	}
	if err := p.Validate(); err != nil {
		return err
	}

	var uploaded *media.Object
	var replaced string
	if p.Image.HasContent() {
		obj, err := s.images.Process(ctx, p.Image.Body, p.Image.Filename)
		if err != nil {
			s.log.Error("product image processing failed",
				zap.String("slug", p.Slug), zap.String("file", p.Image.Filename), zap.Error(err))
			return fmt.Errorf("%w: %w", ErrImage, err)
		}
		if p.ImagePath != nil {
			replaced = *p.ImagePath
		}
		p.ImageURL, p.ImagePath = &obj.URL, &obj.Path
		p.Image = nil
		uploaded = obj
	}

	var err error
	if p.ID == "" {
		err = s.repo.Create(ctx, p)
	} else {
		err = s.repo.Update(ctx, p)
	}
	if err != nil {
		s.log.Error("product save failed", zap.String("slug", p.Slug), zap.Error(err))
		if uploaded != nil && s.cleanup {
			s.images.Discard(ctx, uploaded.Path)
		}
		return fmt.Errorf("save product: %w", err)
	}

	if replaced != "" && s.cleanup {
		s.images.Discard(ctx, replaced)
	}
	s.log.Info("product saved", zap.String("id", p.ID), zap.String("slug", p.Slug))
	return nil
}

// GetByID returns a product with its variations.
func (s *Service) GetByID(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySlug returns a product with its variations.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	return s.repo.GetBySlug(ctx, slug)
}

// List returns the given 1-based page of the catalog.
func (s *Service) List(ctx context.Context, page int) (*Page, error) {
	page = max(page, 1)
	products, total, err := s.repo.List(ctx, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	return newPage(products, page, total), nil
}

// Search returns the given page of products whose text matches term.
// An empty term lists the whole catalog.
func (s *Service) Search(ctx context.Context, term string, page int) (*Page, error) {
	if term == "" {
		return s.List(ctx, page)
	}
	page = max(page, 1)
	products, total, err := s.repo.Search(ctx, term, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	return newPage(products, page, total), nil
}

// Delete removes a product and its variations.
func (s *Service) Delete(ctx context.Context, id string) error {
	imagePath, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if imagePath != nil && *imagePath != "" && s.cleanup {
		s.images.Discard(ctx, *imagePath)
	}
	s.log.Info("product deleted", zap.String("id", id))
	return nil
}

// AddVariation validates v and attaches it to its product.
func (s *Service) AddVariation(ctx context.Context, v *Variation) error {
	if err := v.Validate(); err != nil {
		return err
	}
	return s.repo.CreateVariation(ctx, v)
}

// UpdateVariation validates and stores v.
func (s *Service) UpdateVariation(ctx context.Context, v *Variation) error {
	if err := v.Validate(); err != nil {
		return err
	}
	return s.repo.UpdateVariation(ctx, v)
}

// GetVariation returns a single variation.
func (s *Service) GetVariation(ctx context.Context, id string) (*Variation, error) {
	return s.repo.GetVariation(ctx, id)
}

// DeleteVariation removes a variation.
func (s *Service) DeleteVariation(ctx context.Context, id string) error {
	return s.repo.DeleteVariation(ctx, id)
}

// IsNotFound returns true when the error indicates a missing product or variation.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func newPage(products []Product, page, total int) *Page {
	return &Page{
		Products: products,
		Page:     page,
		Pages:    (total + PageSize - 1) / PageSize,
		Total:    total,
	}
}
