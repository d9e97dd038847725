// Package product manages the storefront catalog: products, their
// variations, and the image attached to each product.
package product

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type distinguishes products sold through variations from single-SKU products.
type Type string

const (
	TypeVariable Type = "V"
	TypeSimple   Type = "S"
)

// ErrNotFound is returned when a product or variation does not exist.
var ErrNotFound = errors.New("product not found")

// ErrSlugTaken is returned when another product already uses the slug.
var ErrSlugTaken = errors.New("slug already in use")

// ErrImage wraps failures of the image pipeline during Save.
var ErrImage = errors.New("product image could not be processed")

// ErrInvalid wraps every product or variation validation failure.
var ErrInvalid = errors.New("invalid product")

// Product is a catalog entry.
type Product struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ShortDescription string          `json:"shortDescription"`
	LongDescription  string          `json:"longDescription"`
	ImageURL         *string         `json:"imageUrl,omitempty"`
	ImagePath        *string         `json:"-"`
	Slug             string          `json:"slug"`
	MarketingPrice   decimal.Decimal `json:"marketingPrice"`
	PromotionalPrice decimal.Decimal `json:"promotionalPrice"`
	Type             Type            `json:"type"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	Variations       []Variation     `json:"variations,omitempty"`

	// Image is a freshly uploaded local file. It is never persisted: Save
	// pushes it to object storage and clears it.
	Image *Upload `json:"-"`
}

// Upload is an image file received from a client.
type Upload struct {
	Filename string
	Size     int64 // -1 when unknown
	Body     io.Reader
}

// HasContent reports whether there is a file body worth processing.
func (u *Upload) HasContent() bool {
	return u != nil && u.Body != nil && u.Size != 0
}

// DisplayImageURL returns the remote image URL, or "" when there is none.
func (p *Product) DisplayImageURL() string {
	if p.ImageURL != nil {
		return *p.ImageURL
	}
	return ""
}

// Validate checks the fields a product cannot be stored without.
func (p *Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case len(p.Name) > 255:
		return fmt.Errorf("%w: name must be at most 255 characters", ErrInvalid)
	case strings.TrimSpace(p.ShortDescription) == "":
		return fmt.Errorf("%w: short description is required", ErrInvalid)
	case len(p.ShortDescription) > 255:
		return fmt.Errorf("%w: short description must be at most 255 characters", ErrInvalid)
	case p.Slug == "":
		return fmt.Errorf("%w: name must contain at least one letter or digit", ErrInvalid)
	case p.MarketingPrice.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	case p.PromotionalPrice.IsNegative():
		return fmt.Errorf("%w: promotional price must not be negative", ErrInvalid)
	case p.Type != TypeVariable && p.Type != TypeSimple:
		return fmt.Errorf("%w: type must be V or S", ErrInvalid)
	}
	return nil
}

// Variation is a purchasable option of a product (size, color, ...).
type Variation struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"productId"`
	Name             *string         `json:"name,omitempty"`
	Price            decimal.Decimal `json:"price"`
	PromotionalPrice decimal.Decimal `json:"promotionalPrice"`
	Stock            int             `json:"stock"`
}

// DisplayName is the variation name, or productName when the variation has none.
func (v *Variation) DisplayName(productName string) string {
	if v.Name != nil && *v.Name != "" {
		return *v.Name
	}
	return productName
}

// UnitPrice is the promotional price when one is set, the regular price otherwise.
func (v *Variation) UnitPrice() decimal.Decimal {
	if v.PromotionalPrice.IsPositive() {
		return v.PromotionalPrice
	}
	return v.Price
}

// Validate checks prices and stock.
func (v *Variation) Validate() error {
	switch {
	case v.Name != nil && len(*v.Name) > 50:
		return fmt.Errorf("%w: variation name must be at most 50 characters", ErrInvalid)
	case v.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	case v.PromotionalPrice.IsNegative():
		return fmt.Errorf("%w: promotional price must not be negative", ErrInvalid)
	case v.Stock < 0:
		return fmt.Errorf("%w: stock must not be negative", ErrInvalid)
	}
	return nil
}

// FormatPrice renders a price the way the storefront shows it: "R$ 1234,50".
func FormatPrice(d decimal.Decimal) string {
	return "R$ " + strings.Replace(d.StringFixed(2), ".", ",", 1)
}
