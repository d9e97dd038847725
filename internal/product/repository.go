package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/loja/storefront/internal/db"
)

const productColumns = `id, name, short_description, long_description, image_url, image_path,
	slug, marketing_price, promotional_price, type, created_at, updated_at`

const variationColumns = `id, product_id, name, price, promotional_price, stock`

// Repository handles all catalog database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create inserts p and fills in its ID and timestamps.
func (r *Repository) Create(ctx context.Context, p *Product) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO products (name, short_description, long_description, image_url, image_path,
		                       slug, marketing_price, promotional_price, type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.ShortDescription, p.LongDescription, p.ImageURL, p.ImagePath,
		p.Slug, p.MarketingPrice, p.PromotionalPrice, string(p.Type),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// Update overwrites every editable column of p.
func (r *Repository) Update(ctx context.Context, p *Product) error {
	err := r.db.QueryRow(ctx,
		`UPDATE products
		 SET name = $2, short_description = $3, long_description = $4, image_url = $5,
		     image_path = $6, slug = $7, marketing_price = $8, promotional_price = $9,
		     type = $10, updated_at = NOW()
		 WHERE id = $1
		 RETURNING updated_at`,
		p.ID, p.Name, p.ShortDescription, p.LongDescription, p.ImageURL, p.ImagePath,
		p.Slug, p.MarketingPrice, p.PromotionalPrice, string(p.Type),
	).Scan(&p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// Delete removes the product (and, by cascade, its variations) and returns
// the storage path of its image, if any.
func (r *Repository) Delete(ctx context.Context, id string) (*string, error) {
	var imagePath *string
	err := r.db.QueryRow(ctx,
		`DELETE FROM products WHERE id = $1 RETURNING image_path`, id,
	).Scan(&imagePath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete product: %w", err)
	}
	return imagePath, nil
}

// GetByID fetches a product with its variations.
func (r *Repository) GetByID(ctx context.Context, id string) (*Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// GetBySlug fetches a product with its variations.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	return r.getOne(ctx, `SELECT `+productColumns+` FROM products WHERE slug = $1`, slug)
}

func (r *Repository) getOne(ctx context.Context, query string, arg string) (*Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	p.Variations, err = r.ListVariations(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns one page of products, newest first, and the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Product, int, error) {
	return r.listWhere(ctx, "", nil, limit, offset)
}

// Search matches term against name and both descriptions, case-insensitively.
func (r *Repository) Search(ctx context.Context, term string, limit, offset int) ([]Product, int, error) {
	return r.listWhere(ctx,
		`WHERE name ILIKE $1 OR short_description ILIKE $1 OR long_description ILIKE $1`,
		[]any{"%" + term + "%"}, limit, offset)
}

func (r *Repository) listWhere(ctx context.Context, where string, args []any, limit, offset int) ([]Product, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM products %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		productColumns, where, n+1, n+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// ListVariations returns the variations of a product, cheapest first.
func (r *Repository) ListVariations(ctx context.Context, productID string) ([]Variation, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+variationColumns+` FROM variations WHERE product_id = $1 ORDER BY price, id`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list variations: %w", err)
	}
	defer rows.Close()

	variations := []Variation{}
	for rows.Next() {
		v, err := scanVariation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variation: %w", err)
		}
		variations = append(variations, *v)
	}
	return variations, rows.Err()
}

// GetVariation fetches a single variation.
func (r *Repository) GetVariation(ctx context.Context, id string) (*Variation, error) {
	v, err := scanVariation(r.db.QueryRow(ctx,
		`SELECT `+variationColumns+` FROM variations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get variation: %w", err)
	}
	return v, nil
}

// CreateVariation inserts v and fills in its ID.
func (r *Repository) CreateVariation(ctx context.Context, v *Variation) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO variations (product_id, name, price, promotional_price, stock)
		 SELECT id, $2, $3, $4, $5 FROM products WHERE id = $1
		 RETURNING id`,
		v.ProductID, v.Name, v.Price, v.PromotionalPrice, v.Stock,
	).Scan(&v.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert variation: %w", err)
	}
	return nil
}

// UpdateVariation overwrites name, prices and stock of v.
func (r *Repository) UpdateVariation(ctx context.Context, v *Variation) error {
	err := r.db.QueryRow(ctx,
		`UPDATE variations SET name = $2, price = $3, promotional_price = $4, stock = $5
		 WHERE id = $1
		 RETURNING product_id`,
		v.ID, v.Name, v.Price, v.PromotionalPrice, v.Stock,
	).Scan(&v.ProductID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update variation: %w", err)
	}
	return nil
}

// DeleteVariation removes a variation.
func (r *Repository) DeleteVariation(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM variations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete variation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	p := &Product{}
	var typ string
	err := row.Scan(&p.ID, &p.Name, &p.ShortDescription, &p.LongDescription, &p.ImageURL, &p.ImagePath,
		&p.Slug, &p.MarketingPrice, &p.PromotionalPrice, &typ, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Type = Type(typ)
	return p, nil
}

func scanVariation(row pgx.Row) (*Variation, error) {
	v := &Variation{}
	if err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.PromotionalPrice, &v.Stock); err != nil {
		return nil, err
	}
	return v, nil
}
