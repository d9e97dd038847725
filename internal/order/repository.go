package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles all order database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Place locks the cart's variations, builds the order from their current
// stock, decrements that stock and stores the order with its items, all in
// one transaction. ErrEmptyCart is returned, and nothing written, when no
// line has stock.
func (r *Repository) Place(ctx context.Context, userID string, cart []CartItem) (*Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	stock, err := lockStock(ctx, tx, cart)
	if err != nil {
		return nil, err
	}

	o := Build(userID, cart, stock)
	if len(o.Items) == 0 {
		return o, ErrEmptyCart
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, total, quantity, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		o.UserID, o.Total, o.Quantity, string(o.Status),
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range o.Items {
		it := &o.Items[i]
		batch.Queue(
			`UPDATE variations SET stock = stock - $2 WHERE id = $1`,
			it.VariationID, it.Quantity,
		)
		batch.Queue(
			`INSERT INTO order_items
			   (order_id, product_name, product_id, variation_name, variation_id, price, promotional_price, quantity, image_url)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			o.ID, it.ProductName, it.ProductID, it.VariationName, it.VariationID,
			it.Price, it.PromotionalPrice, it.Quantity, it.ImageURL,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&it.ID)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("store order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}
	return o, nil
}

func lockStock(ctx context.Context, tx pgx.Tx, cart []CartItem) (map[string]Stock, error) {
	ids := make([]string, 0, len(cart))
	for _, c := range cart {
		ids = append(ids, c.VariationID)
	}

	rows, err := tx.Query(ctx,
		`SELECT v.id, v.product_id, v.name, v.price, v.promotional_price, v.stock,
		        p.name, COALESCE(p.image_url, '')
		 FROM variations v
		 JOIN products p ON p.id = v.product_id
		 WHERE v.id = ANY($1::uuid[])
		 ORDER BY v.id
		 FOR UPDATE OF v`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("lock variations: %w", err)
	}
	defer rows.Close()

	stock := make(map[string]Stock, len(ids))
	for rows.Next() {
		var s Stock
		v := &s.Variation
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.PromotionalPrice, &v.Stock,
			&s.ProductName, &s.ImageURL); err != nil {
			return nil, fmt.Errorf("scan variation: %w", err)
		}
		stock[v.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lock variations: %w", err)
	}
	return stock, nil
}

// ListByUser returns the user's orders, newest first, without items.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, total, quantity, status, created_at
		 FROM orders WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// GetForUser returns the order with its items when it belongs to userID.
func (r *Repository) GetForUser(ctx context.Context, id, userID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx,
		`SELECT id, user_id, total, quantity, status, created_at
		 FROM orders WHERE id = $1 AND user_id = $2`,
		id, userID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, product_id, product_name, variation_id, variation_name, price, promotional_price, quantity, image_url
		 FROM order_items WHERE order_id = $1
		 ORDER BY product_name, variation_name`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.VariationID, &it.VariationName,
			&it.Price, &it.PromotionalPrice, &it.Quantity, &it.ImageURL); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	o := &Order{}
	var status string
	err := row.Scan(&o.ID, &o.UserID, &o.Total, &o.Quantity, &status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = Status(status)
	return o, nil
}
