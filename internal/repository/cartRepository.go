package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenbasket/checkout-service/internal/domain"
)

type CartRepo interface {
	// GetOrCreate loads the buyer's cart with all its lines, creating an
	// empty cart on first access.
	GetOrCreate(ctx context.Context, buyerID string) (*domain.Cart, error)
	// UpsertItem writes one cart line (insert or overwrite by product).
	UpsertItem(ctx context.Context, cartID uuid.UUID, item domain.CartItem) error
	RemoveItem(ctx context.Context, cartID uuid.UUID, productID uuid.UUID) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type CartRepository struct {
	pool *pgxpool.Pool
}

func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

func (c *CartRepository) GetOrCreate(ctx context.Context, buyerID string) (*domain.Cart, error) {
	var cart domain.Cart
	err := c.pool.QueryRow(ctx,
		`SELECT id, buyer_id, created_at, updated_at FROM carts WHERE buyer_id = $1`,
		buyerID).Scan(&cart.ID, &cart.BuyerID, &cart.CreatedAt, &cart.UpdatedAt)
	if err == pgx.ErrNoRows {
		err = c.pool.QueryRow(ctx,
			`INSERT INTO carts (id, buyer_id) VALUES ($1, $2)
			 ON CONFLICT (buyer_id) DO UPDATE SET updated_at = carts.updated_at
			 RETURNING id, buyer_id, created_at, updated_at`,
			uuid.New(), buyerID).Scan(&cart.ID, &cart.BuyerID, &cart.CreatedAt, &cart.UpdatedAt)
	}
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx,
		`SELECT product_id, quantity, unit_price, seller_id, added_at
		 FROM cart_items WHERE cart_id = $1 ORDER BY added_at`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice,
			&item.SellerID, &item.AddedAt); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}
	return &cart, rows.Err()
}

func (c *CartRepository) UpsertItem(ctx context.Context, cartID uuid.UUID, item domain.CartItem) error {
	// The merged quantity is computed on the aggregate; the upsert just makes
	// the single-line write atomic.
	_, err := c.pool.Exec(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, seller_id, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cart_id, product_id) DO UPDATE
		 SET quantity = EXCLUDED.quantity, added_at = EXCLUDED.added_at`,
		cartID, item.ProductID, item.Quantity, item.UnitPrice, item.SellerID, item.AddedAt)
	if err != nil {
		return err
	}
	return c.touch(ctx, cartID)
}

func (c *CartRepository) RemoveItem(ctx context.Context, cartID uuid.UUID, productID uuid.UUID) error {
	// Deleting an absent line is a no-op on purpose.
	_, err := c.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2`, cartID, productID)
	if err != nil {
		return err
	}
	return c.touch(ctx, cartID)
}

func (c *CartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return err
	}
	return c.touch(ctx, cartID)
}

func (c *CartRepository) touch(ctx context.Context, cartID uuid.UUID) error {
	_, err := c.pool.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	return err
}
