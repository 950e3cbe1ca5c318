package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenbasket/checkout-service/internal/domain"
)

type ProductRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	// ReserveStock decrements stock by quantity in a single conditional
	// statement; it fails with ErrInsufficientStock when the row has less
	// stock than requested, leaving the counter untouched.
	ReserveStock(ctx context.Context, id uuid.UUID, quantity int) error
	// RestoreStock adds quantity back to the stock counter.
	RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error
}

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (p *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, name, price, stock, seller_id, is_active, created_at, updated_at
		 FROM products WHERE id = $1`, id)

	var prod domain.Product
	err := row.Scan(&prod.ID, &prod.Name, &prod.Price, &prod.Stock,
		&prod.SellerID, &prod.IsActive, &prod.CreatedAt, &prod.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prod, nil
}

func (p *ProductRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, price, stock, seller_id, is_active, created_at, updated_at
		 FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[uuid.UUID]*domain.Product, len(ids))
	for rows.Next() {
		var prod domain.Product
		if err := rows.Scan(&prod.ID, &prod.Name, &prod.Price, &prod.Stock,
			&prod.SellerID, &prod.IsActive, &prod.CreatedAt, &prod.UpdatedAt); err != nil {
			return nil, err
		}
		result[prod.ID] = &prod
	}
	return result, rows.Err()
}

func (p *ProductRepository) ReserveStock(ctx context.Context, id uuid.UUID, quantity int) error {
	// Decrement-if-available in one statement; a plain read-then-write would
	// let two concurrent checkouts oversell the same product.
	tag, err := p.pool.Exec(ctx,
		`UPDATE products SET stock = stock - $2, updated_at = now()
		 WHERE id = $1 AND stock >= $2`, id, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (p *ProductRepository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE products SET stock = stock + $2, updated_at = now()
		 WHERE id = $1`, id, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}
