package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/logger"
)

// ListFilter scopes an order listing by role: BuyerID for buyers, SellerID
// for sellers, neither for admins.
type ListFilter struct {
	BuyerID  string
	SellerID string
	Status   domain.OrderStatus
	Limit    int
	Offset   int
}

// StatusStat is one row of the per-status summary.
type StatusStat struct {
	Status domain.OrderStatus `json:"status"`
	Count  int                `json:"count"`
	Amount float64            `json:"amount"`
}

type OrderRepo interface {
	// Create persists the order and its item snapshots in one transaction,
	// assigning the ID and the sequence-backed order number.
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, int, error)
	// UpdateStatus persists the mutable post-creation fields.
	UpdateStatus(ctx context.Context, order *domain.Order) error
	UpdatePaymentStatus(ctx context.Context, order *domain.Order) error
	StatsSummary(ctx context.Context, sellerID string) ([]StatusStat, error)
}

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	// Dedicated sequence instead of counting rows: counting races with
	// concurrent checkouts and can hand out the same number twice.
	var seq int64
	if err = tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return err
	}
	o.OrderNumber = fmt.Sprintf("ORD%04d", seq)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders
			(id, order_number, buyer_id, total_amount, status, payment_status, payment_method,
			 street, city, state, zip_code, country, notes, tracking_number,
			 estimated_delivery, delivery_date)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7,
			 $8, $9, $10, $11, $12, $13, $14,
			 $15, $16)
		 RETURNING created_at, updated_at`,
		o.ID, o.OrderNumber, o.BuyerID, o.TotalAmount, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.ShippingAddress.Street, o.ShippingAddress.City, o.ShippingAddress.State,
		o.ShippingAddress.ZipCode, o.ShippingAddress.Country, o.Notes, o.TrackingNumber,
		o.EstimatedDelivery, o.DeliveryDate,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return err
	}

	if len(o.Items) > 0 {
		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(
				`INSERT INTO order_items (order_id, product_id, quantity, unit_price, seller_id)
				 VALUES ($1, $2, $3, $4, $5)`,
				o.ID, it.ProductID, it.Quantity, it.UnitPrice, it.SellerID)
		}
		br := tx.SendBatch(ctx, batch)
		if err = br.Close(); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		logger.Warn("order create commit failed", "err", err)
		return err
	}
	tx = nil
	return nil
}

const orderColumns = `id, order_number, buyer_id, total_amount, status, payment_status, payment_method,
	street, city, state, zip_code, country, notes, tracking_number,
	estimated_delivery, delivery_date, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.BuyerID, &o.TotalAmount, &o.Status,
		&o.PaymentStatus, &o.PaymentMethod,
		&o.ShippingAddress.Street, &o.ShippingAddress.City, &o.ShippingAddress.State,
		&o.ShippingAddress.ZipCode, &o.ShippingAddress.Country, &o.Notes, &o.TrackingNumber,
		&o.EstimatedDelivery, &o.DeliveryDate, &o.CreatedAt, &o.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, map[uuid.UUID]*domain.Order{o.ID: o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, map[uuid.UUID]*domain.Order{o.ID: o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) List(ctx context.Context, f ListFilter) ([]domain.Order, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.BuyerID != "" {
		where += ` AND buyer_id = ` + arg(f.BuyerID)
	}
	if f.SellerID != "" {
		where += ` AND EXISTS (SELECT 1 FROM order_items oi
			WHERE oi.order_id = orders.id AND oi.seller_id = ` + arg(f.SellerID) + `)`
	}
	if f.Status != "" {
		where += ` AND status = ` + arg(f.Status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		` ORDER BY created_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	byID := make(map[uuid.UUID]*domain.Order)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, *o)
		byID[o.ID] = &orders[len(orders)-1]
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadItems(ctx, byID); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, byID map[uuid.UUID]*domain.Order) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, quantity, unit_price, seller_id
		 FROM order_items WHERE order_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var it domain.OrderItem
		if err := rows.Scan(&orderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.SellerID); err != nil {
			return err
		}
		byID[orderID].Items = append(byID[orderID].Items, it)
	}
	return rows.Err()
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, delivery_date = $3, tracking_number = $4, updated_at = $5
		 WHERE id = $1`,
		o.ID, o.Status, o.DeliveryDate, o.TrackingNumber, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, o *domain.Order) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_status = $2, status = $3, updated_at = $4 WHERE id = $1`,
		o.ID, o.PaymentStatus, o.Status, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepository) StatsSummary(ctx context.Context, sellerID string) ([]StatusStat, error) {
	query := `SELECT status, count(*), coalesce(sum(total_amount), 0) FROM orders`
	args := []any{}
	if sellerID != "" {
		query += ` WHERE EXISTS (SELECT 1 FROM order_items oi
			WHERE oi.order_id = orders.id AND oi.seller_id = $1)`
		args = append(args, sellerID)
	}
	query += ` GROUP BY status`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []StatusStat
	for rows.Next() {
		var s StatusStat
		if err := rows.Scan(&s.Status, &s.Count, &s.Amount); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
