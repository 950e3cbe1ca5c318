package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/events"
	"github.com/greenbasket/checkout-service/internal/logger"
	"github.com/greenbasket/checkout-service/internal/repository"
)

// SellerNotifier delivers best-effort "new order" messages to sellers.
// Failures are logged by the caller and never surfaced to the buyer.
type SellerNotifier interface {
	NotifyNewOrder(ctx context.Context, sellerID string, order *domain.Order) error
}

type CheckoutInput struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	Notes           string                 `json:"notes"`
}

type ListParams struct {
	Page   int
	Limit  int
	Status domain.OrderStatus
}

type Pagination struct {
	CurrentPage int  `json:"currentPage"`
	TotalPages  int  `json:"totalPages"`
	TotalOrders int  `json:"totalOrders"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

type StatsSummary struct {
	Total       int                                      `json:"total"`
	TotalAmount float64                                  `json:"totalAmount"`
	ByStatus    map[domain.OrderStatus]repository.StatusStat `json:"byStatus"`
}

// CheckoutService is the checkout transactor plus the order lifecycle
// operations that feed the event bus.
type CheckoutService struct {
	carts    repository.CartRepo
	orders   repository.OrderRepo
	products repository.ProductRepo
	bus      *events.Bus
	notifier SellerNotifier
}

func NewCheckoutService(
	carts repository.CartRepo,
	orders repository.OrderRepo,
	products repository.ProductRepo,
	bus *events.Bus,
	notifier SellerNotifier,
) *CheckoutService {
	return &CheckoutService{
		carts:    carts,
		orders:   orders,
		products: products,
		bus:      bus,
		notifier: notifier,
	}
}

// Checkout converts the buyer's cart into an order. Stock is reserved first
// (the atomic, revertible step); the order is materialized only once every
// line is reserved, and reservations are released if materialization fails.
func (s *CheckoutService) Checkout(ctx context.Context, buyerID string, in CheckoutInput) (*domain.Order, error) {
	if err := in.ShippingAddress.Validate(); err != nil {
		return nil, err
	}
	method, err := domain.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if len(in.Notes) > domain.MaxNotesLength {
		return nil, fmt.Errorf("%w: notes cannot exceed %d characters", domain.ErrValidation, domain.MaxNotesLength)
	}

	cart, err := s.carts.GetOrCreate(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}

	products, err := s.loadProducts(ctx, cart)
	if err != nil {
		return nil, err
	}

	// Validation pass: all lines or nothing, no stock touched yet.
	report, valid := buildReport(cart, products)
	if !valid {
		return nil, newCheckoutRejected(report, domain.ErrValidation)
	}

	// Stock reservation: one conditional decrement per line. A failed line
	// means another checkout won the race; everything reserved so far is
	// put back.
	reserved := make([]domain.CartItem, 0, len(cart.Items))
	for i, item := range cart.Items {
		if err := s.products.ReserveStock(ctx, item.ProductID, item.Quantity); err != nil {
			s.releaseReservations(ctx, reserved)
			if errors.Is(err, repository.ErrInsufficientStock) {
				report[i].Valid = false
				report[i].Message = "stock was taken by a concurrent order"
				return nil, newCheckoutRejected(report, domain.ErrStockConflict)
			}
			return nil, err
		}
		reserved = append(reserved, item)
	}

	order := s.materialize(buyerID, cart, in, method)
	if err := s.orders.Create(ctx, order); err != nil {
		s.releaseReservations(ctx, reserved)
		return nil, err
	}

	// The order stands from here on; cart clearing and notification are
	// best-effort.
	if err := s.carts.ClearItems(ctx, cart.ID); err != nil {
		logger.Warn("cart clear failed after checkout", "buyer_id", buyerID, "err", err)
	}

	go s.notifySellers(order)

	s.bus.Publish(domain.OrderEvent{OrderID: order.ID, Status: order.Status})
	logger.Info("order placed", "order_number", order.OrderNumber, "buyer_id", buyerID, "total", order.TotalAmount)
	return order, nil
}

func (s *CheckoutService) materialize(buyerID string, cart *domain.Cart, in CheckoutInput, method domain.PaymentMethod) *domain.Order {
	now := time.Now().UTC()
	order := &domain.Order{
		BuyerID:           buyerID,
		Status:            domain.OrderStatusPending,
		PaymentStatus:     domain.PaymentStatusPending,
		PaymentMethod:     method,
		ShippingAddress:   in.ShippingAddress,
		Notes:             in.Notes,
		EstimatedDelivery: now.Add(domain.EstimatedDeliveryAfter),
	}
	for _, item := range cart.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			SellerID:  item.SellerID,
		})
	}
	order.CalculateTotal()
	return order
}

func (s *CheckoutService) loadProducts(ctx context.Context, cart *domain.Cart) (map[uuid.UUID]*domain.Product, error) {
	ids := make([]uuid.UUID, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	return s.products.GetByIDs(ctx, ids)
}

func buildReport(cart *domain.Cart, products map[uuid.UUID]*domain.Product) ([]LineReport, bool) {
	report := make([]LineReport, 0, len(cart.Items))
	valid := true
	for _, item := range cart.Items {
		product, ok := products[item.ProductID]
		switch {
		case !ok || !product.IsActive:
			report = append(report, LineReport{
				ProductID: item.ProductID,
				Message:   "product is no longer available",
			})
			valid = false
		case product.Stock < item.Quantity:
			report = append(report, LineReport{
				ProductID: item.ProductID,
				Message:   fmt.Sprintf("only %d items available in stock", product.Stock),
			})
			valid = false
		default:
			report = append(report, LineReport{
				ProductID: item.ProductID,
				Valid:     true,
				Message:   "product is available",
			})
		}
	}
	return report, valid
}

func (s *CheckoutService) releaseReservations(ctx context.Context, reserved []domain.CartItem) {
	for _, item := range reserved {
		if err := s.products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			logger.Error("failed to release reservation", "product_id", item.ProductID, "quantity", item.Quantity, "err", err)
		}
	}
}

func (s *CheckoutService) notifySellers(order *domain.Order) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, sellerID := range order.SellerIDs() {
		if err := s.notifier.NotifyNewOrder(ctx, sellerID, order); err != nil {
			logger.Warn("seller notification failed", "seller_id", sellerID, "order_number", order.OrderNumber, "err", err)
		}
	}
}

// CancelOrder is allowed only for the order's buyer while the order is still
// pending. Stock of every line is put back.
func (s *CheckoutService) CancelOrder(ctx context.Context, orderID uuid.UUID, requesterID string) error {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if !order.IsBuyer(requesterID) {
		return domain.ErrForbidden
	}
	if !order.CanCancel() {
		return fmt.Errorf("%w: order %s cannot be cancelled", domain.ErrInvalidState, order.Status)
	}

	order.UpdateStatus(domain.OrderStatusCancelled)
	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		return err
	}

	for _, item := range order.Items {
		if err := s.products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
			logger.Error("restock after cancel failed", "product_id", item.ProductID, "quantity", item.Quantity, "err", err)
		}
	}

	s.bus.Publish(domain.OrderEvent{OrderID: order.ID, Status: order.Status})
	logger.Info("order cancelled", "order_number", order.OrderNumber, "buyer_id", requesterID)
	return nil
}

// UpdateOrderStatus is restricted to a seller with items on the order or an
// admin. The write itself is unconditional per the aggregate contract.
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, requesterID, role string, status domain.OrderStatus) (*domain.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleAdmin && !order.HasSeller(requesterID) {
		return nil, domain.ErrForbidden
	}

	order.UpdateStatus(status)
	if err := s.orders.UpdateStatus(ctx, order); err != nil {
		return nil, err
	}

	s.bus.Publish(domain.OrderEvent{OrderID: order.ID, Status: order.Status})
	return order, nil
}

// ApplyPaymentUpdate ingests a payment-gateway confirmation. A completed
// payment promotes a still-pending order to confirmed.
func (s *CheckoutService) ApplyPaymentUpdate(ctx context.Context, orderNumber string, status domain.PaymentStatus) error {
	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return fmt.Errorf("%w: order %s", domain.ErrNotFound, orderNumber)
		}
		return err
	}

	order.PaymentStatus = status
	if status == domain.PaymentStatusCompleted && order.Status == domain.OrderStatusPending {
		order.Status = domain.OrderStatusConfirmed
	}
	order.UpdatedAt = time.Now().UTC()

	if err := s.orders.UpdatePaymentStatus(ctx, order); err != nil {
		return err
	}

	ps := order.PaymentStatus
	s.bus.Publish(domain.OrderEvent{OrderID: order.ID, Status: order.Status, PaymentStatus: &ps})
	logger.Info("payment status applied", "order_number", orderNumber, "payment_status", status)
	return nil
}

// GetOrder enforces the read authorization shared by the detail endpoint and
// the status stream: buyer, seller-on-order or admin.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID uuid.UUID, requesterID, role string) (*domain.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsBuyer(requesterID) && !order.HasSeller(requesterID) && role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, requesterID, role string, p ListParams) ([]domain.Order, Pagination, error) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}

	filter := repository.ListFilter{
		Status: p.Status,
		Limit:  p.Limit,
		Offset: (p.Page - 1) * p.Limit,
	}
	switch role {
	case domain.RoleBuyer:
		filter.BuyerID = requesterID
	case domain.RoleSeller:
		filter.SellerID = requesterID
	case domain.RoleAdmin:
	default:
		return nil, Pagination{}, domain.ErrForbidden
	}

	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, Pagination{}, err
	}

	totalPages := (total + p.Limit - 1) / p.Limit
	return orders, Pagination{
		CurrentPage: p.Page,
		TotalPages:  totalPages,
		TotalOrders: total,
		HasNextPage: filter.Offset+len(orders) < total,
		HasPrevPage: p.Page > 1,
	}, nil
}

func (s *CheckoutService) Stats(ctx context.Context, requesterID, role string) (*StatsSummary, error) {
	sellerID := ""
	switch role {
	case domain.RoleSeller:
		sellerID = requesterID
	case domain.RoleAdmin:
	default:
		return nil, domain.ErrForbidden
	}

	stats, err := s.orders.StatsSummary(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	summary := &StatsSummary{ByStatus: make(map[domain.OrderStatus]repository.StatusStat)}
	for _, st := range stats {
		summary.Total += st.Count
		summary.TotalAmount += st.Amount
		summary.ByStatus[st.Status] = st
	}
	return summary, nil
}

func (s *CheckoutService) getOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: order", domain.ErrNotFound)
		}
		return nil, err
	}
	return order, nil
}
