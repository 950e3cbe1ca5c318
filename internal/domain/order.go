package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string
type PaymentStatus string
type PaymentMethod string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"

	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"

	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCard   PaymentMethod = "card"
)

const (
	// EstimatedDeliveryAfter is added to the creation time of every order.
	EstimatedDeliveryAfter = 5 * 24 * time.Hour
	// DeliveryAfterShipped is added when the order transitions to shipped.
	DeliveryAfterShipped = 3 * 24 * time.Hour

	MaxNotesLength = 500
)

type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

func (a ShippingAddress) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
		{"country", a.Country},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: shipping address %s is required", ErrValidation, f.name)
		}
	}
	return nil
}

// Order is created exactly once per successful checkout. Item snapshots and
// totals are immutable; only status, payment status, delivery date and
// tracking number change afterwards.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	OrderNumber       string          `json:"order_number"`
	BuyerID           string          `json:"buyer_id"`
	Items             []OrderItem     `json:"items"`
	TotalAmount       float64         `json:"total_amount"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	Notes             string          `json:"notes,omitempty"`
	TrackingNumber    string          `json:"tracking_number,omitempty"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	DeliveryDate      *time.Time      `json:"delivery_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// OrderItem is a snapshot copied from the cart at checkout, independent of
// later catalog edits.
type OrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	SellerID  string    `json:"seller_id"`
}

// CalculateTotal recomputes TotalAmount from the item snapshots. Used only
// during construction, never after the order has been persisted.
func (o *Order) CalculateTotal() float64 {
	total := 0.0
	for _, item := range o.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	o.TotalAmount = total
	return total
}

// UpdateStatus writes the new status unconditionally; lifecycle rules such as
// "cancel only from pending" are enforced by the caller. Transitioning to
// shipped fixes the delivery date.
func (o *Order) UpdateStatus(status OrderStatus) {
	now := time.Now().UTC()
	o.Status = status
	o.UpdatedAt = now
	if status == OrderStatusShipped {
		d := now.Add(DeliveryAfterShipped)
		o.DeliveryDate = &d
	}
}

// CanCancel reports whether buyer cancellation is still allowed.
func (o *Order) CanCancel() bool {
	return o.Status == OrderStatusPending
}

func (o *Order) IsBuyer(userID string) bool {
	return o.BuyerID == userID
}

// HasSeller reports whether any item in the order belongs to the given seller.
func (o *Order) HasSeller(userID string) bool {
	for _, item := range o.Items {
		if item.SellerID == userID {
			return true
		}
	}
	return false
}

// SellerIDs returns the distinct sellers represented in the order.
func (o *Order) SellerIDs() []string {
	seen := make(map[string]struct{}, len(o.Items))
	var ids []string
	for _, item := range o.Items {
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		ids = append(ids, item.SellerID)
	}
	return ids
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("%w: invalid order status %q", ErrValidation, s)
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded:
		return PaymentStatus(s), nil
	}
	return "", fmt.Errorf("%w: invalid payment status %q", ErrValidation, s)
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodCOD, PaymentMethodOnline, PaymentMethodCard:
		return PaymentMethod(s), nil
	}
	return "", fmt.Errorf("%w: invalid payment method %q", ErrValidation, s)
}
