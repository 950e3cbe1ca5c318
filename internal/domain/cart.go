package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cart belongs to exactly one buyer. It holds candidate purchases with the
// price snapshotted at add time; the snapshot is not re-synced when the
// catalog price changes later.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	BuyerID   string     `json:"buyer_id"`
	Items     []CartItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	SellerID  string    `json:"seller_id"`
	AddedAt   time.Time `json:"added_at"`
}

// AddItem merges quantity into an existing line for the same product, or
// appends a new line. Returns the resulting line.
func (c *Cart) AddItem(productID uuid.UUID, quantity int, unitPrice float64, sellerID string) (CartItem, error) {
	if quantity < 1 {
		return CartItem{}, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if unitPrice < 0 {
		return CartItem{}, fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}

	now := time.Now().UTC()
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			c.Items[i].AddedAt = now
			c.UpdatedAt = now
			return c.Items[i], nil
		}
	}

	item := CartItem{
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		SellerID:  sellerID,
		AddedAt:   now,
	}
	c.Items = append(c.Items, item)
	c.UpdatedAt = now
	return item, nil
}

// UpdateItemQuantity overwrites the quantity of an existing line. A quantity
// of zero or below removes the line. The second return value reports whether
// the line was removed.
func (c *Cart) UpdateItemQuantity(productID uuid.UUID, quantity int) (CartItem, bool, error) {
	for i := range c.Items {
		if c.Items[i].ProductID != productID {
			continue
		}
		c.UpdatedAt = time.Now().UTC()
		if quantity <= 0 {
			removed := c.Items[i]
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return removed, true, nil
		}
		c.Items[i].Quantity = quantity
		return c.Items[i], false, nil
	}
	return CartItem{}, false, fmt.Errorf("%w: item not in cart", ErrNotFound)
}

// RemoveItem is idempotent: removing an absent line is a no-op.
func (c *Cart) RemoveItem(productID uuid.UUID) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.UpdatedAt = time.Now().UTC()
			return
		}
	}
}

func (c *Cart) Clear() {
	c.Items = nil
	c.UpdatedAt = time.Now().UTC()
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// TotalItems is derived, never stored.
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// TotalAmount is derived, never stored.
func (c *Cart) TotalAmount() float64 {
	total := 0.0
	for _, item := range c.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}
