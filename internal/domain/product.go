package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a read-mostly catalog entry. Checkout only ever touches its
// stock counter, and only through conditional decrement / increment.
type Product struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	SellerID  string    `json:"seller_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
