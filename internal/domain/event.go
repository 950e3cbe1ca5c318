package domain

import "github.com/google/uuid"

// OrderEvent is ephemeral: it exists only on the in-process event bus and is
// dropped if nobody is listening at publish time.
type OrderEvent struct {
	OrderID       uuid.UUID      `json:"orderId"`
	Status        OrderStatus    `json:"status"`
	PaymentStatus *PaymentStatus `json:"paymentStatus,omitempty"`
}
