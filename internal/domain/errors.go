package domain

import "errors"

// Error taxonomy shared by the application and presentation layers.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("access denied")
	ErrInvalidState  = errors.New("operation not allowed in current state")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrStockConflict = errors.New("stock changed concurrently")
)
