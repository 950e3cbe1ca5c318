package application

import (
	"fmt"

	"github.com/google/uuid"
)

// LineReport is the per-line availability verdict returned by cart
// validation and by a rejected checkout.
type LineReport struct {
	ProductID uuid.UUID `json:"productId"`
	Valid     bool      `json:"valid"`
	Message   string    `json:"message"`
}

// CheckoutRejectedError aborts a checkout and carries the full per-line
// report so the caller can show which lines failed and why. It unwraps to
// domain.ErrValidation when the validation pass failed, or to
// domain.ErrStockConflict when a conditional decrement lost a race after
// validation had passed.
type CheckoutRejectedError struct {
	Report []LineReport
	cause  error
}

func (e *CheckoutRejectedError) Error() string {
	return fmt.Sprintf("checkout rejected: %v", e.cause)
}

func (e *CheckoutRejectedError) Unwrap() error {
	return e.cause
}

func newCheckoutRejected(report []LineReport, cause error) *CheckoutRejectedError {
	return &CheckoutRejectedError{Report: report, cause: cause}
}
