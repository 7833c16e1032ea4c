package payment

import "errors"

// Sentinel errors for the payment service layer.
var (
	ErrNotFound        = errors.New("payment not found")
	ErrSessionNotFound = errors.New("checkout session not found")
	ErrInvalidAmount   = errors.New("amount must be greater than zero")
	ErrMissingDesc     = errors.New("description is required")
)
