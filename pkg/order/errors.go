package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("payment order not found")
	ErrDuplicateOrder    = errors.New("payment order already exists")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidSignature  = errors.New("invalid payment signature")
	ErrPaymentMismatch   = errors.New("order is already paid with a different payment id")
	ErrOrderChanged      = errors.New("order status changed since read")
	ErrConcurrentUpdate  = errors.New("order was modified concurrently")
	ErrUpstream          = errors.New("payment provider is unavailable")
)
