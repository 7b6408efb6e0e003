package ports

import "errors"

// Standard application-level errors. Adapters wrap underlying infrastructure
// errors with these so the core can branch without knowing the technology.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Market data / external services
	ErrQuoteUnavailable   = errors.New("quote data unavailable")
	ErrFlowUnavailable    = errors.New("flow data unavailable")
	ErrServiceUnavailable = errors.New("external service unavailable")

	// Trading invariants, rejected before any state mutation
	ErrInsufficientCash   = errors.New("insufficient cash for buy")
	ErrInsufficientShares = errors.New("sell exceeds held shares")
	ErrInvalidOrder       = errors.New("invalid order parameters")

	// Persistence
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrWriteFailed  = errors.New("database write failed")
)
