package engine

import (
	"errors"
	"fmt"
)

// OpError is a cart operation failure.
//
// Operations never panic and never leave the caller to undo anything: by the
// time an OpError is returned the engine has already compensated locally
// (rolled back) where the protocol requires it. The error is informational,
// the same value is also passed to the error handler.
type OpError struct {
	// Code identifies the error category.
	Code OpErrorCode

	// Op is the cart operation that failed ("add", "update").
	Op string

	// SkuNumber identifies the affected line when known.
	SkuNumber string

	// RolledBack reports whether a compensating change was applied.
	RolledBack bool

	// Err is the underlying cause.
	Err error
}

// OpErrorCode categorizes operation errors.
type OpErrorCode string

const (
	// ErrCodeValidation rejects an operation before any state change.
	ErrCodeValidation OpErrorCode = "VALIDATION"

	// ErrCodeCartID means no CartId could be obtained.
	ErrCodeCartID OpErrorCode = "CART_ID"

	// ErrCodeRemote means the gateway rejected or failed the call.
	ErrCodeRemote OpErrorCode = "REMOTE"
)

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.SkuNumber != "" {
		return fmt.Sprintf("%s: %s (sku=%s): %v", e.Code, e.Op, e.SkuNumber, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *OpError) Unwrap() error {
	return e.Err
}

// ErrMissingSku rejects items without a SKU number.
var ErrMissingSku = errors.New("skuNumber is required")

// ErrMissingID rejects items without a product id.
var ErrMissingID = errors.New("id is required")

// ErrNoCartID is returned by updates when no CartId is cached.
var ErrNoCartID = errors.New("no cart id cached")

// ErrClosed is returned when watching a closed engine.
var ErrClosed = errors.New("engine closed")

// IsValidation reports whether err is a validation OpError.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsCartIDError reports whether err is a CartId acquisition OpError.
func IsCartIDError(err error) bool {
	return hasCode(err, ErrCodeCartID)
}

// IsRemote reports whether err is a remote OpError.
func IsRemote(err error) bool {
	return hasCode(err, ErrCodeRemote)
}

func hasCode(err error, code OpErrorCode) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Code == code
	}
	return false
}
