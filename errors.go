package tally

import (
	"errors"
	"fmt"

	"github.com/xraph/tally/sequence"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tally: not found")
	ErrAlreadyExists = errors.New("tally: already exists")
	ErrInvalidInput  = errors.New("tally: invalid input")

	// Directory errors
	ErrClientNotFound       = errors.New("tally: client not found")
	ErrSupplierNotFound     = errors.New("tally: supplier not found")
	ErrStockProductNotFound = errors.New("tally: stock product not found")
	ErrDuplicateProduct     = errors.New("tally: stock product name already in use")

	// Invoice errors
	ErrClientInvoiceNotFound   = errors.New("tally: client invoice not found")
	ErrSupplierInvoiceNotFound = errors.New("tally: supplier invoice not found")
	ErrEmptyInvoice            = errors.New("tally: invoice has no items")
	ErrInvalidPayment          = errors.New("tally: payment amount must be positive")

	// Sequence errors
	ErrSequenceConflict = sequence.ErrConflict
	ErrCounterNotFound  = sequence.ErrCounterNotFound

	// Store errors
	ErrStoreNotReady   = errors.New("tally: store not ready")
	ErrStoreClosed     = errors.New("tally: store is closed")
	ErrMigrationFailed = errors.New("tally: migration failed")
)

// ValidationError rejects input before any store call is made.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tally: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap exposes the sentinel the validation failure corresponds to.
func (e ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// StoreError is a failure reported by the backing store, usually transient
// connectivity trouble. Code carries the store's own error code when it has
// one ("unavailable", "11000", "40001").
type StoreError struct {
	Op   string
	Code string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("tally: store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tally: store %s (code %s): %v", e.Op, e.Code, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "tally: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("tally: %d errors occurred", len(e.Errors))
}

// Unwrap lets errors.Is and errors.As see every collected error.
func (e MultiError) Unwrap() []error { return e.Errors }

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ErrOrNil returns e when it holds errors and nil otherwise.
func (e MultiError) ErrOrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrClientNotFound) ||
		errors.Is(err, ErrSupplierNotFound) ||
		errors.Is(err, ErrStockProductNotFound) ||
		errors.Is(err, ErrClientInvoiceNotFound) ||
		errors.Is(err, ErrSupplierInvoiceNotFound) ||
		errors.Is(err, ErrCounterNotFound)
}

// IsValidation returns true if the input was rejected before any write.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve) || errors.Is(err, ErrInvalidInput)
}

// IsSequenceConflict returns true if no invoice number could be secured.
func IsSequenceConflict(err error) bool {
	return errors.Is(err, ErrSequenceConflict)
}

// IsRetryable returns true if the error is temporary. Only the stock effects
// of a lifecycle operation are idempotent: re-running a close issues a new
// number and invoice, and re-running a delete that failed after its balance
// step reverses the balance again. Check OperationError.Steps before retrying.
func IsRetryable(err error) bool {
	var se *StoreError
	return errors.As(err, &se) ||
		errors.Is(err, ErrSequenceConflict) ||
		errors.Is(err, ErrStoreNotReady)
}

// ErrorCode returns the store-provided code carried by err, if any.
func ErrorCode(err error) string {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
