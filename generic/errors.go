/*
errors.go - Centralized error types for the ledger

PURPOSE:
  All error kinds in one place for consistency and discoverability.
  Callers classify with errors.Is against the sentinels; the structured
  types carry the details a presentation layer needs.

ERROR CATEGORIES:
  1. Validation  - malformed input, rejected before any write
  2. Not found   - a requested record does not exist
  3. Persistence - the store was unavailable or rejected the write
  4. Authentication - no actor was supplied to a mutating operation

PROPAGATION:
  Errors are returned to the immediate caller. Nothing is retried here;
  retry policy, if any, belongs to the store. Input clamping in the
  reporting engine is NOT an error path.

SEE ALSO:
  - ledger/writer.go: produces ValidationError and PersistenceError
  - ledger/reader.go: produces NotFoundError
  - api/handlers.go: maps kinds to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation classifies every input validation failure.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound classifies every missing-record failure.
	ErrNotFound = errors.New("not found")

	// ErrPersistence classifies store failures surfaced by the ledger.
	ErrPersistence = errors.New("persistence failed")

	// ErrUnauthenticated is returned when a mutating call carries no actor.
	ErrUnauthenticated = errors.New("actor required")

	// ErrPurchaseNotFound is returned by stores when a purchase id is unknown.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrProductNotFound is returned by stores when a product id is unknown.
	ErrProductNotFound = errors.New("product not found")

	// ErrDuplicatePurchase is returned when a purchase id already exists.
	// Purchases are append-only; an id is never overwritten.
	ErrDuplicatePurchase = errors.New("duplicate purchase id")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes which input was rejected and why.
type ValidationError struct {
	Field      string      // e.g. "customer_name", "lines[1].quantity"
	Message    string      // e.g. "must be greater than zero"
	ProductIDs []ProductID // offending products, when the failure is about the catalog
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if len(e.ProductIDs) > 0 {
		ids := make([]string, len(e.ProductIDs))
		for i, id := range e.ProductIDs {
			ids[i] = string(id)
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(ids, ", "))
	}
	return b.String()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "purchase", "product"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// PersistenceError wraps a store failure. It matches both ErrPersistence and
// the underlying cause.
type PersistenceError struct {
	Op  string // "append purchase", "load range"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPurchaseNotFound) ||
		errors.Is(err, ErrProductNotFound)
}
