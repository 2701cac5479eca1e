package stock

import (
	"errors"
	"fmt"
)

var (
	// ErrProductNotFound is returned when the referenced product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrVariantNotFound is returned when the supplied variant label is not one
	// of the product's variants, or a label was supplied for a product that
	// does not track variants.
	ErrVariantNotFound = errors.New("variant not found")

	// ErrVariantRequired is returned when the product tracks variants but the
	// caller supplied none.
	ErrVariantRequired = errors.New("variant label required for variant-tracked product")

	// ErrInvalidQuantity is returned for non-positive adjustment quantities and
	// negative absolute quantities.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrSameBranch is returned when a transfer names the same branch on both
	// sides.
	ErrSameBranch = errors.New("transfer requires two distinct branches")

	// ErrBusy signals that the per-row lock could not be acquired in time.
	// Transient; the caller may retry the whole operation.
	ErrBusy = errors.New("stock row busy, try again")
)

// InsufficientStockError is the expected, business-meaningful failure of a
// decrement: the row holds less than the caller asked for. Carries both sides
// so the caller can show a precise message.
type InsufficientStockError struct {
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %d, requested %d", e.Available, e.Requested)
}

// IntegrityError means an internal invariant was about to break (e.g. a
// negative quantity or a movement whose before/after/delta do not agree).
// It is a bug signal: the engine refuses to commit instead of clamping.
type IntegrityError struct {
	ProductID string
	BranchID  string
	Detail    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("stock integrity violation for product %s branch %s: %s", e.ProductID, e.BranchID, e.Detail)
}
