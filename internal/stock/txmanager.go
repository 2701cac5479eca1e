package stock

import (
	"context"
	"time"
)

// TxManager runs a function inside a database transaction propagated through
// the context. If the context already carries a transaction the function joins
// it instead of opening a nested one; commit and rollback then belong to the
// outermost owner. fn returning an error rolls everything back.
type TxManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	// InTransaction reports whether ctx already carries a transaction.
	InTransaction(ctx context.Context) bool
}

// Locker is the distributed per-row lock used to bound lock waiting and give
// callers a retryable Busy signal. The database row lock remains the
// correctness mechanism; this only keeps hot rows from queueing unbounded.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) (bool, error)
}
