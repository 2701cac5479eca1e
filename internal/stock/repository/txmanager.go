package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/fekuna/omnipos-inventory-service/internal/stock"
)

type txCtxKey struct{}

// txFromContext returns the transaction carried by ctx, or nil.
func txFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txCtxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}

const defaultRowLockTimeout = 3 * time.Second

// TxManager opens transactions and propagates them through the context so that
// repository calls inside fn share one unit of work.
type TxManager struct {
	DB *sqlx.DB
	// RowLockTimeout caps how long statements inside the transaction may wait
	// on a row lock before failing as Busy. Zero means the default.
	RowLockTimeout time.Duration
}

func NewTxManager(db *sqlx.DB) *TxManager {
	return &TxManager{DB: db}
}

// Transaction runs fn transactionally. A context that already carries a
// transaction is joined as-is: the outermost caller owns commit and rollback,
// which is what makes a multi-line sale all-or-nothing.
//
// The redis row lock is advisory and released per operation, while FOR UPDATE
// locks are held to the outermost commit. lock_timeout bounds that second wait:
// a contender stuck behind a still-open transaction fails fast as Busy instead
// of queueing unboundedly.
func (m *TxManager) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return mapLockTimeout(fn(ctx))
	}

	tx, err := m.DB.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	timeout := m.RowLockTimeout
	if timeout <= 0 {
		timeout = defaultRowLockTimeout
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())); err != nil {
		_ = tx.Rollback()
		return errors.Wrap(err, "set lock timeout")
	}

	if err := fn(context.WithValue(ctx, txCtxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return mapLockTimeout(err)
	}

	return errors.Wrap(tx.Commit(), "commit transaction")
}

func (m *TxManager) InTransaction(ctx context.Context) bool {
	return txFromContext(ctx) != nil
}

// pqLockNotAvailable is raised when lock_timeout expires during a lock wait.
const pqLockNotAvailable = pq.ErrorCode("55P03")

// mapLockTimeout surfaces an expired lock wait as the retryable Busy error.
func mapLockTimeout(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqLockNotAvailable {
		return stock.ErrBusy
	}
	return err
}
