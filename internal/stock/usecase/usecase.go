package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

// Options tunes the per-row lock behavior.
type Options struct {
	LockTTL        time.Duration
	LockRetries    int
	LockRetryDelay time.Duration
}

func (o *Options) withDefaults() Options {
	out := Options{LockTTL: 5 * time.Second, LockRetries: 3, LockRetryDelay: 100 * time.Millisecond}
	if o == nil {
		return out
	}
	if o.LockTTL > 0 {
		out.LockTTL = o.LockTTL
	}
	if o.LockRetries > 0 {
		out.LockRetries = o.LockRetries
	}
	if o.LockRetryDelay > 0 {
		out.LockRetryDelay = o.LockRetryDelay
	}
	return out
}

type stockUseCase struct {
	repo     stock.Repository
	txm      stock.TxManager
	locker   stock.Locker
	notifier stock.Notifier
	logger   logger.ZapLogger
	opts     Options
}

func NewStockUseCase(repo stock.Repository, txm stock.TxManager, locker stock.Locker, notifier stock.Notifier, log logger.ZapLogger, opts *Options) stock.UseCase {
	return &stockUseCase{
		repo:     repo,
		txm:      txm,
		locker:   locker,
		notifier: notifier,
		logger:   log,
		opts:     opts.withDefaults(),
	}
}

// target is a resolved (product, branch[, variant]) destination with the shape
// matching the product's has_variants flag.
type target struct {
	product  *model.Product
	branchID string
	shape    stockShape
}

func (uc *stockUseCase) resolveTarget(ctx context.Context, productID, branchID string, variant *string) (*target, error) {
	p, err := uc.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, stock.ErrProductNotFound
	}

	if p.HasVariants {
		if variant == nil || *variant == "" {
			return nil, stock.ErrVariantRequired
		}
		ok, err := uc.repo.VariantExists(ctx, productID, *variant)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, stock.ErrVariantNotFound
		}
		return &target{
			product:  p,
			branchID: branchID,
			shape:    &variantShape{repo: uc.repo, productID: productID, branchID: branchID, label: *variant},
		}, nil
	}

	if variant != nil && *variant != "" {
		return nil, stock.ErrVariantNotFound
	}
	return &target{
		product:  p,
		branchID: branchID,
		shape:    &plainShape{repo: uc.repo, productID: productID, branchID: branchID},
	}, nil
}

// acquireRowLock takes the distributed lock for one stock row with bounded
// retries; exhaustion surfaces as ErrBusy so the caller can retry the whole
// operation instead of waiting on an open-ended queue.
func (uc *stockUseCase) acquireRowLock(ctx context.Context, productID, branchID string, variant *string) (func(), error) {
	key := fmt.Sprintf("lock:stock:%s:%s", productID, branchID)
	if variant != nil && *variant != "" {
		key += ":" + *variant
	}
	value := uuid.New().String()

	for i := 0; i < uc.opts.LockRetries; i++ {
		ok, err := uc.locker.AcquireLock(ctx, key, value, uc.opts.LockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire stock lock", zap.String("key", key), zap.Error(err))
		}
		if ok {
			release := func() {
				if _, err := uc.locker.ReleaseLock(ctx, key, value); err != nil {
					uc.logger.Warn("failed to release stock lock", zap.String("key", key), zap.Error(err))
				}
			}
			return release, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(uc.opts.LockRetryDelay):
		}
	}
	return nil, stock.ErrBusy
}

// appendMovement writes one ledger row. The before/after/delta agreement and
// the non-negative result are re-checked here: a mismatch means an engine bug,
// and the transaction is refused rather than committed with a bad ledger.
func (uc *stockUseCase) appendMovement(ctx context.Context, t *target, kind model.MovementKind, delta, before, after int64, refKind model.ReferenceKind, refID *string, note string) (*model.MovementEntry, error) {
	if after != before+delta || after < 0 {
		err := &stock.IntegrityError{
			ProductID: t.product.ID,
			BranchID:  t.branchID,
			Detail:    fmt.Sprintf("movement %s before=%d delta=%d after=%d", kind, before, delta, after),
		}
		uc.logger.Error("refusing to commit inconsistent movement", zap.Error(err))
		return nil, err
	}

	var createdBy *string
	if actor := auth.ActorID(ctx); actor != "" {
		createdBy = &actor
	}

	m := &model.MovementEntry{
		ID:             uuid.New().String(),
		ProductID:      t.product.ID,
		BranchID:       t.branchID,
		VariantLabel:   t.shape.Variant(),
		MovementKind:   kind,
		Delta:          delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceKind:  refKind,
		ReferenceID:    refID,
		Note:           note,
		CreatedBy:      createdBy,
		CreatedAt:      time.Now(),
	}
	if err := uc.repo.InsertMovement(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// publishAfterCommit emits a low-stock event once the operation's transaction
// has committed. When the operation joined an ambient transaction the event is
// left on the result for the transaction owner; publishing it here would leak
// events for work that may still roll back.
func (uc *stockUseCase) publishAfterCommit(ctx context.Context, ownsTx bool, event *dto.LowStockEvent) {
	if event == nil || !ownsTx || uc.notifier == nil {
		return
	}
	if err := uc.notifier.PublishLowStock(ctx, event); err != nil {
		uc.logger.Error("failed to publish low stock event",
			zap.String("product_id", event.ProductID),
			zap.String("branch_id", event.BranchID),
			zap.Error(err),
		)
	}
}

func refID(ref string) *string {
	if ref == "" {
		return nil
	}
	return &ref
}
