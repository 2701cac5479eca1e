package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/internal/stock"
)

// The reconciler owns the derived products.stock_quantity field. The engine
// keeps it correct incrementally on every mutation; Reconcile re-derives it
// from the authoritative rows to heal drift from out-of-band writes.

func (uc *stockUseCase) TotalStock(ctx context.Context, productID string) (int64, error) {
	p, err := uc.repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, stock.ErrProductNotFound
	}
	return uc.repo.SumStock(ctx, productID, p.HasVariants)
}

func (uc *stockUseCase) StockForBranch(ctx context.Context, productID, branchID string) (int64, error) {
	p, err := uc.repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, stock.ErrProductNotFound
	}
	return uc.repo.SumStockForBranch(ctx, productID, branchID, p.HasVariants)
}

func (uc *stockUseCase) BranchesWithStock(ctx context.Context, productID string) ([]string, error) {
	p, err := uc.repo.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, stock.ErrProductNotFound
	}
	return uc.repo.BranchesWithStock(ctx, productID, p.HasVariants)
}

// Reconcile recomputes the product's derived total from the authoritative
// shape and overwrites it. Idempotent; returns the reconciled total.
//
// The summed rows are not locked, so under READ COMMITTED a mutation that
// commits between the sum and the overwrite leaves the total stale until the
// next sweep. That is acceptable for read-repair: the engine keeps the total
// correct incrementally, and the sweep converges on the next pass.
func (uc *stockUseCase) Reconcile(ctx context.Context, productID string) (int64, error) {
	var total int64
	err := uc.txm.Transaction(ctx, func(ctx context.Context) error {
		p, err := uc.repo.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return stock.ErrProductNotFound
		}

		total, err = uc.repo.SumStock(ctx, productID, p.HasVariants)
		if err != nil {
			return err
		}

		// The non-authoritative shape must stay at zero; nonzero rows there
		// mean an out-of-band write bypassed the engine.
		other, err := uc.repo.SumStock(ctx, productID, !p.HasVariants)
		if err != nil {
			return err
		}
		if other != 0 {
			uc.logger.Warn("non-authoritative stock shape holds quantity",
				zap.String("product_id", productID),
				zap.Bool("has_variants", p.HasVariants),
				zap.Int64("stray_quantity", other),
			)
		}

		if p.StockQuantity != total {
			uc.logger.Info("healing drifted product stock total",
				zap.String("product_id", productID),
				zap.Int64("was", p.StockQuantity),
				zap.Int64("now", total),
			)
		}
		return uc.repo.SetProductStock(ctx, productID, total)
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ReconcileAll sweeps every product that has stock rows. Per-product failures
// are logged and skipped so one bad product does not stall the sweep.
func (uc *stockUseCase) ReconcileAll(ctx context.Context) error {
	ids, err := uc.repo.ProductIDsWithStock(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := uc.Reconcile(ctx, id); err != nil {
			uc.logger.Error("reconcile failed", zap.String("product_id", id), zap.Error(err))
		}
	}
	return nil
}
