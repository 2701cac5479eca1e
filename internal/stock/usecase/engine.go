package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

func (uc *stockUseCase) DecrementForSale(ctx context.Context, input *dto.AdjustmentInput) (*dto.AdjustmentResult, error) {
	if input.Quantity <= 0 {
		return nil, stock.ErrInvalidQuantity
	}

	ownsTx := !uc.txm.InTransaction(ctx)
	release, err := uc.acquireRowLock(ctx, input.ProductID, input.BranchID, input.VariantLabel)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *dto.AdjustmentResult
	err = uc.txm.Transaction(ctx, func(ctx context.Context) error {
		t, err := uc.resolveTarget(ctx, input.ProductID, input.BranchID, input.VariantLabel)
		if err != nil {
			return err
		}

		row, err := t.shape.Lock(ctx)
		if err != nil {
			return err
		}
		if row.quantity < input.Quantity {
			return &stock.InsufficientStockError{Available: row.quantity, Requested: input.Quantity}
		}

		newQty := row.quantity - input.Quantity
		if err := t.shape.Write(ctx, row, newQty); err != nil {
			return err
		}
		m, err := uc.appendMovement(ctx, t, model.MovementOut, -input.Quantity, row.quantity, newQty, model.RefSale, refID(input.SaleRef), "")
		if err != nil {
			return err
		}
		if err := uc.repo.AddProductStock(ctx, input.ProductID, -input.Quantity); err != nil {
			return err
		}

		res = &dto.AdjustmentResult{
			ProductID:    input.ProductID,
			BranchID:     input.BranchID,
			VariantLabel: t.shape.Variant(),
			Quantity:     newQty,
			Movement:     m,
			LowStock:     lowStockEvent(input.ProductID, input.BranchID, t.shape.Variant(), newQty, row.threshold),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.publishAfterCommit(ctx, ownsTx, res.LowStock)
	return res, nil
}

func (uc *stockUseCase) RestoreForCancellation(ctx context.Context, input *dto.AdjustmentInput) (*dto.AdjustmentResult, error) {
	if input.Quantity <= 0 {
		return nil, stock.ErrInvalidQuantity
	}

	release, err := uc.acquireRowLock(ctx, input.ProductID, input.BranchID, input.VariantLabel)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *dto.AdjustmentResult
	err = uc.txm.Transaction(ctx, func(ctx context.Context) error {
		t, err := uc.resolveTarget(ctx, input.ProductID, input.BranchID, input.VariantLabel)
		if err != nil {
			return err
		}

		// No ceiling: restoring more than was ever sold is accepted, the
		// ledger is the audit mechanism. Dedup of repeated cancellations is
		// the sales collaborator's responsibility.
		row, err := t.shape.LockOrCreate(ctx)
		if err != nil {
			return err
		}

		newQty := row.quantity + input.Quantity
		if err := t.shape.Write(ctx, row, newQty); err != nil {
			return err
		}
		m, err := uc.appendMovement(ctx, t, model.MovementIn, input.Quantity, row.quantity, newQty, model.RefSaleCancellation, refID(input.SaleRef), "")
		if err != nil {
			return err
		}
		if err := uc.repo.AddProductStock(ctx, input.ProductID, input.Quantity); err != nil {
			return err
		}

		res = &dto.AdjustmentResult{
			ProductID:    input.ProductID,
			BranchID:     input.BranchID,
			VariantLabel: t.shape.Variant(),
			Quantity:     newQty,
			Movement:     m,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (uc *stockUseCase) SetAbsolute(ctx context.Context, input *dto.SetAbsoluteInput) (*dto.AdjustmentResult, error) {
	return uc.setAbsolute(ctx, input, model.RefAdjustment, nil)
}

// setAbsolute is shared by manual corrections (reference: adjustment) and bulk
// seeding (reference: import with the batch id).
func (uc *stockUseCase) setAbsolute(ctx context.Context, input *dto.SetAbsoluteInput, refKind model.ReferenceKind, ref *string) (*dto.AdjustmentResult, error) {
	if input.NewQuantity < 0 {
		return nil, stock.ErrInvalidQuantity
	}
	if input.MinThreshold != nil && *input.MinThreshold < 0 {
		return nil, stock.ErrInvalidQuantity
	}

	release, err := uc.acquireRowLock(ctx, input.ProductID, input.BranchID, input.VariantLabel)
	if err != nil {
		return nil, err
	}
	defer release()

	var res *dto.AdjustmentResult
	err = uc.txm.Transaction(ctx, func(ctx context.Context) error {
		t, err := uc.resolveTarget(ctx, input.ProductID, input.BranchID, input.VariantLabel)
		if err != nil {
			return err
		}

		row, err := t.shape.LockOrCreate(ctx)
		if err != nil {
			return err
		}
		if input.MinThreshold != nil {
			if err := t.shape.WriteThreshold(ctx, row, *input.MinThreshold); err != nil {
				return err
			}
		}

		res = &dto.AdjustmentResult{
			ProductID:    input.ProductID,
			BranchID:     input.BranchID,
			VariantLabel: t.shape.Variant(),
			Quantity:     input.NewQuantity,
		}

		delta := input.NewQuantity - row.quantity
		if delta == 0 {
			// Nothing moved; a zero-delta ledger row would only add noise.
			return nil
		}

		if err := t.shape.Write(ctx, row, input.NewQuantity); err != nil {
			return err
		}
		m, err := uc.appendMovement(ctx, t, model.MovementAdjustment, delta, row.quantity, input.NewQuantity, refKind, ref, input.Note)
		if err != nil {
			return err
		}
		if err := uc.repo.AddProductStock(ctx, input.ProductID, delta); err != nil {
			return err
		}
		res.Movement = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (uc *stockUseCase) TransferBetweenBranches(ctx context.Context, input *dto.TransferInput) (*dto.TransferResult, error) {
	if input.Quantity <= 0 {
		return nil, stock.ErrInvalidQuantity
	}
	if input.FromBranchID == input.ToBranchID {
		return nil, stock.ErrSameBranch
	}

	ownsTx := !uc.txm.InTransaction(ctx)

	// Both row locks are taken in sorted branch order so that two transfers
	// touching the same pair of rows can never deadlock.
	firstBranch, secondBranch := input.FromBranchID, input.ToBranchID
	if secondBranch < firstBranch {
		firstBranch, secondBranch = secondBranch, firstBranch
	}
	releaseFirst, err := uc.acquireRowLock(ctx, input.ProductID, firstBranch, input.VariantLabel)
	if err != nil {
		return nil, err
	}
	defer releaseFirst()
	releaseSecond, err := uc.acquireRowLock(ctx, input.ProductID, secondBranch, input.VariantLabel)
	if err != nil {
		return nil, err
	}
	defer releaseSecond()

	var res *dto.TransferResult
	err = uc.txm.Transaction(ctx, func(ctx context.Context) error {
		source, err := uc.resolveTarget(ctx, input.ProductID, input.FromBranchID, input.VariantLabel)
		if err != nil {
			return err
		}
		dest, err := uc.resolveTarget(ctx, input.ProductID, input.ToBranchID, input.VariantLabel)
		if err != nil {
			return err
		}

		var sourceRow, destRow *rowState
		lockSource := func() (err error) { sourceRow, err = source.shape.Lock(ctx); return }
		lockDest := func() (err error) { destRow, err = dest.shape.LockOrCreate(ctx); return }
		ordered := []func() error{lockSource, lockDest}
		if input.ToBranchID < input.FromBranchID {
			ordered = []func() error{lockDest, lockSource}
		}
		for _, lock := range ordered {
			if err := lock(); err != nil {
				return err
			}
		}

		if sourceRow.quantity < input.Quantity {
			return &stock.InsufficientStockError{Available: sourceRow.quantity, Requested: input.Quantity}
		}

		newSourceQty := sourceRow.quantity - input.Quantity
		newDestQty := destRow.quantity + input.Quantity

		if err := source.shape.Write(ctx, sourceRow, newSourceQty); err != nil {
			return err
		}
		if err := dest.shape.Write(ctx, destRow, newDestQty); err != nil {
			return err
		}

		// Two ledger rows share the transfer reference so they correlate.
		if _, err := uc.appendMovement(ctx, source, model.MovementOut, -input.Quantity, sourceRow.quantity, newSourceQty, model.RefTransfer, refID(input.TransferRef), ""); err != nil {
			return err
		}
		if _, err := uc.appendMovement(ctx, dest, model.MovementIn, input.Quantity, destRow.quantity, newDestQty, model.RefTransfer, refID(input.TransferRef), ""); err != nil {
			return err
		}

		// The product total is conserved by a transfer, so the derived
		// products.stock_quantity is left alone.
		res = &dto.TransferResult{
			ProductID:    input.ProductID,
			FromBranchID: input.FromBranchID,
			ToBranchID:   input.ToBranchID,
			FromQuantity: newSourceQty,
			ToQuantity:   newDestQty,
			LowStock:     lowStockEvent(input.ProductID, input.FromBranchID, source.shape.Variant(), newSourceQty, sourceRow.threshold),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.publishAfterCommit(ctx, ownsTx, res.LowStock)
	return res, nil
}

// BulkSeed is best-effort by contract: each entry runs as its own unit of work
// and a bad row is reported, not fatal to the batch.
func (uc *stockUseCase) BulkSeed(ctx context.Context, input *dto.BulkSeedInput) (*dto.BulkSeedResult, error) {
	res := &dto.BulkSeedResult{}
	for i, entry := range input.Entries {
		_, err := uc.setAbsolute(ctx, &dto.SetAbsoluteInput{
			ProductID:    entry.ProductID,
			BranchID:     entry.BranchID,
			VariantLabel: entry.VariantLabel,
			NewQuantity:  entry.Quantity,
			MinThreshold: entry.MinThreshold,
			Note:         "bulk seed",
		}, model.RefImport, refID(input.BatchRef))
		if err != nil {
			uc.logger.Warn("bulk seed entry failed",
				zap.Int("index", i),
				zap.String("product_id", entry.ProductID),
				zap.String("branch_id", entry.BranchID),
				zap.Error(err),
			)
			res.Failed++
			res.Errors = append(res.Errors, dto.SeedError{
				Index:     i,
				ProductID: entry.ProductID,
				BranchID:  entry.BranchID,
				Error:     err.Error(),
			})
			continue
		}
		res.Succeeded++
	}
	return res, nil
}
