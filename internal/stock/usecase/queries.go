package usecase

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

// GetStock reads one row as a zero object: an absent row is quantity 0, not an
// error.
func (uc *stockUseCase) GetStock(ctx context.Context, productID, branchID string, variantLabel *string) (*dto.StockLevel, error) {
	t, err := uc.resolveTarget(ctx, productID, branchID, variantLabel)
	if err != nil {
		return nil, err
	}
	row, err := t.shape.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.StockLevel{
		ProductID:    productID,
		BranchID:     branchID,
		VariantLabel: t.shape.Variant(),
		Quantity:     row.quantity,
		MinThreshold: row.threshold,
	}, nil
}

func (uc *stockUseCase) ListLowStock(ctx context.Context, branchID *string, page, pageSize int) ([]dto.LowStockRow, int, error) {
	return uc.repo.LowStockRows(ctx, branchID, page, pageSize)
}

func (uc *stockUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.MovementEntry, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}
