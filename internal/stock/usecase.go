package stock

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

// UseCase is the stock adjustment engine plus the aggregate reconciler: the
// only component allowed to mutate stock rows. Every mutating operation is one
// atomic unit of work — quantity change, ledger entry and derived product
// total move together or not at all. When the context already carries a
// transaction the operation joins it, so a multi-line sale rolls back as one.
type UseCase interface {
	DecrementForSale(ctx context.Context, input *dto.AdjustmentInput) (*dto.AdjustmentResult, error)
	RestoreForCancellation(ctx context.Context, input *dto.AdjustmentInput) (*dto.AdjustmentResult, error)
	SetAbsolute(ctx context.Context, input *dto.SetAbsoluteInput) (*dto.AdjustmentResult, error)
	TransferBetweenBranches(ctx context.Context, input *dto.TransferInput) (*dto.TransferResult, error)
	BulkSeed(ctx context.Context, input *dto.BulkSeedInput) (*dto.BulkSeedResult, error)

	// Reads
	GetStock(ctx context.Context, productID, branchID string, variantLabel *string) (*dto.StockLevel, error)
	ListLowStock(ctx context.Context, branchID *string, page, pageSize int) ([]dto.LowStockRow, int, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.MovementEntry, int, error)

	// Aggregates
	TotalStock(ctx context.Context, productID string) (int64, error)
	StockForBranch(ctx context.Context, productID, branchID string) (int64, error)
	BranchesWithStock(ctx context.Context, productID string) ([]string, error)
	Reconcile(ctx context.Context, productID string) (int64, error)
	ReconcileAll(ctx context.Context) error
}
