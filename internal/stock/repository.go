package stock

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

// Repository is the persistence surface of the stock domain. All row-level
// methods are transaction-aware: when the context carries a transaction (see
// TxManager) they run inside it.
type Repository interface {
	// Product read model
	GetProduct(ctx context.Context, productID string) (*model.Product, error)
	VariantExists(ctx context.Context, productID, variantLabel string) (bool, error)

	// Branch-level rows
	GetRecordForUpdate(ctx context.Context, productID, branchID string) (*model.StockRecord, error)
	EnsureRecord(ctx context.Context, productID, branchID string) error
	UpdateRecordQuantity(ctx context.Context, recordID string, quantity int64) error
	UpdateRecordThreshold(ctx context.Context, recordID string, threshold int64) error

	// Variant-level rows
	GetVariantRecordForUpdate(ctx context.Context, productID, branchID, variantLabel string) (*model.VariantStockRecord, error)
	EnsureVariantRecord(ctx context.Context, productID, branchID, variantLabel string) error
	UpdateVariantRecordQuantity(ctx context.Context, recordID string, quantity int64) error
	UpdateVariantRecordThreshold(ctx context.Context, recordID string, threshold int64) error

	// Non-locking reads
	GetRecord(ctx context.Context, productID, branchID string) (*model.StockRecord, error)
	GetVariantRecord(ctx context.Context, productID, branchID, variantLabel string) (*model.VariantStockRecord, error)
	LowStockRows(ctx context.Context, branchID *string, page, pageSize int) ([]dto.LowStockRow, int, error)

	// Movement ledger (append-only)
	InsertMovement(ctx context.Context, m *model.MovementEntry) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.MovementEntry, int, error)

	// Derived product total
	AddProductStock(ctx context.Context, productID string, delta int64) error
	SetProductStock(ctx context.Context, productID string, total int64) error

	// Aggregate sums over the authoritative shape
	SumStock(ctx context.Context, productID string, variantShape bool) (int64, error)
	SumStockForBranch(ctx context.Context, productID, branchID string, variantShape bool) (int64, error)
	BranchesWithStock(ctx context.Context, productID string, variantShape bool) ([]string, error)
	ProductIDsWithStock(ctx context.Context) ([]string, error)
}
