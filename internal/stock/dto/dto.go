package dto

import (
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// AdjustmentResult reports a single-row engine operation. LowStock is non-nil
// when the post-adjustment quantity tripped the row's threshold; whoever owns
// the enclosing transaction publishes it after commit.
type AdjustmentResult struct {
	ProductID    string
	BranchID     string
	VariantLabel *string
	Quantity     int64
	Movement     *model.MovementEntry
	LowStock     *LowStockEvent
}

type TransferResult struct {
	ProductID    string
	FromBranchID string
	ToBranchID   string
	FromQuantity int64
	ToQuantity   int64
	LowStock     *LowStockEvent
}

type SeedError struct {
	Index     int    `json:"index"`
	ProductID string `json:"product_id"`
	BranchID  string `json:"branch_id"`
	Error     string `json:"error"`
}

// BulkSeedResult collects per-row outcomes; one bad row never aborts the batch.
type BulkSeedResult struct {
	Succeeded int
	Failed    int
	Errors    []SeedError
}

// LowStockEvent is handed to the notification dispatcher. The detector does no
// deduplication; repeat-alert suppression is the dispatcher's job.
type LowStockEvent struct {
	ProductID    string  `json:"product_id"`
	BranchID     string  `json:"branch_id"`
	VariantLabel *string `json:"variant_label,omitempty"`
	Quantity     int64   `json:"quantity"`
	Threshold    int64   `json:"threshold"`
}

// StockLevel is the zero-object read of one row: absent rows come back with
// quantity 0 rather than an error.
type StockLevel struct {
	ProductID    string
	BranchID     string
	VariantLabel *string
	Quantity     int64
	MinThreshold int64
}

// LowStockRow is one row of the low-stock listing, covering both shapes.
type LowStockRow struct {
	ProductID    string  `db:"product_id"`
	BranchID     string  `db:"branch_id"`
	VariantLabel *string `db:"variant_label"`
	Quantity     int64   `db:"quantity"`
	MinThreshold int64   `db:"min_threshold"`
}

type MovementFilters struct {
	ProductID     string
	BranchID      string
	VariantLabel  *string
	MovementKind  string
	ReferenceKind string
	StartDate     *time.Time
	EndDate       *time.Time
	Page          int
	PageSize      int
}
