package model

import "time"

// MovementKind classifies a ledger entry by the direction of the change.
type MovementKind string

const (
	MovementIn         MovementKind = "in"
	MovementOut        MovementKind = "out"
	MovementAdjustment MovementKind = "adjustment"
)

// ReferenceKind ties a movement back to the business event that caused it.
type ReferenceKind string

const (
	RefSale             ReferenceKind = "sale"
	RefSaleCancellation ReferenceKind = "sale_cancellation"
	RefTransfer         ReferenceKind = "transfer"
	RefImport           ReferenceKind = "import"
	RefAdjustment       ReferenceKind = "adjustment"
)

// StockRecord is the current quantity of a product at one branch.
// Used when the product does not track variants. At most one row exists per
// (product, branch) pair; an absent row means quantity zero. Rows are created
// lazily on first adjustment and never deleted.
type StockRecord struct {
	ID           string    `db:"id" json:"id"`
	ProductID    string    `db:"product_id" json:"product_id"`
	BranchID     string    `db:"branch_id" json:"branch_id"`
	Quantity     int64     `db:"quantity" json:"quantity"`
	MinThreshold int64     `db:"min_threshold" json:"min_threshold"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// VariantStockRecord is the same thing one level finer: per (product, branch,
// variant label). The product's branch quantity is the sum of its variant rows.
type VariantStockRecord struct {
	ID           string    `db:"id" json:"id"`
	ProductID    string    `db:"product_id" json:"product_id"`
	BranchID     string    `db:"branch_id" json:"branch_id"`
	VariantLabel string    `db:"variant_label" json:"variant_label"`
	Quantity     int64     `db:"quantity" json:"quantity"`
	MinThreshold int64     `db:"min_threshold" json:"min_threshold"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// MovementEntry is one immutable row of the stock ledger. Inserted in the same
// transaction as the quantity change it records, never updated or deleted.
type MovementEntry struct {
	ID             string        `db:"id" json:"id"`
	ProductID      string        `db:"product_id" json:"product_id"`
	BranchID       string        `db:"branch_id" json:"branch_id"`
	VariantLabel   *string       `db:"variant_label" json:"variant_label"`
	MovementKind   MovementKind  `db:"movement_kind" json:"movement_kind"`
	Delta          int64         `db:"delta" json:"delta"`
	QuantityBefore int64         `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int64         `db:"quantity_after" json:"quantity_after"`
	ReferenceKind  ReferenceKind `db:"reference_kind" json:"reference_kind"`
	ReferenceID    *string       `db:"reference_id" json:"reference_id"`
	Note           string        `db:"note" json:"note"`
	CreatedBy      *string       `db:"created_by" json:"created_by"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}
