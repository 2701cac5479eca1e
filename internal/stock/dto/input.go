package dto

// AdjustmentInput drives DecrementForSale and RestoreForCancellation.
// SaleRef is the originating sale's identifier and lands on the movement as
// the reference id.
type AdjustmentInput struct {
	ProductID    string
	BranchID     string
	VariantLabel *string
	Quantity     int64
	SaleRef      string
}

type SetAbsoluteInput struct {
	ProductID    string
	BranchID     string
	VariantLabel *string
	NewQuantity  int64
	MinThreshold *int64 // optional reorder point update, nil leaves it untouched
	Note         string
}

type TransferInput struct {
	ProductID    string
	FromBranchID string
	ToBranchID   string
	VariantLabel *string
	Quantity     int64
	TransferRef  string
}

type SeedEntry struct {
	ProductID    string
	BranchID     string
	VariantLabel *string
	Quantity     int64
	MinThreshold *int64
}

type BulkSeedInput struct {
	BatchRef string
	Entries  []SeedEntry
}
