package usecase

import "github.com/fekuna/omnipos-inventory-service/internal/stock/dto"

// IsLowStock reports whether a post-adjustment quantity is at or below the
// row's reorder point. Zero quantity counts as low; a zero threshold disables
// alerting for the row.
func IsLowStock(quantity, threshold int64) bool {
	return threshold > 0 && quantity <= threshold
}

func lowStockEvent(productID, branchID string, variant *string, quantity, threshold int64) *dto.LowStockEvent {
	if !IsLowStock(quantity, threshold) {
		return nil
	}
	return &dto.LowStockEvent{
		ProductID:    productID,
		BranchID:     branchID,
		VariantLabel: variant,
		Quantity:     quantity,
		Threshold:    threshold,
	}
}
