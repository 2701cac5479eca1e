package stock

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
)

// Notifier hands low-stock events to the notification dispatcher. Delivery
// transport, fan-out and repeat-alert suppression live on the other side.
type Notifier interface {
	PublishLowStock(ctx context.Context, event *dto.LowStockEvent) error
}
