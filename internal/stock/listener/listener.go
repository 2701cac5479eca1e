package listener

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fekuna/omnipos-inventory-service/internal/auth"
	"github.com/fekuna/omnipos-inventory-service/internal/stock"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

const (
	EventSaleCompleted = "SaleCompleted"
	EventSaleCancelled = "SaleCancelled"
)

// SalesListener replays sale lifecycle events through the adjustment engine.
type SalesListener struct {
	consumer *broker.KafkaConsumer
	uc       stock.UseCase
	txm      stock.TxManager
	notifier stock.Notifier
	logger   logger.ZapLogger
}

func NewSalesListener(consumer *broker.KafkaConsumer, uc stock.UseCase, txm stock.TxManager, notifier stock.Notifier, log logger.ZapLogger) *SalesListener {
	return &SalesListener{
		consumer: consumer,
		uc:       uc,
		txm:      txm,
		notifier: notifier,
		logger:   log,
	}
}

func (l *SalesListener) Start(ctx context.Context) {
	l.logger.Info("Starting sales Kafka listener")
	ctx = auth.WithActorID(ctx, "system")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping sales Kafka listener")
			return
		default:
			msg, err := l.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}
			l.ProcessMessage(ctx, msg.Value)
		}
	}
}

type SaleEvent struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   SalePayload `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

type SalePayload struct {
	ID       string            `json:"id"`
	BranchID string            `json:"branch_id"`
	Items    []SaleItemPayload `json:"items"`
}

type SaleItemPayload struct {
	ProductID    string  `json:"product_id"`
	VariantLabel *string `json:"variant_label"`
	Quantity     int64   `json:"quantity"`
}

func (l *SalesListener) ProcessMessage(ctx context.Context, value []byte) {
	var event SaleEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal sale event", zap.Error(err))
		return
	}

	switch event.EventType {
	case EventSaleCompleted:
		l.applySale(ctx, &event)
	case EventSaleCancelled:
		l.restoreSale(ctx, &event)
	}
}

// applySale decrements every line item inside one transaction: if any item
// fails (insufficient stock elsewhere in the basket), the whole sale rolls
// back and nothing is visible. Low-stock events are published only after the
// transaction commits.
func (l *SalesListener) applySale(ctx context.Context, event *SaleEvent) {
	l.logger.Info("Processing sale", zap.String("sale_id", event.Payload.ID))

	items := sortedItems(event.Payload.Items)
	var lowStock []*dto.LowStockEvent
	err := l.txm.Transaction(ctx, func(ctx context.Context) error {
		for _, item := range items {
			res, err := l.uc.DecrementForSale(ctx, &dto.AdjustmentInput{
				ProductID:    item.ProductID,
				BranchID:     event.Payload.BranchID,
				VariantLabel: item.VariantLabel,
				Quantity:     item.Quantity,
				SaleRef:      event.Payload.ID,
			})
			if err != nil {
				return err
			}
			if res.LowStock != nil {
				lowStock = append(lowStock, res.LowStock)
			}
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to apply sale, rolled back",
			zap.String("sale_id", event.Payload.ID),
			zap.Error(err),
		)
		return
	}

	for _, ev := range lowStock {
		if err := l.notifier.PublishLowStock(ctx, ev); err != nil {
			l.logger.Error("Failed to publish low stock event",
				zap.String("product_id", ev.ProductID),
				zap.Error(err),
			)
		}
	}
}

func (l *SalesListener) restoreSale(ctx context.Context, event *SaleEvent) {
	l.logger.Info("Processing sale cancellation", zap.String("sale_id", event.Payload.ID))

	items := sortedItems(event.Payload.Items)
	err := l.txm.Transaction(ctx, func(ctx context.Context) error {
		for _, item := range items {
			_, err := l.uc.RestoreForCancellation(ctx, &dto.AdjustmentInput{
				ProductID:    item.ProductID,
				BranchID:     event.Payload.BranchID,
				VariantLabel: item.VariantLabel,
				Quantity:     item.Quantity,
				SaleRef:      event.Payload.ID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		l.logger.Error("Failed to restore sale, rolled back",
			zap.String("sale_id", event.Payload.ID),
			zap.Error(err),
		)
	}
}

// sortedItems fixes the row-lock acquisition order across concurrent sales so
// two baskets touching the same products cannot deadlock.
func sortedItems(items []SaleItemPayload) []SaleItemPayload {
	out := make([]SaleItemPayload, len(items))
	copy(out, items)
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return deref(out[i].VariantLabel) < deref(out[j].VariantLabel)
	})
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
