package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	"github.com/fekuna/omnipos-inventory-service/pkg/broker"
)

const EventTypeLowStock = "stock.low"

// Envelope is the event shape published to the notifications topic; the
// dispatcher on the other side formats and fans out the actual alert.
type Envelope struct {
	EventID   string             `json:"event_id"`
	EventType string             `json:"event_type"`
	Payload   *dto.LowStockEvent `json:"payload"`
	Timestamp time.Time          `json:"timestamp"`
}

type LowStockPublisher struct {
	producer *broker.KafkaProducer
}

func NewLowStockPublisher(producer *broker.KafkaProducer) *LowStockPublisher {
	return &LowStockPublisher{producer: producer}
}

func (p *LowStockPublisher) PublishLowStock(ctx context.Context, event *dto.LowStockEvent) error {
	envelope := Envelope{
		EventID:   uuid.New().String(),
		EventType: EventTypeLowStock,
		Payload:   event,
		Timestamp: time.Now(),
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	// Keyed per row so alerts for the same product/branch stay ordered.
	key := event.ProductID + ":" + event.BranchID
	return p.producer.Publish(ctx, []byte(key), value)
}
