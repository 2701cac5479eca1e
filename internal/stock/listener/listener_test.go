package listener_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-inventory-service/internal/stock"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/stock/listener"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
)

// fakeEngine records adjustment calls. Unimplemented UseCase methods panic via
// the embedded nil interface; the listener must never reach them.
type fakeEngine struct {
	stock.UseCase
	decrements  []*dto.AdjustmentInput
	restores    []*dto.AdjustmentInput
	failProduct string
	lowProduct  string
}

func (f *fakeEngine) DecrementForSale(ctx context.Context, input *dto.AdjustmentInput) (*dto.AdjustmentResult, error) {
	f.decrements = append(f.decrements, input)
	if input.ProductID == f.failProduct {
		return nil, &stock.InsufficientStockError{Available: 0, Requested: input.Quantity}
	}
	res := &dto.AdjustmentResult{ProductID: input.ProductID, BranchID: input.BranchID}
	if input.ProductID == f.lowProduct {
		res.LowStock = &dto.LowStockEvent{ProductID: input.ProductID, BranchID: input.BranchID, Quantity: 1, Threshold: 5}
	}
	return res, nil
}

func (f *fakeEngine) RestoreForCancellation(ctx context.Context, input *dto.AdjustmentInput) (*dto.AdjustmentResult, error) {
	f.restores = append(f.restores, input)
	return &dto.AdjustmentResult{ProductID: input.ProductID, BranchID: input.BranchID}, nil
}

type passTxm struct{}

func (passTxm) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
func (passTxm) InTransaction(ctx context.Context) bool { return true }

type fakeNotifier struct {
	events []*dto.LowStockEvent
}

func (n *fakeNotifier) PublishLowStock(ctx context.Context, ev *dto.LowStockEvent) error {
	n.events = append(n.events, ev)
	return nil
}

func saleEvent(t *testing.T, eventType, saleID, branchID string, items []listener.SaleItemPayload) []byte {
	t.Helper()
	value, err := json.Marshal(listener.SaleEvent{
		EventID:   "ev-1",
		EventType: eventType,
		Payload:   listener.SalePayload{ID: saleID, BranchID: branchID, Items: items},
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return value
}

func label(s string) *string { return &s }

func TestProcessMessageSaleCompleted(t *testing.T) {
	engine := &fakeEngine{lowProduct: "p1"}
	notifier := &fakeNotifier{}
	l := listener.NewSalesListener(nil, engine, passTxm{}, notifier, logger.NewNop())

	// Items arrive unsorted; the listener fixes the lock order.
	l.ProcessMessage(context.Background(), saleEvent(t, listener.EventSaleCompleted, "sale-1", "b1", []listener.SaleItemPayload{
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", VariantLabel: label("M"), Quantity: 2},
	}))

	require.Len(t, engine.decrements, 2)
	assert.Equal(t, "p1", engine.decrements[0].ProductID)
	assert.Equal(t, "p2", engine.decrements[1].ProductID)
	assert.Equal(t, "sale-1", engine.decrements[0].SaleRef)
	assert.Equal(t, "b1", engine.decrements[0].BranchID)
	require.NotNil(t, engine.decrements[0].VariantLabel)
	assert.Equal(t, "M", *engine.decrements[0].VariantLabel)

	// The low-stock event collected inside the transaction went out afterwards.
	require.Len(t, notifier.events, 1)
	assert.Equal(t, "p1", notifier.events[0].ProductID)
}

func TestProcessMessageSaleFailureSuppressesEvents(t *testing.T) {
	engine := &fakeEngine{failProduct: "p2", lowProduct: "p1"}
	notifier := &fakeNotifier{}
	l := listener.NewSalesListener(nil, engine, passTxm{}, notifier, logger.NewNop())

	l.ProcessMessage(context.Background(), saleEvent(t, listener.EventSaleCompleted, "sale-2", "b1", []listener.SaleItemPayload{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 9},
	}))

	// p1's decrement ran before p2 failed, but the sale rolled back, so its
	// low-stock event must not leak out.
	require.Len(t, engine.decrements, 2)
	assert.Empty(t, notifier.events)
}

func TestProcessMessageSaleCancelled(t *testing.T) {
	engine := &fakeEngine{}
	l := listener.NewSalesListener(nil, engine, passTxm{}, &fakeNotifier{}, logger.NewNop())

	l.ProcessMessage(context.Background(), saleEvent(t, listener.EventSaleCancelled, "sale-3", "b2", []listener.SaleItemPayload{
		{ProductID: "p1", Quantity: 3},
	}))

	require.Len(t, engine.restores, 1)
	assert.Empty(t, engine.decrements)
	assert.Equal(t, "sale-3", engine.restores[0].SaleRef)
	assert.Equal(t, "b2", engine.restores[0].BranchID)
	assert.Equal(t, int64(3), engine.restores[0].Quantity)
}

func TestProcessMessageIgnoresGarbageAndUnknownTypes(t *testing.T) {
	engine := &fakeEngine{}
	l := listener.NewSalesListener(nil, engine, passTxm{}, &fakeNotifier{}, logger.NewNop())

	l.ProcessMessage(context.Background(), []byte("not json"))
	l.ProcessMessage(context.Background(), saleEvent(t, "SaleShipped", "sale-4", "b1", []listener.SaleItemPayload{
		{ProductID: "p1", Quantity: 1},
	}))

	assert.Empty(t, engine.decrements)
	assert.Empty(t, engine.restores)
}
