package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error { return nil }

func testPurchase() models.PurchaseRecord {
	return models.PurchaseRecord{
		TransactionID: "20240501103000000001",
		Username:      "ana",
		Timestamp:     models.Timestamp{Time: time.Date(2024, 5, 1, 10, 30, 0, 0, time.Local)},
		PaymentMethod: models.PaymentVisaCard,
		TotalPaid:     30000,
		Items:         []models.LineItem{{Name: "cat food", UnitPrice: 15000, Quantity: 2}},
	}
}

func TestPublishPurchaseCompletedRoundTrip(t *testing.T) {
	w := &memWriter{}
	pub := NewEventPublisher(NewProducerWithWriter(w))

	require.NoError(t, pub.PublishPurchaseCompleted(context.Background(), testPurchase()))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "purchase-20240501103000000001", string(w.msgs[0].Key))
	assert.Equal(t, models.EventTypePurchaseCompleted, EventType(w.msgs[0]))

	var got *models.PurchaseCompletedEvent
	handler := NewEventHandler()
	handler.OnPurchaseCompleted(func(_ context.Context, e *models.PurchaseCompletedEvent) error {
		got = e
		return nil
	})
	require.NoError(t, handler.HandleMessage(context.Background(), w.msgs[0]))

	require.NotNil(t, got)
	assert.NotEmpty(t, got.EventID)
	assert.Equal(t, models.EventTypePurchaseCompleted, got.EventType)
	assert.Equal(t, int64(30000), got.Purchase.TotalPaid)
	assert.Equal(t, "cat food", got.Purchase.Items[0].Name)
}

func TestPublishProductChanged(t *testing.T) {
	w := &memWriter{}
	pub := NewEventPublisher(NewProducerWithWriter(w))

	p := models.Product{ID: "p1", Name: "dog food", Price: 25000, Stock: 4}
	require.NoError(t, pub.PublishProductChanged(context.Background(), models.EventTypeProductUpdated, p))

	var event models.ProductChangedEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &event))
	assert.Equal(t, models.EventTypeProductUpdated, event.EventType)
	assert.Equal(t, 4, event.Stock)

	called := false
	handler := NewEventHandler()
	handler.OnPurchaseCompleted(func(context.Context, *models.PurchaseCompletedEvent) error {
		called = true
		return nil
	})
	assert.NoError(t, handler.HandleMessage(context.Background(), w.msgs[0]))
	assert.False(t, called)
}

func TestPublishWriteError(t *testing.T) {
	pub := NewEventPublisher(NewProducerWithWriter(&memWriter{err: errors.New("broker down")}))
	err := pub.PublishPurchaseCompleted(context.Background(), testPurchase())
	assert.ErrorContains(t, err, "broker down")
}

func TestHandleMalformedMessage(t *testing.T) {
	err := NewEventHandler().HandleMessage(context.Background(), kafka.Message{Value: []byte("nope")})
	assert.Error(t, err)
}

func TestHandleMessageWithoutHeader(t *testing.T) {
	w := &memWriter{}
	require.NoError(t, NewEventPublisher(NewProducerWithWriter(w)).PublishPurchaseCompleted(context.Background(), testPurchase()))
	msg := w.msgs[0]
	msg.Headers = nil

	handled := 0
	handler := NewEventHandler()
	handler.OnPurchaseCompleted(func(context.Context, *models.PurchaseCompletedEvent) error {
		handled++
		return nil
	})
	require.NoError(t, handler.HandleMessage(context.Background(), msg))
	assert.Equal(t, 1, handled)
}
