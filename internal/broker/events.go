package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing storefront events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// PublishPurchaseCompleted publishes a PurchaseCompleted event keyed by transaction id
func (ep *EventPublisher) PublishPurchaseCompleted(ctx context.Context, rec models.PurchaseRecord) error {
	event := &models.PurchaseCompletedEvent{
		BaseEvent: newBaseEvent(models.EventTypePurchaseCompleted),
		Purchase:  rec,
	}
	return ep.producer.PublishEvent(ctx, "purchase-"+rec.TransactionID, event.EventType, event)
}

// PublishProductChanged publishes a catalog change. eventType is one of the Product* event types.
func (ep *EventPublisher) PublishProductChanged(ctx context.Context, eventType string, p models.Product) error {
	event := &models.ProductChangedEvent{
		BaseEvent: newBaseEvent(eventType),
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
	}
	return ep.producer.PublishEvent(ctx, "product-"+p.ID, eventType, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPurchaseCompleted func(context.Context, *models.PurchaseCompletedEvent) error
	logger              *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnPurchaseCompleted registers a handler for PurchaseCompleted events
func (eh *EventHandler) OnPurchaseCompleted(handler func(context.Context, *models.PurchaseCompletedEvent) error) {
	eh.onPurchaseCompleted = handler
}

// HandleMessage routes messages to appropriate handlers. Catalog events are skipped on the
// header alone; messages without the header are routed by their decoded event type.
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	eventType := EventType(msg)
	if isCatalogEvent(eventType) {
		return nil
	}

	if eventType == "" {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			return fmt.Errorf("failed to unmarshal base event: %w", err)
		}
		eventType = baseEvent.EventType
	}

	eh.logger.Debug("Handling event", zap.String("type", eventType), zap.ByteString("key", msg.Key))

	switch {
	case eventType == models.EventTypePurchaseCompleted:
		if eh.onPurchaseCompleted == nil {
			return nil
		}
		var event models.PurchaseCompletedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("failed to unmarshal PurchaseCompleted event: %w", err)
		}
		return eh.onPurchaseCompleted(ctx, &event)

	case isCatalogEvent(eventType):

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", eventType))
	}

	return nil
}

func isCatalogEvent(eventType string) bool {
	switch eventType {
	case models.EventTypeProductAdded, models.EventTypeProductUpdated, models.EventTypeProductRemoved:
		return true
	}
	return false
}
