package worker

import (
	"context"
	"fmt"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PurchaseArchive is the durable sink of completed purchases. Implemented by store.Archive.
type PurchaseArchive interface {
	ArchivePurchase(ctx context.Context, rec models.PurchaseRecord) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// ArchiveWorker copies PurchaseCompleted events into the sales archive
type ArchiveWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	archive      PurchaseArchive
	logger       *zap.Logger
}

// NewArchiveWorker creates a new archive worker
func NewArchiveWorker(consumer *broker.Consumer, archive PurchaseArchive) *ArchiveWorker {
	w := &ArchiveWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		archive:      archive,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnPurchaseCompleted(w.HandlePurchaseCompleted)
	return w
}

// Start consumes until ctx is cancelled. It returns early when a purchase keeps failing to
// archive; that event is consumed again on the next start.
func (w *ArchiveWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting archive worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *ArchiveWorker) Stop() error {
	w.logger.Info("Stopping archive worker")
	return w.consumer.Close()
}

// HandlePurchaseCompleted archives the purchase once per event id
func (w *ArchiveWorker) HandlePurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	ctx, span := util.StartSpan(ctx, "ArchiveWorker.HandlePurchaseCompleted",
		attribute.String("event.id", event.EventID),
		attribute.String("transaction.id", event.Purchase.TransactionID),
	)
	defer span.End()

	processed, err := w.archive.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	}
	if processed {
		w.logger.Debug("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.archive.ArchivePurchase(ctx, event.Purchase); err != nil {
		return fmt.Errorf("failed to archive purchase %s: %w", event.Purchase.TransactionID, err)
	}
	if err := w.archive.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}

	util.ArchivedPurchasesTotal.Inc()
	w.logger.Info("Purchase archived",
		zap.String("transaction_id", event.Purchase.TransactionID),
		zap.String("event_id", event.EventID),
	)
	return nil
}
