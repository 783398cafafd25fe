package service

import (
	"context"
	"io"
	"time"

	"storefront/internal/models"
)

// StockMirror receives every available-stock change. Implemented by redisclient.Client.
type StockMirror interface {
	SetStock(ctx context.Context, p models.Product) error
	DeleteStock(ctx context.Context, productID string) error
	SyncStock(ctx context.Context, products []models.Product) error
}

// SessionTracker records the active session outside the process. Implemented by redisclient.Client.
type SessionTracker interface {
	SetSession(ctx context.Context, username, sessionID string, ttl time.Duration) error
	ClearSession(ctx context.Context, username string) error
}

// EventPublisher announces purchases and catalog changes. Implemented by broker.EventPublisher.
type EventPublisher interface {
	PublishPurchaseCompleted(ctx context.Context, rec models.PurchaseRecord) error
	PublishProductChanged(ctx context.Context, eventType string, p models.Product) error
}

// ImageStore keeps uploaded files under generated names. Implemented by media.Storage.
type ImageStore interface {
	Save(label, originalName string, r io.Reader) (string, error)
	Delete(name string) error
}

// Upload is a file received from the presentation layer
type Upload struct {
	Filename string
	Reader   io.Reader
}

type nopMirror struct{}

func (nopMirror) SetStock(context.Context, models.Product) error { return nil }
func (nopMirror) DeleteStock(context.Context, string) error { return nil }
func (nopMirror) SyncStock(context.Context, []models.Product) error { return nil }
func (nopMirror) SetSession(context.Context, string, string, time.Duration) error {
	return nil
}
func (nopMirror) ClearSession(context.Context, string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishPurchaseCompleted(context.Context, models.PurchaseRecord) error {
	return nil
}
func (nopPublisher) PublishProductChanged(context.Context, string, models.Product) error {
	return nil
}

// Integrations bundles the optional collaborators. Nil fields fall back to no-ops.
type Integrations struct {
	Mirror    StockMirror
	Sessions  SessionTracker
	Publisher EventPublisher
}

func (i Integrations) withDefaults() Integrations {
	if i.Mirror == nil {
		i.Mirror = nopMirror{}
	}
	if i.Sessions == nil {
		i.Sessions = nopMirror{}
	}
	if i.Publisher == nil {
		i.Publisher = nopPublisher{}
	}
	return i
}
