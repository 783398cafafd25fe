package models

import "time"

// Event types
const (
	EventTypePurchaseCompleted = "PURCHASE_COMPLETED"
	EventTypeProductAdded      = "PRODUCT_ADDED"
	EventTypeProductUpdated    = "PRODUCT_UPDATED"
	EventTypeProductRemoved    = "PRODUCT_REMOVED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseCompletedEvent published after a checkout is persisted
type PurchaseCompletedEvent struct {
	BaseEvent
	Purchase PurchaseRecord `json:"purchase"`
}

// ProductChangedEvent published on admin add, edit and removal
type ProductChangedEvent struct {
	BaseEvent
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Stock     int    `json:"stock"`
}
