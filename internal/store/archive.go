package store

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS purchases (
	transaction_id VARCHAR(32) PRIMARY KEY,
	username       VARCHAR(255) NOT NULL,
	purchased_at   TIMESTAMP NOT NULL,
	payment_method VARCHAR(64) NOT NULL,
	total_paid     BIGINT NOT NULL,
	archived_at    TIMESTAMP NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS purchase_items (
	id             SERIAL PRIMARY KEY,
	transaction_id VARCHAR(32) NOT NULL REFERENCES purchases(transaction_id) ON DELETE CASCADE,
	name           VARCHAR(255) NOT NULL,
	unit_price     BIGINT NOT NULL,
	quantity       INT NOT NULL
);
CREATE TABLE IF NOT EXISTS processed_events (
	event_id     VARCHAR(64) PRIMARY KEY,
	event_type   VARCHAR(64) NOT NULL,
	processed_at TIMESTAMP NOT NULL DEFAULT NOW()
);`

// ArchivedPurchase is a purchases row
type ArchivedPurchase struct {
	TransactionID string    `db:"transaction_id"`
	Username      string    `db:"username"`
	PurchasedAt   time.Time `db:"purchased_at"`
	PaymentMethod string    `db:"payment_method"`
	TotalPaid     int64     `db:"total_paid"`
	ArchivedAt    time.Time `db:"archived_at"`
}

// Archive mirrors completed purchases into Postgres for querying outside the flat files.
type Archive struct {
	db *sqlx.DB
}

// NewArchive connects to the sales archive database
func NewArchive(databaseURL string) (*Archive, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Archive{db: db}, nil
}

// Close closes the database connection
func (a *Archive) Close() error {
	return a.db.Close()
}

// EnsureSchema creates the archive tables when missing
func (a *Archive) EnsureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, archiveSchema); err != nil {
		return fmt.Errorf("failed to create archive schema: %w", err)
	}
	return nil
}

// ArchivePurchase stores a purchase and its items. Re-archiving a transaction id is a no-op.
func (a *Archive) ArchivePurchase(ctx context.Context, rec models.PurchaseRecord) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (transaction_id, username, purchased_at, payment_method, total_paid)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO NOTHING`,
		rec.TransactionID, rec.Username, rec.Timestamp.Time, string(rec.PaymentMethod), rec.TotalPaid)
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, item := range rec.Items {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO purchase_items (transaction_id, name, unit_price, quantity) VALUES ($1, $2, $3, $4)",
			rec.TransactionID, item.Name, item.UnitPrice, item.Quantity)
		if err != nil {
			return fmt.Errorf("failed to insert purchase item: %w", err)
		}
	}

	return tx.Commit()
}

// GetPurchase retrieves an archived purchase by transaction id
func (a *Archive) GetPurchase(ctx context.Context, transactionID string) (*ArchivedPurchase, error) {
	var p ArchivedPurchase
	err := a.db.GetContext(ctx, &p, "SELECT * FROM purchases WHERE transaction_id = $1", transactionID)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// IsEventProcessed checks if an event has been processed
func (a *Archive) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := a.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (a *Archive) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := a.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
