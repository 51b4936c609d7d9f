package notification

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Delivery statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Delivery is one row of the email delivery log.
type Delivery struct {
	ID        string
	Template  string
	Recipient string
	Status    string
	Error     string
	Retries   int
	CreatedAt time.Time
}

// DeliveryLog records delivery outcomes.
type DeliveryLog interface {
	Record(ctx context.Context, d Delivery) error
}

// PostgresDeliveryLog writes to the email_logs table.
type PostgresDeliveryLog struct {
	db *sql.DB
}

// NewPostgresDeliveryLog returns a DeliveryLog backed by db.
func NewPostgresDeliveryLog(db *sql.DB) *PostgresDeliveryLog {
	return &PostgresDeliveryLog{db: db}
}

// Record inserts d. ID and CreatedAt are filled in when empty.
func (l *PostgresDeliveryLog) Record(ctx context.Context, d Delivery) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `INSERT INTO email_logs (id, template, recipient_email, status, error_message, retries, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.Template, d.Recipient, d.Status, sql.NullString{String: d.Error, Valid: d.Error != ""}, d.Retries, d.CreatedAt)
	return err
}

// MemoryDeliveryLog keeps deliveries in memory. Used by tests.
type MemoryDeliveryLog struct {
	mu         sync.Mutex
	deliveries []Delivery
}

// Record appends d.
func (l *MemoryDeliveryLog) Record(_ context.Context, d Delivery) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deliveries = append(l.deliveries, d)
	return nil
}

// Deliveries returns a copy of the recorded deliveries.
func (l *MemoryDeliveryLog) Deliveries() []Delivery {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Delivery(nil), l.deliveries...)
}
