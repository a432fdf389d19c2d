package producer

import (
	"context"
	"docnotary/internal/models"
)

// Producer defines the interface for the lifecycle event publisher
type Producer interface {
	// Publish sends a single transaction event
	Publish(ctx context.Context, event *models.TransactionEvent) error

	// PublishBatch sends transaction events in batch
	PublishBatch(ctx context.Context, events []*models.TransactionEvent) error

	// Close closes the producer connection
	Close() error
}
