package consumer

import (
	"context"

	"docnotary/internal/models"
)

// Consumer defines the interface for notarization request consumers.
type Consumer interface {
	// Consume blocks until a request is received or the context is cancelled.
	// It returns the request, an acknowledgement callback, and any error that occurred.
	// The ack callback: ack(true) when the request is done with (it will not be redelivered);
	// ack(false) for temporary failure (it will be redelivered).
	Consume(ctx context.Context) (req *models.NotarizeRequest, ack func(success bool), err error)

	// Close gracefully shuts down the consumer connection.
	Close() error
}
