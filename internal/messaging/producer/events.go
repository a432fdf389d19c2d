package producer

import (
	"context"
	"fmt"
	"log"
	"time"

	"docnotary/blockchain/types"
	"docnotary/config"
	"docnotary/internal/models"
	"docnotary/notarization"

	"github.com/google/uuid"
)

// New returns the publisher selected by cfg.Kind, or nil for "none"
func New(cfg config.EventsConfig, logger *log.Logger) (Producer, error) {
	switch cfg.Kind {
	case "", "none":
		return nil, nil
	case "kafka":
		p, err := NewKafkaProducer(cfg.Kafka, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "nats":
		p, err := NewNATSProducer(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported events kind: %s", cfg.Kind)
	}
}

// EventObserver publishes a TransactionEvent for every lifecycle transition
type EventObserver struct {
	producer Producer
	timeout  time.Duration
	logger   *log.Logger
}

// NewEventObserver creates an observer publishing through p
func NewEventObserver(p Producer, logger *log.Logger) *EventObserver {
	return &EventObserver{producer: p, timeout: 5 * time.Second, logger: logger}
}

func (o *EventObserver) TransactionStarted(tx notarization.Transaction) {
	o.publish(NewTransactionEvent(tx))
}

func (o *EventObserver) TransactionConfirmed(tx notarization.Transaction, receipt *types.Receipt) {
	o.publish(NewTransactionEvent(tx))
}

func (o *EventObserver) TransactionFailed(tx notarization.Transaction, err *notarization.TxError) {
	o.publish(NewTransactionEvent(tx))
}

func (o *EventObserver) publish(event *models.TransactionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.producer.Publish(ctx, event); err != nil {
		o.logger.Printf("Failed to publish %s event for %s: %v", event.Status, event.TransactionID, err)
	}
}

// NewTransactionEvent builds the event for the record's current status
func NewTransactionEvent(tx notarization.Transaction) *models.TransactionEvent {
	return &models.TransactionEvent{
		EventID:       uuid.NewString(),
		TransactionID: tx.ID,
		Hash:          tx.Hash,
		FileName:      tx.FileName,
		ChainID:       tx.ChainID,
		Status:        string(tx.Status),
		ChainTxHash:   tx.TxHash,
		BlockNumber:   tx.BlockNumber,
		GasUsed:       tx.GasUsed,
		ExplorerURL:   tx.ExplorerURL,
		ErrorCategory: string(tx.ErrorCategory),
		Error:         tx.Error,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339Nano),
	}
}

var _ notarization.Observer = (*EventObserver)(nil)
