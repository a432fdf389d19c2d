package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"docnotary/config"
	"docnotary/internal/models"

	"github.com/nats-io/nats.go"
)

// natsConn is the subset of *nats.Conn the producer uses
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATSProducer publishes transaction events to a NATS subject
type NATSProducer struct {
	conn    natsConn
	subject string
	logger  *log.Logger
}

// NewNATSProducer connects to cfg.URL
func NewNATSProducer(cfg config.NATSConfig, logger *log.Logger) (*NATSProducer, error) {
	if cfg.URL == "" || cfg.Subject == "" {
		return nil, fmt.Errorf("nats producer configuration incomplete: both url and subject are required")
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Printf("Warning: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Printf("NATS producer connected to %s, Subject: %s", conn.ConnectedUrl(), cfg.Subject)
	return newNATSProducer(conn, cfg.Subject, logger), nil
}

func newNATSProducer(conn natsConn, subject string, logger *log.Logger) *NATSProducer {
	return &NATSProducer{conn: conn, subject: subject, logger: logger}
}

// Publish sends one event
func (p *NATSProducer) Publish(ctx context.Context, event *models.TransactionEvent) error {
	if err := p.publish(event); err != nil {
		return err
	}
	return p.conn.FlushWithContext(ctx)
}

// PublishBatch sends events and flushes once
func (p *NATSProducer) PublishBatch(ctx context.Context, events []*models.TransactionEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, event := range events {
		if err := p.publish(event); err != nil {
			return err
		}
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *NATSProducer) publish(event *models.TransactionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize transaction event (EventID: %s): %w", event.EventID, err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		p.logger.Printf("Failed to publish NATS event (TransactionID: %s): %v", event.TransactionID, err)
		return fmt.Errorf("failed to publish to NATS: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection
func (p *NATSProducer) Close() error {
	p.logger.Println("Closing NATS producer (draining)...")
	return p.conn.Drain()
}

var _ Producer = (*NATSProducer)(nil)
