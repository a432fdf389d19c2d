package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"docnotary/config"
	"docnotary/internal/models"

	"github.com/segmentio/kafka-go"
)

// messageReader is the subset of *kafka.Reader the consumer uses
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// delivery is a fetched request and how many times it has been handed out
type delivery struct {
	msg      kafka.Message
	req      models.NotarizeRequest
	attempts int
}

// KafkaConsumer reads NotarizeRequests from a consumer group.
// A group reader never refetches an uncommitted message within a session, so a
// nacked request is queued locally and handed out again by the next Consume,
// until it has been delivered maxDeliveries times.
type KafkaConsumer struct {
	reader        messageReader
	logger        *log.Logger
	maxDeliveries int

	mu      sync.Mutex
	retries []delivery
}

// NewKafkaConsumer joins cfg.GroupID on cfg.Topic
func NewKafkaConsumer(cfg config.KafkaConsumerConfig, logger *log.Logger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("incomplete kafka configuration: brokers, topic, group_id are all required")
	}
	r := kafka.NewReader(readerConfig(cfg, logger))
	logger.Printf("Kafka request consumer joined group %s on %s (brokers %v)", cfg.GroupID, cfg.Topic, cfg.Brokers)
	return newKafkaConsumer(r, cfg.MaxDeliveries, logger), nil
}

func newKafkaConsumer(r messageReader, maxDeliveries int, logger *log.Logger) *KafkaConsumer {
	if maxDeliveries <= 0 {
		maxDeliveries = 1
	}
	return &KafkaConsumer{reader: r, logger: logger, maxDeliveries: maxDeliveries}
}

func readerConfig(cfg config.KafkaConsumerConfig, logger *log.Logger) kafka.ReaderConfig {
	sessionTimeout, err := time.ParseDuration(cfg.SessionTimeout)
	if err != nil {
		logger.Printf("Warning: Invalid session_timeout '%s', using default 30s", cfg.SessionTimeout)
		sessionTimeout = 30 * time.Second
	}
	heartbeatInterval, err := time.ParseDuration(cfg.HeartbeatInterval)
	if err != nil {
		logger.Printf("Warning: Invalid heartbeat_interval '%s', using default 3s", cfg.HeartbeatInterval)
		heartbeatInterval = 3 * time.Second
	}

	rc := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		Topic:             cfg.Topic,
		MinBytes:          1,   // Hand out each request as soon as it arrives
		MaxBytes:          1e6, // 1MB
		MaxWait:           500 * time.Millisecond,
		SessionTimeout:    sessionTimeout,
		HeartbeatInterval: heartbeatInterval,
		StartOffset:       kafka.FirstOffset,
	}
	switch cfg.AutoOffsetReset {
	case "latest":
		rc.StartOffset = kafka.LastOffset
	case "earliest", "":
	default:
		logger.Printf("Warning: Unknown auto_offset_reset '%s', using earliest", cfg.AutoOffsetReset)
	}
	return rc
}

// Consume returns the next request, preferring one awaiting redelivery.
// Payloads that are not requests are committed and skipped.
func (k *KafkaConsumer) Consume(ctx context.Context) (*models.NotarizeRequest, func(success bool), error) {
	if d, ok := k.nextRetry(); ok {
		return k.deliver(d)
	}
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			return nil, nil, fmt.Errorf("failed to fetch notarization request: %w", err)
		}
		req, err := decodeRequest(msg)
		if err != nil {
			k.logger.Printf("Kafka consumer: Discarding partition %d offset %d: %v", msg.Partition, msg.Offset, err)
			k.commit(msg)
			continue
		}
		return k.deliver(delivery{msg: msg, req: req})
	}
}

// decodeRequest parses a request payload; the message key stands in for a missing request id
func decodeRequest(msg kafka.Message) (models.NotarizeRequest, error) {
	var req models.NotarizeRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return req, fmt.Errorf("malformed request: %w", err)
	}
	if req.Hash == "" {
		return req, errors.New("request has no hash")
	}
	if req.RequestID == "" {
		req.RequestID = string(msg.Key)
	}
	return req, nil
}

func (k *KafkaConsumer) deliver(d delivery) (*models.NotarizeRequest, func(success bool), error) {
	d.attempts++
	req := d.req
	var once sync.Once
	return &req, func(success bool) {
		once.Do(func() { k.settle(d, success) })
	}, nil
}

func (k *KafkaConsumer) settle(d delivery, success bool) {
	if success {
		k.commit(d.msg)
		return
	}
	if d.attempts >= k.maxDeliveries {
		k.logger.Printf("Kafka consumer: Request %s failed %d times, dropping offset %d", d.req.RequestID, d.attempts, d.msg.Offset)
		k.commit(d.msg)
		return
	}
	k.logger.Printf("Kafka consumer: NACK for request %s (delivery %d of %d), queued for redelivery", d.req.RequestID, d.attempts, k.maxDeliveries)
	k.mu.Lock()
	k.retries = append(k.retries, d)
	k.mu.Unlock()
}

func (k *KafkaConsumer) nextRetry() (delivery, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if len(k.retries) == 0 {
		return delivery{}, false
	}
	d := k.retries[0]
	k.retries = k.retries[1:]
	return d, true
}

func (k *KafkaConsumer) commit(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := k.reader.CommitMessages(ctx, msg); err != nil {
		k.logger.Printf("Kafka consumer: Failed to commit offset %d: %v", msg.Offset, err)
	}
}

// Close leaves the group. Requests still queued for redelivery stay uncommitted.
func (k *KafkaConsumer) Close() error {
	k.mu.Lock()
	pending := len(k.retries)
	k.mu.Unlock()
	k.logger.Printf("Closing Kafka consumer (%d requests awaiting redelivery)...", pending)
	return k.reader.Close()
}

var _ Consumer = (*KafkaConsumer)(nil)
