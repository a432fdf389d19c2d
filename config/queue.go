package config

import (
	"fmt"
)

// MockBrokers selects the in-process mock consumer instead of Kafka
const MockBrokers = "mock://local"

// KafkaConsumerConfig defines configuration for the notarization request consumer
type KafkaConsumerConfig struct {
	Brokers           []string `yaml:"brokers"`            // e.g., ["kafka1:9092", "kafka2:9092"]
	Topic             string   `yaml:"topic"`              // Topic to consume from
	GroupID           string   `yaml:"group_id"`           // Consumer group ID
	Count             int      `yaml:"count"`              // Number of consumers to create
	SessionTimeout    string   `yaml:"session_timeout"`    // Kafka session timeout
	HeartbeatInterval string   `yaml:"heartbeat_interval"` // Kafka heartbeat interval
	AutoOffsetReset   string   `yaml:"auto_offset_reset"`  // earliest/latest
	MaxDeliveries     int      `yaml:"max_deliveries"`     // Deliveries of a nacked request before it is dropped
}

// Enabled reports whether a request consumer should be started
func (c *KafkaConsumerConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// IsMock reports whether the consumer is the in-process mock
func (c *KafkaConsumerConfig) IsMock() bool {
	return len(c.Brokers) > 0 && c.Brokers[0] == MockBrokers
}

// SetDefaults sets reasonable default values for Kafka consumer configuration
func (c *KafkaConsumerConfig) SetDefaults() {
	if c.Count <= 0 {
		c.Count = 1
		fmt.Printf("Warning: kafka_consumer.count not set or invalid, defaulting to %d\n", c.Count)
	}
	if c.SessionTimeout == "" {
		c.SessionTimeout = "30s"
		fmt.Printf("Warning: kafka_consumer.session_timeout not set, defaulting to %s\n", c.SessionTimeout)
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = "3s"
		fmt.Printf("Warning: kafka_consumer.heartbeat_interval not set, defaulting to %s\n", c.HeartbeatInterval)
	}
	if c.AutoOffsetReset == "" {
		c.AutoOffsetReset = "earliest"
		fmt.Printf("Warning: kafka_consumer.auto_offset_reset not set, defaulting to %s\n", c.AutoOffsetReset)
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 5
		fmt.Printf("Warning: kafka_consumer.max_deliveries not set or invalid, defaulting to %d\n", c.MaxDeliveries)
	}
}

// WorkerConfig defines configuration for the request worker
type WorkerConfig struct {
	Concurrency        int    `yaml:"concurrency"`          // Number of goroutines per consumer
	ConsumerRetryDelay string `yaml:"consumer_retry_delay"` // Delay when consumer encounters errors
	SubmitTimeout      string `yaml:"submit_timeout"`       // Timeout for one notarization submission
}

// SetDefaults sets reasonable default values for worker configuration
func (c *WorkerConfig) SetDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
		fmt.Printf("Warning: worker.concurrency not set or invalid, defaulting to %d\n", c.Concurrency)
	}
	if c.ConsumerRetryDelay == "" {
		c.ConsumerRetryDelay = "5s"
		fmt.Printf("Warning: worker.consumer_retry_delay not set, defaulting to %s\n", c.ConsumerRetryDelay)
	}
	if c.SubmitTimeout == "" {
		c.SubmitTimeout = "2m"
		fmt.Printf("Warning: worker.submit_timeout not set, defaulting to %s\n", c.SubmitTimeout)
	}
}
