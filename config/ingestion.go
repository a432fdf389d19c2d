package config

import (
	"fmt"
	"time"
)

// KafkaProducerConfig defines configuration for the lifecycle event producer
type KafkaProducerConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	// Batch processing settings
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	BatchBytes   int           `yaml:"batch_bytes"`

	// Reliability settings
	RequiredAcks string `yaml:"required_acks"`
	Async        bool   `yaml:"async"`

	// Performance settings
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
}

// NATSConfig defines the NATS event publisher
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Name    string `yaml:"name"`
}

// EventsConfig selects where transaction lifecycle events are published
type EventsConfig struct {
	Kind  string              `yaml:"kind"` // "none", "kafka", "nats"
	Kafka KafkaProducerConfig `yaml:"kafka"`
	NATS  NATSConfig          `yaml:"nats"`

	// Batching; a batch_size of 1 publishes every event on its own
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval string `yaml:"flush_interval"`
	FlushBuffer   int    `yaml:"flush_buffer"` // Pending batches before flushes are deferred to the next tick
}

// FlushIntervalDuration parses FlushInterval, falling back to one second
func (c *EventsConfig) FlushIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.FlushInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// SetDefaults sets reasonable default values for event publishing
func (c *EventsConfig) SetDefaults() {
	if c.Kind == "" {
		c.Kind = "none"
		fmt.Printf("Warning: events.kind not set, defaulting to %s\n", c.Kind)
	}
	if c.Kind == "nats" && c.NATS.Name == "" {
		c.NATS.Name = "notaryd"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.BatchSize > 1 && c.FlushInterval == "" {
		c.FlushInterval = "1s"
		fmt.Printf("Warning: events.flush_interval not set, defaulting to %s\n", c.FlushInterval)
	}
	if c.FlushBuffer <= 0 {
		c.FlushBuffer = 16
	}
}

// Validate checks that the selected publisher is fully configured
func (c *EventsConfig) Validate() error {
	switch c.Kind {
	case "none":
		return nil
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("events.kafka requires brokers and topic")
		}
	case "nats":
		if c.NATS.URL == "" || c.NATS.Subject == "" {
			return fmt.Errorf("events.nats requires url and subject")
		}
	default:
		return fmt.Errorf("unsupported events.kind: %s", c.Kind)
	}
	return nil
}

// HttpServerConfig defines HTTP server configuration
type HttpServerConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// GatewayMonitoringConfig defines monitoring configuration for the gateway
type GatewayMonitoringConfig struct {
	EnableMetrics   bool   `yaml:"enable_metrics"`
	MetricsPath     string `yaml:"metrics_path"`
	HealthCheckPath string `yaml:"health_check_path"`
}

// GatewayConfig defines the local HTTP and gRPC listeners
type GatewayConfig struct {
	HttpListenAddr string                  `yaml:"http_listen_addr"`
	GrpcListenAddr string                  `yaml:"grpc_listen_addr"`
	MaxUploadBytes int64                   `yaml:"max_upload_bytes"`
	CORSOrigins    []string                `yaml:"cors_origins"` // Browser origins allowed to call the API
	HttpServer     HttpServerConfig        `yaml:"http_server"`
	Monitoring     GatewayMonitoringConfig `yaml:"monitoring"`
}

// SetDefaults sets reasonable default values for the gateway
func (c *GatewayConfig) SetDefaults() {
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 256 << 20
		fmt.Printf("Warning: gateway.max_upload_bytes not set, defaulting to %d\n", c.MaxUploadBytes)
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	if c.HttpServer.ReadTimeout == 0 {
		c.HttpServer.ReadTimeout = 30 * time.Second
	}
	if c.HttpServer.WriteTimeout == 0 {
		c.HttpServer.WriteTimeout = 60 * time.Second
	}
	if c.HttpServer.IdleTimeout == 0 {
		c.HttpServer.IdleTimeout = 60 * time.Second
	}
	if c.HttpServer.MaxHeaderBytes == 0 {
		c.HttpServer.MaxHeaderBytes = 1 << 20 // 1 MB
	}
	if c.Monitoring.MetricsPath == "" {
		c.Monitoring.MetricsPath = "/metrics"
	}
	if c.Monitoring.HealthCheckPath == "" {
		c.Monitoring.HealthCheckPath = "/health"
	}
}
