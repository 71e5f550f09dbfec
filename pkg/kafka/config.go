package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	DefaultFlushTimeout = 15 * time.Second
	DefaultTopicPrefix  = "ethscraper"
)

// ProducerConfig holds the configuration for the record producer.
type ProducerConfig struct {
	BootstrapServers  string        `env:"KAFKA_BOOTSTRAP_SERVERS"   envDefault:"localhost:9092"` // Kafka broker addresses
	ClientID          string        `env:"KAFKA_CLIENT_ID"           envDefault:"ethscraper"`
	TopicPrefix       string        `env:"KAFKA_TOPIC_PREFIX"        envDefault:"ethscraper"` // Records go to <prefix>.<kind>
	Acks              string        `env:"KAFKA_ACKS"                envDefault:"all"`
	CompressionType   string        `env:"KAFKA_COMPRESSION_TYPE"    envDefault:"lz4"`
	EnableIdempotence bool          `env:"KAFKA_ENABLE_IDEMPOTENCE"  envDefault:"true"`
	LingerMs          int           `env:"KAFKA_LINGER_MS"           envDefault:"20"`
	FlushTimeout      time.Duration `env:"KAFKA_FLUSH_TIMEOUT"       envDefault:"15s"`   // Upper bound for flushing on Close
	EnableLogs        bool          `env:"KAFKA_ENABLE_LOGS"         envDefault:"false"` // Enable librdkafka client logs
}

// LoadProducerConfig loads producer configuration from environment variables.
func LoadProducerConfig() (ProducerConfig, error) {
	var cfg ProducerConfig
	if err := env.Parse(&cfg); err != nil {
		return ProducerConfig{}, fmt.Errorf("parse kafka producer config: %w", err)
	}
	return cfg, nil
}

// Topic returns the topic records of the given kind are published to.
func (c ProducerConfig) Topic(kind string) string {
	if c.TopicPrefix == "" {
		return kind
	}
	return c.TopicPrefix + "." + kind
}

// ConfigMap translates the config into librdkafka settings.
func (c ProducerConfig) ConfigMap() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":      strings.TrimSpace(c.BootstrapServers),
		"client.id":              c.ClientID,
		"acks":                   c.Acks,
		"compression.type":       c.CompressionType,
		"enable.idempotence":     c.EnableIdempotence,
		"linger.ms":              c.LingerMs,
		"go.logs.channel.enable": c.EnableLogs,
	}
}
