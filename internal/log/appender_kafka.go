package log

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaAppenderOpt configures a log appender that mirrors every formatted
// log line onto a Kafka topic, for centralized log aggregation independent
// of internal/kafkasink's packet-output stream.
type KafkaAppenderOpt struct {
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	Partition int      `mapstructure:"partition"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	TLS       bool     `mapstructure:"tls"`
}

// kafkaLineWriter adapts a *kafka.Writer to io.Writer: one Write call
// becomes one unkeyed Kafka message carrying the formatted log line.
type kafkaLineWriter struct {
	w *kafka.Writer
}

func (k *kafkaLineWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	if err := k.w.WriteMessages(context.Background(), kafka.Message{Value: line}); err != nil {
		return 0, fmt.Errorf("log: kafka appender write: %w", err)
	}
	return len(p), nil
}

// AddKafkaAppender attaches a Kafka-backed sink to m.
func (m *MultiWriter) AddKafkaAppender(options KafkaAppenderOpt) (*MultiWriter, error) {
	if len(options.Brokers) == 0 || options.Topic == "" {
		return nil, fmt.Errorf("log: kafka appender requires brokers and topic")
	}

	transport := &kafka.Transport{}
	if options.TLS {
		transport.TLS = &tls.Config{}
	}
	if options.Username != "" {
		transport.SASL = plain.Mechanism{Username: options.Username, Password: options.Password}
	}

	w := &kafka.Writer{
		Addr:      kafka.TCP(options.Brokers...),
		Topic:     options.Topic,
		Balancer:  &kafka.LeastBytes{},
		Transport: transport,
	}
	m.writers = append(m.writers, &kafkaLineWriter{w: w})
	return m, nil
}
