// Package kafkasink mirrors MSRP session traffic onto a Kafka topic for
// offline analysis, grounded on plugins/reporter/kafka's batching/
// compression/retry shape but keyed to transport.TrafficLogger instead of
// a generic packet reporter.
package kafkasink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"firestige.xyz/msrp/internal/config"
	"firestige.xyz/msrp/internal/log"
	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/transport"
)

var _ transport.TrafficLogger = (*Reporter)(nil)

// event is the JSON shape written to Kafka for every sent/received chunk
// and illegal-data observation.
type event struct {
	Kind          string `json:"kind"` // "sent" | "received" | "illegal"
	TimestampUnix int64  `json:"ts"`
	TransactionID string `json:"transaction_id,omitempty"`
	Method        string `json:"method,omitempty"`
	Code          int    `json:"code,omitempty"`
	Bytes         int    `json:"bytes"`
	Sample        string `json:"sample,omitempty"`
}

// Reporter implements transport.TrafficLogger over a batched Kafka
// writer: each event is one Kafka message, batched/compressed/retried by
// kafka.Writer the same way plugins/reporter/kafka's OutputPacket sink is.
type Reporter struct {
	topic  string
	writer *kafka.Writer

	sent    atomic.Uint64
	errored atomic.Uint64
}

// NewReporter builds a Reporter from cfg. Brokers and topic are required;
// compression, batching, and SASL/TLS are optional.
func NewReporter(cfg Config) (*Reporter, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Connection.Brokers) == 0 {
		return nil, fmt.Errorf("kafkasink: brokers is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafkasink: topic is required")
	}

	writerConfig := kafka.WriterConfig{
		Brokers:      cfg.Connection.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		MaxAttempts:  cfg.MaxAttempts,
		Async:        false,
	}

	codec, err := compressionCodec(cfg.Connection.Compression)
	if err != nil {
		return nil, err
	}
	writerConfig.CompressionCodec = codec

	if dialer, err := dialerFor(cfg.Connection); err != nil {
		return nil, err
	} else if dialer != nil {
		writerConfig.Dialer = dialer
	}

	return &Reporter{topic: cfg.Topic, writer: kafka.NewWriter(writerConfig)}, nil
}

func compressionCodec(name string) (kafka.CompressionCodec, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "gzip":
		return compress.Gzip.Codec(), nil
	case "snappy":
		return compress.Snappy.Codec(), nil
	case "lz4":
		return compress.Lz4.Codec(), nil
	default:
		return nil, fmt.Errorf("kafkasink: unsupported compression %q", name)
	}
}

// dialerFor builds a kafka.Dialer carrying SASL/TLS settings, or returns
// nil when neither is enabled so the writer falls back to a plain dialer.
func dialerFor(cfg config.KafkaReporterConnectionConfig) (*kafka.Dialer, error) {
	if !cfg.SASL.Enabled && !cfg.TLS.Enabled {
		return nil, nil
	}

	dialer := &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{InsecureSkipVerify: cfg.TLS.InsecureSkipVerify}
		if cfg.TLS.ClientCert != "" {
			cert, err := tls.LoadX509KeyPair(cfg.TLS.ClientCert, cfg.TLS.ClientKey)
			if err != nil {
				return nil, fmt.Errorf("kafkasink: loading client certificate: %w", err)
			}
			tlsConfig.Certificates = []tls.Certificate{cert}
		}
		dialer.TLS = tlsConfig
	}

	if cfg.SASL.Enabled {
		switch cfg.SASL.Mechanism {
		case "", "PLAIN":
			dialer.SASLMechanism = plain.Mechanism{Username: cfg.SASL.Username, Password: cfg.SASL.Password}
		case "SCRAM-SHA-256":
			mech, err := scram.Mechanism(scram.SHA256, cfg.SASL.Username, cfg.SASL.Password)
			if err != nil {
				return nil, fmt.Errorf("kafkasink: building SCRAM-SHA-256 mechanism: %w", err)
			}
			dialer.SASLMechanism = mech
		case "SCRAM-SHA-512":
			mech, err := scram.Mechanism(scram.SHA512, cfg.SASL.Username, cfg.SASL.Password)
			if err != nil {
				return nil, fmt.Errorf("kafkasink: building SCRAM-SHA-512 mechanism: %w", err)
			}
			dialer.SASLMechanism = mech
		default:
			return nil, fmt.Errorf("kafkasink: unsupported SASL mechanism %q", cfg.SASL.Mechanism)
		}
	}

	return dialer, nil
}

// Close flushes and closes the underlying Kafka writer.
func (r *Reporter) Close() error {
	return r.writer.Close()
}

func (r *Reporter) publish(e event) {
	value, err := json.Marshal(e)
	if err != nil {
		r.errored.Add(1)
		log.GetLogger().WithError(err).Errorf("kafkasink: marshal event")
		return
	}
	msg := kafka.Message{
		Key:   []byte(e.TransactionID),
		Value: value,
		Time:  time.Unix(0, e.TimestampUnix*int64(time.Millisecond)),
	}
	if err := r.writer.WriteMessages(context.Background(), msg); err != nil {
		r.errored.Add(1)
		log.GetLogger().WithError(err).Errorf("kafkasink: write to topic %s", r.topic)
		return
	}
	r.sent.Add(1)
}

func (r *Reporter) SentChunk(c *chunk.Chunk)     { r.publish(eventFromChunk("sent", c)) }
func (r *Reporter) ReceivedChunk(c *chunk.Chunk) { r.publish(eventFromChunk("received", c)) }

func (r *Reporter) ReceivedIllegalData(data []byte) {
	const maxSample = 64
	sample := data
	if len(sample) > maxSample {
		sample = sample[:maxSample]
	}
	r.publish(event{
		Kind:          "illegal",
		TimestampUnix: time.Now().UnixMilli(),
		Bytes:         len(data),
		Sample:        string(sample),
	})
}

func eventFromChunk(kind string, c *chunk.Chunk) event {
	e := event{
		Kind:          kind,
		TimestampUnix: time.Now().UnixMilli(),
		TransactionID: c.TransactionID(),
	}
	if c.IsRequest() {
		e.Method = c.Method()
	} else {
		e.Code = c.Code()
	}
	if data, err := c.Encode(); err == nil {
		e.Bytes = len(data)
	}
	return e
}

func (r *Reporter) Debugf(format string, args ...any) { log.GetLogger().Debugf(format, args...) }
func (r *Reporter) Infof(format string, args ...any)  { log.GetLogger().Infof(format, args...) }
func (r *Reporter) Errorf(format string, args ...any) { log.GetLogger().Errorf(format, args...) }
