package kafkasink

import (
	"time"

	"firestige.xyz/msrp/internal/config"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
	defaultMaxAttempts  = 3
)

// Config configures a Reporter. Connection mirrors the shared
// kafka.connection block (internal/config.KafkaReporterConnectionConfig);
// Topic/BatchSize/BatchTimeout are this sink's own settings, same split
// the teacher uses between ReportersConfig and a per-reporter Config.
type Config struct {
	Topic        string                                `mapstructure:"topic"`
	BatchSize    int                                   `mapstructure:"batch_size"`
	BatchTimeout time.Duration                         `mapstructure:"batch_timeout"`
	MaxAttempts  int                                   `mapstructure:"max_attempts"`
	Connection   config.KafkaReporterConnectionConfig `mapstructure:"connection"`
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	return c
}
