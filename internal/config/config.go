// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level static configuration for the msrp CLI. Maps to
// the `msrp:` root key in YAML.
type Config struct {
	Node    NodeConfig    `mapstructure:"node"`
	Listen  ListenConfig  `mapstructure:"listen"`
	Session SessionConfig `mapstructure:"session"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Capture CaptureConfig `mapstructure:"capture"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Log     LogConfig     `mapstructure:"log"`
}

// ─── Node Identity ───

// NodeConfig identifies this endpoint. The serve and dial commands do not
// read it: the local URI host comes from serve's --host flag or from the
// connection's local address, and no default is applied to Hostname.
type NodeConfig struct {
	Host     string `mapstructure:"host"`
	Hostname string `mapstructure:"hostname"`
}

// ─── Listener ───

// ListenConfig configures msrp serve's TCP listener.
type ListenConfig struct {
	Address string    `mapstructure:"address"` // e.g. ":2855"
	TLS     TLSConfig `mapstructure:"tls"`
}

// ─── Session Engine ───

// SessionConfig mirrors session.Options; durations are parsed from Go
// duration strings by the session command.
type SessionConfig struct {
	AcceptTypes       []string `mapstructure:"accept_types"`
	AutomaticReports  bool     `mapstructure:"automatic_reports"`
	ResponseTimeout   string   `mapstructure:"response_timeout"`
	ShutdownTimeout   string   `mapstructure:"shutdown_timeout"`
	KeepaliveInterval string   `mapstructure:"keepalive_interval"`
}

// ─── Relay Pool ───

// RelayConfig configures the session-worker pool a multi-session serve
// process shards accepted sessions across.
type RelayConfig struct {
	Shards int `mapstructure:"shards"`
}

// ─── Capture Diagnostics ───

// CaptureConfig configures the optional passive AF_PACKET diagnostic
// sniffer. Disabled unless Enabled is true.
type CaptureConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Interface    string `mapstructure:"interface"`
	Port         int    `mapstructure:"port"`
	SnapLen      int    `mapstructure:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	BPFFilter    string `mapstructure:"bpf_filter"`
}

// ─── TLS ───

// TLSConfig contains TLS settings.
type TLSConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CACert             string `mapstructure:"ca_cert"`
	ClientCert         string `mapstructure:"client_cert"`
	ClientKey          string `mapstructure:"client_key"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// SASLConfig contains SASL authentication settings for the Kafka traffic
// sink.
type SASLConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Mechanism string `mapstructure:"mechanism"` // PLAIN | SCRAM-SHA-256 | SCRAM-SHA-512
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

// ─── Kafka Traffic Sink ───

// KafkaConfig configures the optional Kafka-backed traffic logger
// (internal/kafkasink). Brokers/SASL/TLS are shared by every topic a
// Reporter publishes to.
type KafkaConfig struct {
	Enabled      bool                          `mapstructure:"enabled"`
	Topic        string                        `mapstructure:"topic"`
	BatchSize    int                           `mapstructure:"batch_size"`
	BatchTimeout string                        `mapstructure:"batch_timeout"`
	MaxAttempts  int                           `mapstructure:"max_attempts"`
	Connection   KafkaReporterConnectionConfig `mapstructure:"connection"`
}

// KafkaReporterConnectionConfig is the shared Kafka reporter connection
// config, consumed by internal/kafkasink.
type KafkaReporterConnectionConfig struct {
	Brokers         []string   `mapstructure:"brokers"`
	Compression     string     `mapstructure:"compression"`
	MaxMessageBytes int        `mapstructure:"max_message_bytes"`
	SASL            SASLConfig `mapstructure:"sasl"`
	TLS             TLSConfig  `mapstructure:"tls"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
	Loki LokiOutputConfig `mapstructure:"loki"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// LokiOutputConfig configures Loki log output.
type LokiOutputConfig struct {
	Enabled      bool              `mapstructure:"enabled"`
	Endpoint     string            `mapstructure:"endpoint"`
	Labels       map[string]string `mapstructure:"labels"`
	BatchSize    int               `mapstructure:"batch_size"`
	BatchTimeout string            `mapstructure:"batch_timeout"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `msrp: ...`.
type configRoot struct {
	MSRP Config `mapstructure:"msrp"`
}

// Load loads configuration from path, if non-empty, falling back to
// defaults and environment variable overrides otherwise. The YAML file
// uses `msrp:` as its root key; env vars use the MSRP_ prefix
// (e.g. MSRP_LOG_LEVEL, MSRP_LISTEN_ADDRESS).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// No explicit env prefix — the `msrp.` key prefix naturally maps to
	// `MSRP_` via the key replacer (e.g. "msrp.log.level" -> "MSRP_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.MSRP

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration. All keys use the
// "msrp." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("msrp.listen.address", ":2855")

	v.SetDefault("msrp.session.accept_types", []string{"*"})
	v.SetDefault("msrp.session.automatic_reports", true)
	v.SetDefault("msrp.session.response_timeout", "30s")
	v.SetDefault("msrp.session.shutdown_timeout", "1s")
	v.SetDefault("msrp.session.keepalive_interval", "60s")

	v.SetDefault("msrp.relay.shards", 1)

	v.SetDefault("msrp.capture.port", 2855)
	v.SetDefault("msrp.capture.snap_len", 65536)
	v.SetDefault("msrp.capture.buffer_size_mb", 8)
	v.SetDefault("msrp.capture.bpf_filter", "tcp")

	v.SetDefault("msrp.kafka.compression", "snappy")
	v.SetDefault("msrp.kafka.max_message_bytes", 1048576)
	v.SetDefault("msrp.kafka.batch_size", 100)
	v.SetDefault("msrp.kafka.batch_timeout", "100ms")
	v.SetDefault("msrp.kafka.max_attempts", 3)

	v.SetDefault("msrp.log.level", "info")
	v.SetDefault("msrp.log.format", "text")
	v.SetDefault("msrp.log.outputs.file.enabled", false)
	v.SetDefault("msrp.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("msrp.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("msrp.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("msrp.log.outputs.file.rotation.compress", true)
}

// ValidateAndApplyDefaults validates configuration and applies runtime
// defaults that depend on more than one field.
func (cfg *Config) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	if cfg.Kafka.Enabled && cfg.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka.enabled=true")
	}
	if cfg.Capture.Enabled && cfg.Capture.Interface == "" {
		return fmt.Errorf("capture.interface is required when capture.enabled=true")
	}

	return nil
}
