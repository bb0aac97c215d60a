// Package capture is an optional, disabled-by-default AF_PACKET sniffer
// that feeds live TCP traffic through the MSRP framer purely for passive
// diagnostics. It never answers or participates in a session — it only
// counts chunks and malformed input it observes on the wire, grounded on
// otus-packet/pkg/capture's handle/factory split and internal/source/
// afpacket/source.go's TPacket setup.
package capture

import (
	"time"

	"firestige.xyz/msrp/pkg/msrp/uri"
)

const msrpDefaultPort = uri.DefaultPort

// Config configures a Sink. It is disabled unless Enabled is true, since
// raw packet capture needs elevated privileges the embedder may not want
// to grant by default.
type Config struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interface    string        `mapstructure:"interface"`
	Port         int           `mapstructure:"port"`
	SnapLen      int           `mapstructure:"snap_len"`
	BufferSizeMB int           `mapstructure:"buffer_size_mb"`
	Timeout      time.Duration `mapstructure:"timeout"`
	BPFFilter    string        `mapstructure:"bpf_filter"`
	FanoutID     uint16        `mapstructure:"fanout_id"`
	StreamIdle   time.Duration `mapstructure:"stream_idle"`
}

const (
	defaultSnapLen      = 65536
	defaultBufferSizeMB = 8
	defaultTimeout      = 1 * time.Second
	defaultStreamIdle   = 2 * time.Minute
)

func (c Config) withDefaults() Config {
	if c.SnapLen == 0 {
		c.SnapLen = defaultSnapLen
	}
	if c.BufferSizeMB == 0 {
		c.BufferSizeMB = defaultBufferSizeMB
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.StreamIdle == 0 {
		c.StreamIdle = defaultStreamIdle
	}
	if c.Port == 0 {
		c.Port = msrpDefaultPort
	}
	if c.BPFFilter == "" {
		c.BPFFilter = "tcp"
	}
	return c
}
