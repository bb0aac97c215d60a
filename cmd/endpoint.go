package cmd

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"firestige.xyz/msrp/internal/kafkasink"
	"firestige.xyz/msrp/internal/log"
	"firestige.xyz/msrp/pkg/msrp/session"
	"firestige.xyz/msrp/pkg/msrp/transport"
	"firestige.xyz/msrp/pkg/msrp/uri"
)

// randomSessionID mirrors the hex session-id shape pkg/msrp/uri generates
// internally for a freshly minted local URI.
func randomSessionID() (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}

// localURI builds this endpoint's own MSRP URI from host and port and a
// freshly minted session id.
func localURI(host string, port int) (*uri.URI, error) {
	sessionID, err := randomSessionID()
	if err != nil {
		return nil, err
	}
	return &uri.URI{
		Host:      host,
		Port:      port,
		SessionID: sessionID,
		Transport: uri.DefaultTransport,
	}, nil
}

// sessionOptionsFromConfig parses the string durations in a
// config.SessionConfig into session.Options, falling back to
// session.DefaultOptions for empty accept types and durations.
// AutomaticReports is always taken from the config.
func sessionOptionsFromConfig() (session.Options, error) {
	opts := session.DefaultOptions()
	if len(cfg.Session.AcceptTypes) > 0 {
		opts.AcceptTypes = cfg.Session.AcceptTypes
	}
	opts.AutomaticReports = cfg.Session.AutomaticReports

	parse := func(s string, dst *time.Duration) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parsing duration %q: %w", s, err)
		}
		*dst = d
		return nil
	}
	if err := parse(cfg.Session.ResponseTimeout, &opts.ResponseTimeout); err != nil {
		return opts, err
	}
	if err := parse(cfg.Session.ShutdownTimeout, &opts.ShutdownTimeout); err != nil {
		return opts, err
	}
	if err := parse(cfg.Session.KeepaliveInterval, &opts.KeepaliveInterval); err != nil {
		return opts, err
	}
	return opts, nil
}

// trafficLogger builds the transport.TrafficLogger used for a single
// transport: a Kafka-backed Reporter when kafka is enabled, otherwise the
// plain structured-log adapter. The returned closer (non-nil only for the
// Kafka case) must be closed when the transport is done with it.
func trafficLogger() (transport.TrafficLogger, io.Closer, error) {
	if !cfg.Kafka.Enabled {
		return log.NewTrafficLogger(nil), nil, nil
	}
	reporter, err := kafkasink.NewReporter(kafkasink.Config{
		Topic:        cfg.Kafka.Topic,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: mustParseDuration(cfg.Kafka.BatchTimeout),
		MaxAttempts:  cfg.Kafka.MaxAttempts,
		Connection:   cfg.Kafka.Connection,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building kafka traffic sink: %w", err)
	}
	return reporter, reporter, nil
}

func mustParseDuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
