package log

import "firestige.xyz/msrp/internal/config"

// fileAppenderOptFrom adapts the validated config.FileOutputConfig shape to
// the appender's own option struct.
func fileAppenderOptFrom(cfg config.FileOutputConfig) FileAppenderOpt {
	return FileAppenderOpt{
		Filename:   cfg.Path,
		MaxSize:    cfg.Rotation.MaxSizeMB,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAge:     cfg.Rotation.MaxAgeDays,
		Compress:   cfg.Rotation.Compress,
	}
}

// lokiConfigFrom adapts the validated config.LokiOutputConfig shape to the
// Loki writer's own option struct.
func lokiConfigFrom(cfg config.LokiOutputConfig) LokiConfig {
	return LokiConfig{
		Endpoint:      cfg.Endpoint,
		Labels:        cfg.Labels,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.BatchTimeout,
	}
}
