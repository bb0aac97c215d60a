// Package log is the structured logging facade shared by every agent
// component: the CLI, the capture/tracing/kafka sinks,
// and the MSRP session engine's traffic logger (see TrafficLogger).
package log

import (
	"sync"

	"firestige.xyz/msrp/internal/config"
)

// Logger is the interface every component logs through. It mirrors
// logrus.FieldLogger so the underlying implementation can be swapped without
// touching call sites.
type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	once    sync.Once
	initErr error
	logger  Logger
)

// GetLogger returns the package-level Logger. If Init has not run yet it
// lazily initializes one at info level writing to stdout, so packages that
// log during init() never see a nil Logger.
func GetLogger() Logger {
	if logger == nil {
		Init(config.LogConfig{Level: "info", Format: "text"})
	}
	return logger
}

// Init configures the package-level Logger from cfg. Only the first call
// takes effect; later calls return the error (if any) from that first call.
func Init(cfg config.LogConfig) error {
	once.Do(func() {
		initErr = initByConfig(cfg)
	})
	return initErr
}
