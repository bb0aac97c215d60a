package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"firestige.xyz/msrp/internal/config"
)

// defaultTextPattern is used when Format is "text"; formatter.go expands its
// %tokens against each logrus.Entry.
const defaultTextPattern = "%time [%level] %field%msg (%caller)\n"

const defaultTimeLayout = "2006-01-02T15:04:05.000Z07:00"

type logrusAdapter struct {
	entry *logrus.Entry
}

// initByConfig builds the package-level Logger from a validated
// config.LogConfig, wiring stdout plus any enabled file/Loki outputs into a
// MultiWriter.
func initByConfig(cfg config.LogConfig) error {
	l := logrus.New()

	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: defaultTimeLayout})
	case "text", "":
		l.SetFormatter(&formatter{pattern: defaultTextPattern, time: defaultTimeLayout})
	default:
		return fmt.Errorf("log: unsupported format %q", cfg.Format)
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	mw := NewMultiWriter().Add(os.Stdout)
	if cfg.Outputs.File.Enabled {
		if cfg.Outputs.File.Path == "" {
			return fmt.Errorf("log: file output requires a path")
		}
		mw.AddFileAppender(fileAppenderOptFrom(cfg.Outputs.File))
	}
	if cfg.Outputs.Loki.Enabled {
		if cfg.Outputs.Loki.Endpoint == "" {
			return fmt.Errorf("log: loki output requires an endpoint")
		}
		lw, err := NewLokiWriter(lokiConfigFrom(cfg.Outputs.Loki))
		if err != nil {
			return fmt.Errorf("log: configuring loki output: %w", err)
		}
		mw.Add(lw)
	}
	l.SetOutput(mw)

	logger = &logrusAdapter{entry: logrus.NewEntry(l)}
	return nil
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) Panic(args ...interface{})                 { l.entry.Panic(args...) }
func (l *logrusAdapter) Panicf(format string, args ...interface{}) { l.entry.Panicf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
