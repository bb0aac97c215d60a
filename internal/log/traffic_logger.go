package log

import "firestige.xyz/msrp/pkg/msrp/chunk"

// chunkLogger implements transport.TrafficLogger on top of the
// package-level Logger, so every session wires its traffic logging through
// the same appenders (stdout/file/loki) as the rest of the agent.
type chunkLogger struct {
	l Logger
}

// NewTrafficLogger wraps l (or the package-level Logger, if l is nil) to
// satisfy pkg/msrp/transport.TrafficLogger.
func NewTrafficLogger(l Logger) *chunkLogger {
	if l == nil {
		l = GetLogger()
	}
	return &chunkLogger{l: l}
}

func (c *chunkLogger) SentChunk(ck *chunk.Chunk) {
	c.l.WithField("bytes", len(ck.Data)).Debugf("sent %s", ck.FirstLine())
}

func (c *chunkLogger) ReceivedChunk(ck *chunk.Chunk) {
	c.l.WithField("bytes", len(ck.Data)).Debugf("received %s", ck.FirstLine())
}

func (c *chunkLogger) ReceivedIllegalData(data []byte) {
	const maxLogged = 64
	sample := data
	if len(sample) > maxLogged {
		sample = sample[:maxLogged]
	}
	c.l.WithField("len", len(data)).Warnf("received illegal data: %q", sample)
}

func (c *chunkLogger) Debugf(format string, args ...any) { c.l.Debugf(format, args...) }
func (c *chunkLogger) Infof(format string, args ...any)  { c.l.Infof(format, args...) }
func (c *chunkLogger) Errorf(format string, args ...any) { c.l.Errorf(format, args...) }
