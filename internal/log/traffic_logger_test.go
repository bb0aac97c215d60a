package log

import (
	"strings"
	"testing"

	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/transport"
)

// recordingLogger is a minimal Logger that records every logged line,
// enough to assert chunkLogger routes through WithField/Debugf/Warnf as
// expected without depending on a real logrus sink.
type recordingLogger struct {
	Logger
	lines []string
}

func (r *recordingLogger) WithField(field string, value interface{}) Logger { return r }
func (r *recordingLogger) Debugf(format string, args ...interface{}) {
	r.lines = append(r.lines, sprintf(format, args...))
}
func (r *recordingLogger) Warnf(format string, args ...interface{}) {
	r.lines = append(r.lines, sprintf(format, args...))
}

func sprintf(format string, args ...interface{}) string {
	s := format
	for range args {
		s += " %v"
	}
	return s
}

var _ transport.TrafficLogger = (*chunkLogger)(nil)

func TestChunkLoggerReportsSentAndReceived(t *testing.T) {
	rec := &recordingLogger{}
	tl := NewTrafficLogger(rec)

	req, err := chunk.NewRequest("tid1", "SEND")
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	tl.SentChunk(req)
	tl.ReceivedChunk(req)

	if len(rec.lines) != 2 {
		t.Fatalf("lines = %v, want 2 entries", rec.lines)
	}
	if !strings.Contains(rec.lines[0], "sent") {
		t.Errorf("first line = %q, want a sent-chunk message", rec.lines[0])
	}
	if !strings.Contains(rec.lines[1], "received") {
		t.Errorf("second line = %q, want a received-chunk message", rec.lines[1])
	}
}

func TestChunkLoggerReportsIllegalData(t *testing.T) {
	rec := &recordingLogger{}
	tl := NewTrafficLogger(rec)

	tl.ReceivedIllegalData([]byte("garbage"))

	if len(rec.lines) != 1 {
		t.Fatalf("lines = %v, want 1 entry", rec.lines)
	}
	if !strings.Contains(rec.lines[0], "illegal data") {
		t.Errorf("line = %q, want an illegal-data message", rec.lines[0])
	}
}
