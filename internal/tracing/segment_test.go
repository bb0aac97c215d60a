package tracing

import (
	"testing"

	agent "skywalking.apache.org/repo/goapi/collect/language/agent/v3"

	"firestige.xyz/msrp/pkg/msrp/chunk"
)

func TestSegmentReporterEmitsOneSpanPerTransaction(t *testing.T) {
	var got *agent.SegmentObject
	reporter := NewSegmentReporter("msrp-agent", "instance-1", func(s *agent.SegmentObject) {
		got = s
	})

	m := NewTransactionManager()
	m.RegisterListener(reporter)

	req, _ := chunk.NewRequest("tid1", "SEND")
	m.TrackRequest(req, "peer1")
	resp, _ := chunk.NewResponse("tid1", 200, "OK")
	m.HandleResponse(resp)

	if got == nil {
		t.Fatal("expected a segment to be emitted")
	}
	if got.Service != "msrp-agent" || got.ServiceInstance != "instance-1" {
		t.Errorf("segment service/instance = %s/%s, want msrp-agent/instance-1", got.Service, got.ServiceInstance)
	}
	if len(got.Spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(got.Spans))
	}
	if got.Spans[0].OperationName != "SEND" {
		t.Errorf("OperationName = %s, want SEND", got.Spans[0].OperationName)
	}
	if got.Spans[0].IsError {
		t.Error("200 response should not be marked as error")
	}
}

func TestSegmentReporterMarksErrorResponses(t *testing.T) {
	var got *agent.SegmentObject
	reporter := NewSegmentReporter("msrp-agent", "instance-1", func(s *agent.SegmentObject) {
		got = s
	})
	m := NewTransactionManager()
	m.RegisterListener(reporter)

	req, _ := chunk.NewRequest("tid2", "SEND")
	m.TrackRequest(req, "peer1")
	resp, _ := chunk.NewResponse("tid2", 481, "No Such Session")
	m.HandleResponse(resp)

	if got == nil || !got.Spans[0].IsError {
		t.Fatal("481 response should be marked as an error span")
	}
}

func TestSegmentIDGeneratorProducesDistinctIDs(t *testing.T) {
	g := newSegmentIDGenerator("instance-1")
	a := g.generate()
	b := g.generate()
	if a == b {
		t.Errorf("expected distinct segment ids, got %q twice", a)
	}
}
