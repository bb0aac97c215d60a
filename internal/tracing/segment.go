package tracing

import (
	"fmt"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"
	common "skywalking.apache.org/repo/goapi/collect/common/v3"
	agent "skywalking.apache.org/repo/goapi/collect/language/agent/v3"

	"firestige.xyz/msrp/internal/log"
)

// SegmentSink receives one built segment per terminated MSRP transaction.
// cmd wires this to whatever skywalking transport (or none) the deployment
// configures; a SegmentReporter built with a nil Sink just logs.
type SegmentSink func(segment *agent.SegmentObject)

// SegmentReporter implements TransactionListener, turning each terminated
// MSRP transaction into a single-span skywalking segment: one span per
// transaction, spanning request to final response.
type SegmentReporter struct {
	ServiceName     string
	ServiceInstance string
	Sink            SegmentSink

	idGen *segmentIDGenerator
}

func NewSegmentReporter(serviceName, serviceInstance string, sink SegmentSink) *SegmentReporter {
	return &SegmentReporter{
		ServiceName:     serviceName,
		ServiceInstance: serviceInstance,
		Sink:            sink,
		idGen:           newSegmentIDGenerator(serviceInstance),
	}
}

func (r *SegmentReporter) OnTransactionCreated(ctx *TransactionContext) {
	log.GetLogger().WithField("tid", ctx.ID()).Debugf("tracing: transaction opened (%s)", ctx.Method())
}

func (r *SegmentReporter) OnTransactionTerminated(ctx *TransactionContext) {
	segment := r.buildSegment(ctx)
	if r.Sink != nil {
		r.Sink(segment)
		return
	}
	log.GetLogger().
		WithField("tid", ctx.ID()).
		WithField("segment", segment.TraceSegmentId).
		WithField("latency_ms", ctx.Latency().Milliseconds()).
		Infof("tracing: %s -> %d", ctx.Method(), ctx.ResponseCode())
}

func (r *SegmentReporter) buildSegment(ctx *TransactionContext) *agent.SegmentObject {
	traceID := uuid.NewV4().String()
	span := &agent.SpanObject{
		SpanId:        0,
		ParentSpanId:  -1,
		StartTime:     ctx.StartedAt().UnixMilli(),
		EndTime:       ctx.EndedAt().UnixMilli(),
		OperationName: ctx.Method(),
		Peer:          ctx.Peer(),
		SpanType:      agent.SpanType_Entry,
		SpanLayer:     agent.SpanLayer_Unknown,
		IsError:       ctx.ResponseCode() >= 400,
		Tags: []*common.KeyStringValuePair{
			{Key: "msrp.transaction_id", Value: ctx.ID()},
			{Key: "msrp.response_code", Value: fmt.Sprintf("%d", ctx.ResponseCode())},
		},
	}
	return &agent.SegmentObject{
		TraceId:         traceID,
		TraceSegmentId:  r.idGen.generate(),
		Spans:           []*agent.SpanObject{span},
		Service:         r.ServiceName,
		ServiceInstance: r.ServiceInstance,
		IsSizeLimited:   false,
	}
}

// segmentIDGenerator builds instanceId.timestamp.sequence segment ids,
// after the teacher's segment id scheme, without depending on
// runtime.NumGoroutine(), which the teacher itself noted was a stand-in
// for a real goroutine id.
type segmentIDGenerator struct {
	mu         sync.Mutex
	instanceID string
	next       int64
}

func newSegmentIDGenerator(instanceID string) *segmentIDGenerator {
	return &segmentIDGenerator{instanceID: instanceID}
}

func (g *segmentIDGenerator) generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s.%d.%d", g.instanceID, time.Now().UnixNano()/1e6, g.next)
	g.next++
	return id
}
