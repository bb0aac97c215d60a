package tracing

import (
	"time"

	"firestige.xyz/msrp/pkg/msrp/chunk"
)

// TransactionContext tracks one outstanding MSRP transaction: the request
// that opened it, the peer it was exchanged with, and (once terminated)
// the response that closed it.
type TransactionContext struct {
	state     TransactionState
	id        string
	method    string
	peer      string
	request   *chunk.Chunk
	response  *chunk.Chunk
	startedAt time.Time
	endedAt   time.Time
}

func newTransaction(req *chunk.Chunk, peer string) *TransactionContext {
	return &TransactionContext{
		state:     &pendingState{},
		id:        req.TransactionID(),
		method:    req.Method(),
		peer:      peer,
		request:   req,
		startedAt: time.Now(),
	}
}

// HandleResponse advances the transaction's state machine with resp,
// returning true once the transaction has terminated.
func (ctx *TransactionContext) HandleResponse(resp *chunk.Chunk) bool {
	next := ctx.state.HandleResponse(ctx, resp)
	ctx.state.Exit(ctx)
	ctx.state = next
	next.Enter(ctx)
	return next.IsTerminated()
}

func (ctx *TransactionContext) ID() string     { return ctx.id }
func (ctx *TransactionContext) Method() string { return ctx.method }
func (ctx *TransactionContext) Peer() string   { return ctx.peer }

// ResponseCode returns the final response code, or 0 if the transaction
// has not yet terminated.
func (ctx *TransactionContext) ResponseCode() int {
	if ctx.response == nil {
		return 0
	}
	return ctx.response.Code()
}

func (ctx *TransactionContext) IsTerminated() bool { return ctx.state.IsTerminated() }

// Latency returns the time between request and final response. It is
// only meaningful once IsTerminated reports true.
func (ctx *TransactionContext) Latency() time.Duration {
	if ctx.endedAt.IsZero() {
		return 0
	}
	return ctx.endedAt.Sub(ctx.startedAt)
}

func (ctx *TransactionContext) StartedAt() time.Time { return ctx.startedAt }
func (ctx *TransactionContext) EndedAt() time.Time   { return ctx.endedAt }
