// Package tracing tracks outstanding MSRP transactions and emits a
// skywalking trace segment for each one that completes.
package tracing

import (
	"time"

	"firestige.xyz/msrp/pkg/msrp/chunk"
)

// TransactionState mirrors the teacher's SIP transaction state idiom
// (Enter/Exit/HandleMessage) generalized to MSRP's simpler two-phase
// transaction: a request awaiting exactly one final response.
type TransactionState interface {
	Name() string
	IsTerminated() bool
	HandleResponse(ctx *TransactionContext, resp *chunk.Chunk) TransactionState
	Enter(ctx *TransactionContext)
	Exit(ctx *TransactionContext)
}

type pendingState struct{}

func (s *pendingState) Name() string      { return "Pending" }
func (s *pendingState) IsTerminated() bool { return false }
func (s *pendingState) Enter(ctx *TransactionContext) {}
func (s *pendingState) Exit(ctx *TransactionContext)  {}

func (s *pendingState) HandleResponse(ctx *TransactionContext, resp *chunk.Chunk) TransactionState {
	ctx.response = resp
	return &completedState{}
}

type completedState struct{}

func (s *completedState) Name() string       { return "Completed" }
func (s *completedState) IsTerminated() bool { return true }
func (s *completedState) Exit(ctx *TransactionContext) {}

func (s *completedState) Enter(ctx *TransactionContext) {
	ctx.endedAt = time.Now()
}

func (s *completedState) HandleResponse(ctx *TransactionContext, resp *chunk.Chunk) TransactionState {
	return s
}
