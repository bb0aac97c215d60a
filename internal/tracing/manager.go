package tracing

import (
	"sync"

	"firestige.xyz/msrp/internal/log"
	"firestige.xyz/msrp/pkg/msrp/chunk"
)

// TransactionListener is notified as transactions are created and
// terminated, mirroring the teacher's TransactionManager listener idiom.
type TransactionListener interface {
	OnTransactionCreated(ctx *TransactionContext)
	OnTransactionTerminated(ctx *TransactionContext)
}

// TransactionManager correlates MSRP requests with their final responses,
// keyed by transaction id, and fans out lifecycle events to its listeners.
type TransactionManager struct {
	store     sync.Map // transaction id -> *TransactionContext
	mu        sync.Mutex
	listeners []TransactionListener
}

func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

func (m *TransactionManager) RegisterListener(l TransactionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// TrackRequest begins tracking a new transaction for req, exchanged with
// peer (a free-form address/identity string used only for tagging the
// emitted segment).
func (m *TransactionManager) TrackRequest(req *chunk.Chunk, peer string) *TransactionContext {
	ctx := newTransaction(req, peer)
	m.store.Store(ctx.ID(), ctx)

	m.mu.Lock()
	listeners := append([]TransactionListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l.OnTransactionCreated(ctx)
	}
	return ctx
}

// HandleResponse advances the transaction matching resp's transaction id,
// if one is being tracked, and notifies listeners when it terminates.
func (m *TransactionManager) HandleResponse(resp *chunk.Chunk) {
	v, ok := m.store.Load(resp.TransactionID())
	if !ok {
		log.GetLogger().WithField("tid", resp.TransactionID()).
			Debugf("tracing: response for unknown transaction")
		return
	}
	ctx := v.(*TransactionContext)
	if !ctx.HandleResponse(resp) {
		return
	}
	m.store.Delete(ctx.ID())

	m.mu.Lock()
	listeners := append([]TransactionListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l.OnTransactionTerminated(ctx)
	}
}

// GetTransaction returns the transaction tracked for id, if any.
func (m *TransactionManager) GetTransaction(id string) (*TransactionContext, bool) {
	v, ok := m.store.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*TransactionContext), true
}
