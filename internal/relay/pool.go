package relay

import (
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/tevino/abool"

	"firestige.xyz/msrp/pkg/msrp/session"
)

// Pool owns a fixed number of workers, each responsible for the sessions
// a Router assigns to its shard index. A session is only ever driven by
// one worker, so per-session state never needs cross-goroutine locking.
type Pool struct {
	router  *Router
	closed  *abool.AtomicBool
	workers []*worker
}

type worker struct {
	wg       conc.WaitGroup
	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewPool builds a Pool with shards workers.
func NewPool(shards int) *Pool {
	router := NewRouter(shards)
	workers := make([]*worker, router.Shards())
	for i := range workers {
		workers[i] = &worker{sessions: make(map[string]*session.Session)}
	}
	return &Pool{router: router, closed: abool.New(), workers: workers}
}

// Assign routes sessionID to its owning worker and starts it there,
// panic-safe via conc.WaitGroup the same way the session engine's own
// reader/writer/keep-alive tasks are supervised. It fails once the pool
// has been closed.
func (p *Pool) Assign(sessionID string, s *session.Session) error {
	if p.closed.IsSet() {
		return fmt.Errorf("relay: pool is closed")
	}
	w := p.workers[p.router.Owner(sessionID)]
	w.mu.Lock()
	w.sessions[sessionID] = s
	w.mu.Unlock()

	w.wg.Go(func() {
		s.Start()
	})
	return nil
}

// Release removes sessionID from its worker's bookkeeping. It does not
// shut the session down; callers shut a session down explicitly before
// releasing it.
func (p *Pool) Release(sessionID string) {
	w := p.workers[p.router.Owner(sessionID)]
	w.mu.Lock()
	delete(w.sessions, sessionID)
	w.mu.Unlock()
}

// WorkerLoad reports how many sessions each worker currently owns,
// indexed by shard.
func (p *Pool) WorkerLoad() []int {
	loads := make([]int, len(p.workers))
	for i, w := range p.workers {
		w.mu.Lock()
		loads[i] = len(w.sessions)
		w.mu.Unlock()
	}
	return loads
}

// Close marks the pool closed, rejecting further Assign calls, then waits
// for the Start call of every session already assigned to return. Start
// only launches a session's tasks, so Close does not wait for sessions to
// finish.
func (p *Pool) Close() {
	p.closed.Set()
	for _, w := range p.workers {
		w.wg.Wait()
	}
}
