package relay

import (
	"net"
	"testing"
	"time"

	"firestige.xyz/msrp/pkg/msrp/chunk"
	"firestige.xyz/msrp/pkg/msrp/session"
	"firestige.xyz/msrp/pkg/msrp/transport"
	"firestige.xyz/msrp/pkg/msrp/uri"
)

func TestRouterIsStableForSameSessionID(t *testing.T) {
	r := NewRouter(8)
	first := r.Owner("session-1")
	for i := 0; i < 100; i++ {
		if got := r.Owner("session-1"); got != first {
			t.Fatalf("Owner(session-1) = %d on call %d, want stable %d", got, i, first)
		}
	}
}

func TestRouterSpreadsAcrossShards(t *testing.T) {
	r := NewRouter(4)
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		id := "session-" + string(rune('a'+i%26)) + string(rune('0'+i%10))
		seen[r.Owner(id)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected sessions to spread across multiple shards, got %v", seen)
	}
}

func TestRouterClampsNonPositiveShardCount(t *testing.T) {
	r := NewRouter(0)
	if r.Shards() != 1 {
		t.Fatalf("Shards() = %d, want 1 for a non-positive request", r.Shards())
	}
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	t.Cleanup(func() { clientConn.Close(); serverConn.Close() })

	local, err := uri.Parse("msrp://relay.example.com:2855/router;tcp")
	if err != nil {
		t.Fatalf("uri.Parse: %v", err)
	}
	tr := transport.New(serverConn, local, []*uri.URI{local}, nil)
	return session.New(tr, func(c *chunk.Chunk) {}, func(error) {}, session.Options{
		ShutdownTimeout: 10 * time.Millisecond,
	})
}

func TestPoolAssignStartsSessionOnOwningWorker(t *testing.T) {
	pool := NewPool(4)
	s := newTestSession(t)

	if err := pool.Assign("session-1", s); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	load := pool.WorkerLoad()
	total := 0
	for _, n := range load {
		total += n
	}
	if total != 1 {
		t.Fatalf("WorkerLoad totals %d, want 1", total)
	}

	s.Shutdown(false)
	pool.Release("session-1")
	pool.Close()
}

func TestPoolRejectsAssignAfterClose(t *testing.T) {
	pool := NewPool(2)
	pool.Close()

	s := newTestSession(t)
	if err := pool.Assign("session-1", s); err == nil {
		t.Fatal("expected Assign to fail after Close")
	}
}
