// Package relay distributes ownership of MSRP sessions across a bounded
// pool of session-engine workers in a multi-session server process.
//
// This is not an MSRP relay in the RFC 4975 sense — spec.md explicitly
// excludes full relay forwarding semantics. It only answers "which local
// worker handles this session", the same sharding problem gosip's own
// transaction layer solves internally with the same library.
package relay

import (
	"strconv"

	"github.com/serialx/hashring"
)

// Router maps a session id to one of n shard indices via consistent
// hashing, so a given session always lands on the same worker as long as
// the shard count doesn't change.
type Router struct {
	ring    *hashring.HashRing
	shards  []string
	byShard map[string]int
}

// NewRouter builds a Router over n shards, numbered 0..n-1.
func NewRouter(n int) *Router {
	if n <= 0 {
		n = 1
	}
	shards := make([]string, n)
	byShard := make(map[string]int, n)
	for i := range shards {
		shards[i] = shardKey(i)
		byShard[shards[i]] = i
	}
	return &Router{
		ring:    hashring.New(shards),
		shards:  shards,
		byShard: byShard,
	}
}

func shardKey(i int) string {
	return "shard-" + strconv.Itoa(i)
}

// Owner returns the shard index responsible for sessionID.
func (r *Router) Owner(sessionID string) int {
	node, ok := r.ring.GetNode(sessionID)
	if !ok {
		return 0
	}
	return r.byShard[node]
}

// Shards returns the number of shards this Router was built with.
func (r *Router) Shards() int {
	return len(r.shards)
}
