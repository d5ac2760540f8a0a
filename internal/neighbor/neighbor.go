// Package neighbor implements pickNeighbor: uniform-random selection
// of an outbound gossip target from the roster, minus self and an
// optional excluded peer, optionally filtered by liveness.
package neighbor

import (
	"math/rand"
	"sync"

	"gossipchat/internal/logstore"
	"gossipchat/internal/roster"
)

// LivenessChecker reports whether id is currently believed reachable.
// Satisfied by *health.Tracker; kept as a narrow interface here so
// this package does not need to import health.
type LivenessChecker interface {
	IsAlive(id logstore.PeerID) bool
}

// Selector picks outbound gossip targets. The liveness filter is
// optional — a nil checker means every roster member minus
// self/excluding is a candidate, and silent delivery failure is
// tolerated by the transport layer instead.
type Selector struct {
	roster   *roster.Roster
	liveness LivenessChecker

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Selector. Pick is called concurrently from every
// per-connection handler goroutine (internal/transport.ListenConn)
// plus the anti-entropy ticker's own goroutine, so rnd is guarded by
// an internal mutex the same way gossip.Engine guards its own coin
// flip — *rand.Rand itself is not safe for concurrent use.
func New(r *roster.Roster, liveness LivenessChecker, rnd *rand.Rand) *Selector {
	return &Selector{roster: r, liveness: liveness, rnd: rnd}
}

// Pick returns a candidate's address, uniformly at random over the
// post-filter candidate set, or ("", false) if no candidate remains.
func (s *Selector) Pick(excluding logstore.PeerID) (string, bool) {
	candidates := s.roster.Candidates(excluding)
	if s.liveness != nil {
		alive := candidates[:0:0]
		for _, m := range candidates {
			if s.liveness.IsAlive(m.ID) {
				alive = append(alive, m)
			}
		}
		candidates = alive
	}
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[s.intn(len(candidates))].Address, true
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Intn(n)
}
