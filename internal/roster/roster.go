// Package roster tracks the deployment's static set of peer addresses.
// It answers two questions: "what is the candidate set for neighbor
// selection" (internal/neighbor) and "what deterministic order should
// the liveness prober (internal/health) walk the roster in" — the
// second is a convenience, not part of convergence correctness.
package roster

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	"gossipchat/internal/logstore"
)

// Member is one roster entry.
type Member struct {
	ID      logstore.PeerID
	Address string
}

type virtualNode struct {
	hash uint32
	id   logstore.PeerID
}

// Roster is the deployment's known peer set: a fixed list for the
// reference linear topology, or an arbitrary set for a generalized
// deployment. It is built once at startup and is not mutated by
// gossip traffic — membership here is static.
type Roster struct {
	mu           sync.RWMutex
	self         logstore.PeerID
	members      map[logstore.PeerID]Member
	virtualNodes []virtualNode // sorted by hash, 150 per member
	replicas     int
}

// New creates a roster for self, seeded with members (self's own
// entry may or may not be included; it is always excluded from
// candidate sets regardless).
func New(self logstore.PeerID, members []Member) *Roster {
	r := &Roster{
		self:     self,
		members:  make(map[logstore.PeerID]Member, len(members)),
		replicas: 150,
	}
	for _, m := range members {
		r.add(m)
	}
	return r
}

// LinearTopology builds a roster spanning the reference deployment's
// full process range: N processes at consecutive ports
// basePort..basePort+n-1. The name refers only to the port-numbering
// scheme, not the candidate set — every other process is added as a
// plain member with no self±1 adjacency filtering, so Candidates
// returns the full N-1 peer mesh minus self, same as calling New
// directly with that member list.
func LinearTopology(self logstore.PeerID, n int, basePort int) *Roster {
	members := make([]Member, 0, n)
	for i := 0; i < n; i++ {
		port := basePort + i
		members = append(members, Member{
			ID:      logstore.PeerID(fmt.Sprintf("%d", port)),
			Address: fmt.Sprintf("127.0.0.1:%d", port),
		})
	}
	return New(self, members)
}

func (r *Roster) add(m Member) {
	r.members[m.ID] = m
	for i := 0; i < r.replicas; i++ {
		key := fmt.Sprintf("%s:%d", m.ID, i)
		r.virtualNodes = append(r.virtualNodes, virtualNode{hash: hashKey(key), id: m.ID})
	}
	sort.Slice(r.virtualNodes, func(i, j int) bool { return r.virtualNodes[i].hash < r.virtualNodes[j].hash })
}

// Self returns the local peer id.
func (r *Roster) Self() logstore.PeerID {
	return r.self
}

// Candidates returns every roster member's address except self and,
// if non-empty, excluding. Order is unspecified — callers needing
// uniform-random selection must pick randomly over this slice
// themselves (internal/neighbor does).
func (r *Roster) Candidates(excluding logstore.PeerID) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Member, 0, len(r.members))
	for id, m := range r.members {
		if id == r.self || id == excluding {
			continue
		}
		out = append(out, m)
	}
	return out
}

// All returns every member, including self, for admin-surface display.
func (r *Roster) All() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup returns a member's address by id.
func (r *Roster) Lookup(id logstore.PeerID) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[id]
	return m, ok
}

// PreferredProbeOrder returns the roster (minus self) ordered by the
// hash ring's successor relation starting from self's own virtual
// nodes — a deterministic, stable walk order for the liveness prober.
// It has no bearing on pickNeighbor's uniform-random requirement.
func (r *Roster) PreferredProbeOrder() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.virtualNodes) == 0 {
		return nil
	}

	startHash := hashKey(fmt.Sprintf("%s:0", r.self))
	idx := sort.Search(len(r.virtualNodes), func(i int) bool { return r.virtualNodes[i].hash >= startHash })

	seen := make(map[logstore.PeerID]bool, len(r.members))
	out := make([]Member, 0, len(r.members))
	for i := 0; i < len(r.virtualNodes) && len(out) < len(r.members)-1; i++ {
		vn := r.virtualNodes[(idx+i)%len(r.virtualNodes)]
		if vn.id == r.self || seen[vn.id] {
			continue
		}
		seen[vn.id] = true
		out = append(out, r.members[vn.id])
	}
	return out
}

func hashKey(key string) uint32 {
	h := sha256.Sum256([]byte(key))
	return uint32(h[0])<<24 | uint32(h[1])<<16 | uint32(h[2])<<8 | uint32(h[3])
}
