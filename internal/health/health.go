// Package health runs a periodic liveness probe over the roster and
// exposes an IsAlive view that internal/neighbor can optionally filter
// on. Liveness is defined as "TCP connect succeeds within a short
// timeout," nothing more.
package health

import (
	"fmt"
	"net"
	"sync"
	"time"

	"gossipchat/internal/logstore"
	"gossipchat/internal/node"
	"gossipchat/internal/roster"
)

// ProbeInterval is how often every roster member (minus self) is dialed.
const ProbeInterval = 3 * time.Second

// ProbeTimeout bounds a single dial.
const ProbeTimeout = 2 * time.Second

// Tracker holds the last-observed liveness of every roster member, one
// node.Node per peer. Entirely a local, best-effort view: nothing in
// the gossip engine depends on it being accurate.
type Tracker struct {
	roster *roster.Roster

	mu    sync.RWMutex
	peers map[logstore.PeerID]*node.Node

	stop chan struct{}
}

// New creates a tracker that optimistically assumes every roster
// member is alive until the first probe round says otherwise.
func New(r *roster.Roster) *Tracker {
	return &Tracker{
		roster: r,
		peers:  make(map[logstore.PeerID]*node.Node),
		stop:   make(chan struct{}),
	}
}

func (t *Tracker) nodeFor(id logstore.PeerID, addr string) *node.Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.peers[id]
	if !ok {
		n = node.New(string(id), addr)
		t.peers[id] = n
	}
	return n
}

// Run starts the probe ticker; it blocks until Stop is called, so
// callers run it on its own goroutine.
func (t *Tracker) Run() {
	ticker := time.NewTicker(ProbeInterval)
	defer ticker.Stop()

	fmt.Printf("🩺 health monitoring started (checking every %s)\n", ProbeInterval)
	for {
		select {
		case <-ticker.C:
			t.probeAll()
		case <-t.stop:
			return
		}
	}
}

// Stop halts the probe loop.
func (t *Tracker) Stop() {
	close(t.stop)
}

func (t *Tracker) probeAll() {
	for _, m := range t.roster.PreferredProbeOrder() {
		go t.probeOne(m.ID, m.Address)
	}
}

func (t *Tracker) probeOne(id logstore.PeerID, addr string) {
	n := t.nodeFor(id, addr)
	start := time.Now()
	conn, err := net.DialTimeout("tcp", addr, ProbeTimeout)
	if err != nil {
		wasAlive := n.IsAlive()
		n.MarkSuspected()
		if n.FailureCount() >= 3 {
			n.MarkDead()
		}
		if wasAlive || n.FailureCount() == 1 {
			fmt.Printf("💀 peer %s unreachable (probe took %s)\n", id, time.Since(start))
		}
		return
	}
	conn.Close()

	wasAlive := n.IsAlive()
	n.MarkAlive()
	if !wasAlive {
		fmt.Printf("💚 peer %s reachable again\n", id)
	}
}

// IsAlive reports the last-observed liveness for id. Peers never
// probed are assumed alive, so a fresh process doesn't wrongly exclude
// a not-yet-checked peer.
func (t *Tracker) IsAlive(id logstore.PeerID) bool {
	t.mu.RLock()
	n, known := t.peers[id]
	t.mu.RUnlock()
	if !known {
		return true
	}
	return n.IsAlive()
}

// Snapshot renders the current liveness table for the admin surface.
func (t *Tracker) Snapshot() map[string]interface{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]interface{}, len(t.peers))
	for id, n := range t.peers {
		out[string(id)] = n.Info()
	}
	return out
}
