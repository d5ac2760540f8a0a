// Package node describes a single member of the gossip roster.
package node

import (
	"sync"
	"time"
)

// Status is the liveness state the local process has observed for a
// roster member. It is purely a local, best-effort view — nothing in
// the gossip engine depends on it; it only feeds the optional liveness
// filter in internal/neighbor.
type Status int

const (
	StatusAlive Status = iota
	StatusSuspected
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusSuspected:
		return "suspected"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Node is a roster member: a peer id and the address the local process
// dials to reach it, plus the locally observed liveness state.
type Node struct {
	ID      string
	Address string

	mu           sync.RWMutex
	status       Status
	lastSeen     time.Time
	failureCount int
}

// New creates a node, initially considered alive.
func New(id, address string) *Node {
	return &Node{
		ID:       id,
		Address:  address,
		status:   StatusAlive,
		lastSeen: time.Now(),
	}
}

func (n *Node) MarkAlive() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusAlive
	n.lastSeen = time.Now()
	n.failureCount = 0
}

func (n *Node) MarkSuspected() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.status == StatusAlive {
		n.status = StatusSuspected
	}
	n.failureCount++
}

func (n *Node) MarkDead() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusDead
}

func (n *Node) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

func (n *Node) IsAlive() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status == StatusAlive
}

func (n *Node) LastSeen() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastSeen
}

func (n *Node) FailureCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.failureCount
}

// Info returns a snapshot suitable for JSON rendering on the admin surface.
func (n *Node) Info() map[string]interface{} {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return map[string]interface{}{
		"id":            n.ID,
		"address":       n.Address,
		"status":        n.status.String(),
		"last_seen":     n.lastSeen.Unix(),
		"failure_count": n.failureCount,
	}
}
