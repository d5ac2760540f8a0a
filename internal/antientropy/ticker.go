// Package antientropy runs the periodic STATUS push that guarantees
// eventual convergence even if every rumor-forwarding path silently
// drops a frame.
package antientropy

import (
	"fmt"
	"time"

	"gossipchat/internal/neighbor"
)

// DefaultInterval is the anti-entropy tick period.
const DefaultInterval = 10 * time.Second

// Engine is the slice of *gossip.Engine the ticker needs — just enough
// to start a fresh gossip round against a chosen peer.
type Engine interface {
	PushStatus(addr string)
}

// Ticker pushes the local STATUS digest to a random neighbor every
// interval, for the process's lifetime, until Stop is called.
type Ticker struct {
	engine   Engine
	sel      *neighbor.Selector
	interval time.Duration
	stop     chan struct{}
}

// New creates a Ticker. interval <= 0 selects DefaultInterval.
func New(engine Engine, sel *neighbor.Selector, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{engine: engine, sel: sel, interval: interval, stop: make(chan struct{})}
}

// Run blocks, ticking until Stop is called; run it on its own goroutine.
func (t *Ticker) Run() {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	fmt.Printf("⏰ anti-entropy ticker started (every %s)\n", t.interval)
	for {
		select {
		case <-ticker.C:
			t.tick()
		case <-t.stop:
			return
		}
	}
}

// Stop halts the ticker loop.
func (t *Ticker) Stop() {
	close(t.stop)
}

func (t *Ticker) tick() {
	addr, ok := t.sel.Pick("")
	if !ok {
		fmt.Printf("⏰ anti-entropy tick skipped: no candidate neighbor\n")
		return
	}
	t.engine.PushStatus(addr)
	fmt.Printf("⏰ anti-entropy STATUS pushed to %s\n", addr)
}
