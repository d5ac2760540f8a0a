// Package gossip is the protocol state machine: it ingests RUMOR and
// STATUS frames, decides what to forward and when to stop (decide.go),
// and performs the resulting sends. Decision logic and I/O are kept
// separate so the decision table can be tested without a network.
package gossip

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"gossipchat/internal/logstore"
	"gossipchat/internal/neighbor"
	"gossipchat/internal/protocol"
	"gossipchat/internal/transport"
)

// Event is emitted for every RUMOR/STATUS/local-submission processed,
// purely for observability — the admin WebSocket tail (internal/admin)
// and the audit trail (internal/audit) both subscribe to these.
// Nothing reads Events back into gossip decisions.
type Event struct {
	Kind     string // "rumor_in", "rumor_forward", "status_in", "status_out", "mint"
	Origin   logstore.PeerID
	Seq      uint32
	Text     []byte
	Result   string
	PeerAddr string
	At       time.Time
}

// EventSink receives Engine events. Implementations must not block
// meaningfully — Emit is called synchronously on the handling goroutine.
type EventSink interface {
	Emit(Event)
}

// nullSink discards events; used when the caller passes a nil sink.
type nullSink struct{}

func (nullSink) Emit(Event) {}

// lockedRand adapts a *rand.Rand (not safe for concurrent use) into a
// RandSource safe for the engine's many concurrent connection
// handlers to share.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// Engine ties the Log Store, Neighbor Selector, and Peer Transport
// together per §2's data-flow description.
type Engine struct {
	self  logstore.PeerID
	store *logstore.Store
	sel   *neighbor.Selector
	rnd   RandSource
	sink  EventSink
}

// New creates an Engine. rnd may be nil, in which case a time-seeded,
// mutex-guarded source is used; tests should pass a seeded *rand.Rand
// for determinism. sink may be nil.
func New(store *logstore.Store, sel *neighbor.Selector, rnd *rand.Rand, sink EventSink) *Engine {
	if sink == nil {
		sink = nullSink{}
	}
	var rs RandSource
	if rnd != nil {
		rs = &lockedRand{r: rnd}
	} else {
		rs = &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
	}
	return &Engine{self: store.Self(), store: store, sel: sel, rnd: rs, sink: sink}
}

// HandleRumor processes an inbound RUMOR frame: admit, and on Accepted
// forward it onward.
func (e *Engine) HandleRumor(origin logstore.PeerID, seq uint32, text []byte) {
	msg := logstore.Message{Origin: origin, Seq: seq, Text: text}
	result, sends := DecideRumor(e.store, msg, e.sel.Pick)

	e.sink.Emit(Event{Kind: "rumor_in", Origin: origin, Seq: seq, Text: text, Result: result.String(), At: time.Now()})
	fmt.Printf("🦠 rumor %s:%d from wire -> %s\n", origin, seq, result)

	for _, s := range sends {
		e.sink.Emit(Event{Kind: "rumor_forward", Origin: origin, Seq: seq, Text: text, PeerAddr: s.Addr, At: time.Now()})
		transport.Send(s.Addr, s.Frame)
	}
}

// HandleStatus processes an inbound STATUS frame. reply is the still-open
// connection the STATUS arrived on (or io.Discard, for a STATUS that
// itself arrived as a reply to one of our own PushStatus calls — see
// handleStatusReply); any frames DecideStatus wants to send directly
// back to the sender are written there, newline-joined, instead of
// requiring a dial-out address we have no way to recover from the wire
// frame alone. The coin-heads "start a fresh round" branch still dials
// out via PushStatus, using an address from the neighbor selector.
func (e *Engine) HandleStatus(peerDigest map[logstore.PeerID]uint32, reply io.Writer) {
	replies, fresh := DecideStatus(e.store, peerDigest, func() (string, bool) {
		return e.sel.Pick("")
	}, e.rnd)

	e.sink.Emit(Event{Kind: "status_in", At: time.Now()})
	fmt.Printf("📊 status received (%d reply frames, %d fresh push)\n", len(replies), len(fresh))

	if len(replies) > 0 {
		e.sink.Emit(Event{Kind: "status_out", At: time.Now()})
		if _, err := reply.Write(bytes.Join(replies, []byte("\n"))); err != nil {
			fmt.Printf("📊 writing status reply failed: %v\n", err)
		}
	}

	for _, s := range fresh {
		e.sink.Emit(Event{Kind: "status_out", PeerAddr: s.Addr, At: time.Now()})
		e.PushStatus(s.Addr)
	}
}

// PushStatus opens a fresh duplex session to addr carrying our current
// digest, and processes whatever reply comes back — RUMOR frames are
// admitted and potentially forwarded same as if they'd arrived over
// transport.Listen; a counter-STATUS is handled too, but any further
// reply it would produce is discarded (io.Discard) rather than chained
// into another round-trip, bounding recursion at one hop. The periodic
// anti-entropy ticker is what drives convergence the rest of the way.
func (e *Engine) PushStatus(addr string) {
	local := e.store.SnapshotDigest()
	reply, ok := transport.SendStatus(addr, protocol.EncodeStatus(local))
	if !ok {
		return
	}
	e.handleStatusReply(reply)
}

func (e *Engine) handleStatusReply(frames [][]byte) {
	for _, f := range frames {
		parsed := protocol.Parse(f)
		switch parsed.Kind {
		case protocol.KindRumor:
			e.HandleRumor(parsed.Rumor.Origin, parsed.Rumor.Seq, parsed.Rumor.Text)
		case protocol.KindStatus:
			e.HandleStatus(parsed.Status.Digest, io.Discard)
		}
	}
}

// HandleLocalSubmission mints a new message from the local node and
// forwards it to a selected neighbor (excluding nobody but self).
func (e *Engine) HandleLocalSubmission(text []byte) logstore.Message {
	m := e.store.Mint(text)
	e.sink.Emit(Event{Kind: "mint", Origin: m.Origin, Seq: m.Seq, Text: m.Text, At: time.Now()})
	fmt.Printf("✍️  minted %s:%d\n", m.Origin, m.Seq)

	addr, ok := e.sel.Pick("")
	if !ok {
		return m
	}
	transport.Send(addr, protocol.EncodeRumor(m.Origin, m.Seq, m.Text))
	return m
}
