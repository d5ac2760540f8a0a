// Package logstore is the per-origin append-only message log and the
// version vector of highest contiguous sequence numbers observed per
// origin. It is the single piece of shared mutable state in the
// gossip engine; every operation here holds one mutex for the
// combined (log, vv) pair, per the concurrency model.
package logstore

import (
	"fmt"
	"sort"
	"sync"
)

// PeerID is an opaque, stable identifier for a process. In the
// reference deployment it is the process's decimal listening port,
// but nothing in this package treats it as anything but a string key.
type PeerID string

// Message is a single chat message. Immutable once stored; (Origin,
// Seq) is a globally unique identifier.
type Message struct {
	Origin PeerID
	Seq    uint32
	Text   []byte
}

// AdmitResult reports what admitting a message did to the store.
type AdmitResult int

const (
	Accepted AdmitResult = iota
	Duplicate
	Gap
)

func (r AdmitResult) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Duplicate:
		return "duplicate"
	case Gap:
		return "gap"
	default:
		return "unknown"
	}
}

// Store is the log + version vector pair. The zero value is not
// usable; construct with New.
type Store struct {
	mu   sync.Mutex
	self PeerID
	log  map[PeerID][]Message
	vv   map[PeerID]uint32
}

// New creates an empty store for the local node identified by self.
// Only self may ever be the origin of a Mint call.
func New(self PeerID) *Store {
	return &Store{
		self: self,
		log:  make(map[PeerID][]Message),
		vv:   make(map[PeerID]uint32),
	}
}

// Admit enforces per-origin contiguity: a message is only stored if
// its seq is exactly one past the highest contiguous seq already held
// for its origin. Out-of-order arrivals are discarded, not buffered —
// the sender is expected to be caught up by a later STATUS exchange.
func (s *Store) Admit(msg Message) AdmitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	have := s.vv[msg.Origin]
	switch {
	case msg.Seq <= have:
		return Duplicate
	case msg.Seq > have+1:
		return Gap
	}

	text := append([]byte(nil), msg.Text...)
	s.log[msg.Origin] = append(s.log[msg.Origin], Message{Origin: msg.Origin, Seq: msg.Seq, Text: text})
	s.vv[msg.Origin] = msg.Seq
	return Accepted
}

// Mint creates the next message from the local node. The mutex held
// across the read-increment-append keeps concurrently minted messages
// strictly increasing with no gaps.
func (s *Store) Mint(text []byte) Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.vv[s.self] + 1
	msg := Message{Origin: s.self, Seq: seq, Text: append([]byte(nil), text...)}
	s.log[s.self] = append(s.log[s.self], msg)
	s.vv[s.self] = seq
	return msg
}

// SnapshotDigest returns a copy of the version vector — the STATUS
// payload for this node.
func (s *Store) SnapshotDigest() map[PeerID]uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[PeerID]uint32, len(s.vv))
	for p, seq := range s.vv {
		out[p] = seq
	}
	return out
}

// MessagesFrom returns all stored messages for origin with seq >
// sinceSeq, in ascending seq order.
func (s *Store) MessagesFrom(origin PeerID, sinceSeq uint32) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.log[origin]
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Seq > sinceSeq {
			out = append(out, Message{Origin: m.Origin, Seq: m.Seq, Text: append([]byte(nil), m.Text...)})
		}
	}
	return out
}

// DumpAllTexts returns every stored message's text. Iteration order is
// implementation-defined and carries no convergence meaning — it only
// backs the proxy's `get chatLog` query.
func (s *Store) DumpAllTexts() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, 0)
	for _, msgs := range s.log {
		for _, m := range msgs {
			out = append(out, append([]byte(nil), m.Text...))
		}
	}
	return out
}

// Self returns the local node's peer id.
func (s *Store) Self() PeerID {
	return s.self
}

// DigestString renders a version vector for logging, sorted by origin
// for deterministic output.
func DigestString(vv map[PeerID]uint32) string {
	if len(vv) == 0 {
		return "{}"
	}
	origins := make([]string, 0, len(vv))
	for p := range vv {
		origins = append(origins, string(p))
	}
	sort.Strings(origins)

	out := "{"
	for i, p := range origins {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s:%d", p, vv[PeerID(p)])
	}
	return out + "}"
}
