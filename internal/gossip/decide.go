package gossip

import (
	"gossipchat/internal/logstore"
	"gossipchat/internal/protocol"
)

// LogView is the slice of *logstore.Store that decision logic needs.
// Declaring it narrowly (rather than taking *logstore.Store directly)
// keeps Decide a pure function over an abstract state object, per the
// "explicit state object" redesign note.
type LogView interface {
	SnapshotDigest() map[logstore.PeerID]uint32
	MessagesFrom(origin logstore.PeerID, sinceSeq uint32) []logstore.Message
}

// RandSource is the minimal interface Decide needs from a random
// source — satisfied directly by *rand.Rand, so tests can inject a
// seeded one for deterministic coin flips.
type RandSource interface {
	Intn(n int) int
}

// Send is one outbound frame this decision produced, addressed to a
// concrete peer address. Decide never performs I/O itself; the caller
// (Engine) performs the sends: forwarded rumors via transport.Send, a
// fresh STATUS round via PushStatus.
type Send struct {
	Addr  string
	Frame []byte
}

// DecideStatus implements the §4.4 STATUS decision table as a pure
// function: given the local log view, the peer's digest, a callback to
// pick a fresh neighbor (for the coin-heads branch), and a random
// source (for the coin flip), it returns two things: replies, the
// frames that must go back to whichever peer sent this STATUS (over
// the same session it arrived on — the caller never needs that peer's
// dial address for these), and fresh, the at-most-one Send describing
// a new gossip round against a different neighbor, which does need a
// real address because it is a new outbound session. It never mutates
// store state and never opens a socket.
func DecideStatus(view LogView, peerDigest map[logstore.PeerID]uint32, pickFresh func() (string, bool), rnd RandSource) (replies [][]byte, fresh []Send) {
	local := view.SnapshotDigest()

	origins := make(map[logstore.PeerID]struct{}, len(local)+len(peerDigest))
	for o := range local {
		origins[o] = struct{}{}
	}
	for o := range peerDigest {
		origins[o] = struct{}{}
	}

	missingFromPeerEmpty := true
	selfBehind := false

	for o := range origins {
		l := local[o]
		p := peerDigest[o]

		if l > p {
			missingFromPeerEmpty = false
			for _, m := range view.MessagesFrom(o, p) {
				replies = append(replies, protocol.EncodeRumor(m.Origin, m.Seq, m.Text))
			}
		}
		if p > l {
			selfBehind = true
		}
	}

	if !missingFromPeerEmpty {
		return replies, nil
	}

	if selfBehind {
		return [][]byte{protocol.EncodeStatus(local)}, nil
	}

	// MissingFromPeer is empty and we are not behind: flip a fair coin.
	// heads (1) continues the gossip round against a fresh neighbor;
	// tails (0) stops. Which face is which is an arbitrary but fixed
	// convention — only the 50/50 split is load-bearing.
	heads := rnd.Intn(2) == 1
	if !heads {
		return nil, nil
	}
	addr, ok := pickFresh()
	if !ok {
		return nil, nil
	}
	return nil, []Send{{Addr: addr, Frame: protocol.EncodeStatus(local)}}
}

// DecideRumor implements the RUMOR handling rule: admit, and on
// Accepted forward the same rumor to a neighbor excluding the rumor's
// origin (the only sender identity the wire frame carries — see the
// redesign note on deriving sender identity from the RUMOR, not the
// socket). Returns the admit result and any frame to forward.
func DecideRumor(store *logstore.Store, msg logstore.Message, pickNeighbor func(excluding logstore.PeerID) (string, bool)) (logstore.AdmitResult, []Send) {
	result := store.Admit(msg)
	if result != logstore.Accepted {
		return result, nil
	}

	addr, ok := pickNeighbor(msg.Origin)
	if !ok {
		return result, nil
	}
	return result, []Send{{Addr: addr, Frame: protocol.EncodeRumor(msg.Origin, msg.Seq, msg.Text)}}
}
