package audit

import (
	"gossipchat/internal/gossip"
	"gossipchat/internal/logstore"
)

// Sink adapts a Trail into a gossip.EventSink, appending a row for
// every RUMOR this process actually admitted (received or minted).
// STATUS traffic and forwarding events are not audited — they carry
// no new message content.
type Sink struct {
	trail *Trail
}

// NewSink wraps trail as an EventSink.
func NewSink(trail *Trail) *Sink {
	return &Sink{trail: trail}
}

// Emit implements gossip.EventSink.
func (s *Sink) Emit(e gossip.Event) {
	switch e.Kind {
	case "rumor_in":
		if e.Result != logstore.Accepted.String() {
			return
		}
		s.trail.RecordAccepted("rumor", logstore.Message{Origin: e.Origin, Seq: e.Seq, Text: e.Text})
	case "mint":
		s.trail.RecordAccepted("mint", logstore.Message{Origin: e.Origin, Seq: e.Seq, Text: e.Text})
	}
}
