package audit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gossipchat/internal/gossip"
	"gossipchat/internal/logstore"
)

func TestRecordAndReadBack(t *testing.T) {
	trail, err := Open(t.TempDir(), "self")
	require.NoError(t, err)
	defer trail.Close()

	trail.RecordAccepted("rumor", logstore.Message{Origin: "X", Seq: 1, Text: []byte("hi")})
	trail.RecordAccepted("mint", logstore.Message{Origin: "self", Seq: 1, Text: []byte("bye")})

	entries := trail.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.NotEmpty(t, e.CorrelationID)
	}
}

func TestSinkOnlyRecordsAcceptedRumorsAndMints(t *testing.T) {
	trail, err := Open(t.TempDir(), "self")
	require.NoError(t, err)
	defer trail.Close()

	sink := NewSink(trail)
	sink.Emit(gossip.Event{Kind: "rumor_in", Origin: "X", Seq: 1, Text: []byte("a"), Result: logstore.Accepted.String()})
	sink.Emit(gossip.Event{Kind: "rumor_in", Origin: "X", Seq: 2, Text: []byte("b"), Result: logstore.Duplicate.String()})
	sink.Emit(gossip.Event{Kind: "status_in"})
	sink.Emit(gossip.Event{Kind: "mint", Origin: "self", Seq: 1, Text: []byte("c")})

	require.Len(t, trail.All(), 2)
}
