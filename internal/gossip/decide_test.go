package gossip

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gossipchat/internal/logstore"
)

type panicRand struct{}

func (panicRand) Intn(int) int { panic("rand source must not be consulted on this path") }

type fixedRand struct{ v int }

func (f fixedRand) Intn(int) int { return f.v }

func storeWith(self logstore.PeerID, origin logstore.PeerID, upTo uint32) *logstore.Store {
	s := logstore.New(self)
	for seq := uint32(1); seq <= upTo; seq++ {
		s.Admit(logstore.Message{Origin: origin, Seq: seq, Text: []byte("x")})
	}
	return s
}

// A has {A:3}, B sends STATUS A:1. A replies with RUMORs A:2 and A:3,
// and never flips a coin.
func TestDecideStatus_MissingFromPeerSendsRumorsNoCoinFlip(t *testing.T) {
	a := storeWith("A", "A", 3)

	replies, fresh := DecideStatus(a, map[logstore.PeerID]uint32{"A": 1}, func() (string, bool) {
		t.Fatal("pickFresh must not be called when MissingFromPeer is non-empty")
		return "", false
	}, panicRand{})

	require.Len(t, replies, 2)
	require.Nil(t, fresh)
}

func TestDecideStatus_SelfBehindRepliesWithLocalStatus(t *testing.T) {
	a := storeWith("A", "A", 1)

	replies, fresh := DecideStatus(a, map[logstore.PeerID]uint32{"A": 3}, func() (string, bool) {
		t.Fatal("pickFresh must not be called when self is behind")
		return "", false
	}, panicRand{})

	require.Len(t, replies, 1)
	require.Equal(t, "STATUS A:1", string(replies[0]))
	require.Nil(t, fresh)
}

// Scenario 5: both sides equal, coin heads: A picks a fresh neighbor C
// and pushes local STATUS to it.
func TestDecideStatus_EqualDigestsCoinHeadsPushesFreshStatus(t *testing.T) {
	a := storeWith("A", "A", 2)
	a.Admit(logstore.Message{Origin: "B", Seq: 1, Text: []byte("x")})

	freshAddr := "127.0.0.1:20002"
	replies, fresh := DecideStatus(a, map[logstore.PeerID]uint32{"A": 2, "B": 1}, func() (string, bool) {
		return freshAddr, true
	}, fixedRand{v: 1})

	require.Nil(t, replies)
	require.Len(t, fresh, 1)
	require.Equal(t, freshAddr, fresh[0].Addr)
}

func TestDecideStatus_EqualDigestsCoinTailsStops(t *testing.T) {
	a := storeWith("A", "A", 2)

	replies, fresh := DecideStatus(a, map[logstore.PeerID]uint32{"A": 2}, func() (string, bool) {
		t.Fatal("pickFresh must not be called on tails")
		return "", false
	}, fixedRand{v: 0})

	require.Len(t, replies, 0)
	require.Len(t, fresh, 0)
}

func TestDecideStatus_CoinHeadsButNoFreshNeighborStops(t *testing.T) {
	a := storeWith("A", "A", 1)

	replies, fresh := DecideStatus(a, map[logstore.PeerID]uint32{"A": 1}, func() (string, bool) {
		return "", false
	}, fixedRand{v: 1})

	require.Len(t, replies, 0)
	require.Len(t, fresh, 0)
}

func TestDecideRumor_AcceptedForwardsExcludingOrigin(t *testing.T) {
	s := logstore.New("self")
	msg := logstore.Message{Origin: "X", Seq: 1, Text: []byte("hi")}

	var excludedWith logstore.PeerID
	result, sends := DecideRumor(s, msg, func(excluding logstore.PeerID) (string, bool) {
		excludedWith = excluding
		return "127.0.0.1:20002", true
	})

	require.Equal(t, logstore.Accepted, result)
	require.EqualValues(t, "X", excludedWith)
	require.Len(t, sends, 1)
	require.Equal(t, "RUMOR X 1 hi", string(sends[0].Frame))
}

func TestDecideRumor_DuplicateOrGapDoesNotForward(t *testing.T) {
	s := logstore.New("self")
	s.Admit(logstore.Message{Origin: "X", Seq: 1, Text: []byte("hi")})

	result, sends := DecideRumor(s, logstore.Message{Origin: "X", Seq: 1, Text: []byte("hi")}, func(logstore.PeerID) (string, bool) {
		t.Fatal("must not pick a neighbor for a duplicate")
		return "", false
	})
	require.Equal(t, logstore.Duplicate, result)
	require.Nil(t, sends)

	result, sends = DecideRumor(s, logstore.Message{Origin: "X", Seq: 9, Text: []byte("hi")}, func(logstore.PeerID) (string, bool) {
		t.Fatal("must not pick a neighbor for a gap")
		return "", false
	})
	require.Equal(t, logstore.Gap, result)
	require.Nil(t, sends)
}

func TestDecideRumor_AcceptedButNoNeighborAvailable(t *testing.T) {
	s := logstore.New("self")
	result, sends := DecideRumor(s, logstore.Message{Origin: "X", Seq: 1, Text: []byte("hi")}, func(logstore.PeerID) (string, bool) {
		return "", false
	})
	require.Equal(t, logstore.Accepted, result)
	require.Nil(t, sends)
}
