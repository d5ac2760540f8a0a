package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gossipchat/internal/logstore"
)

func TestCompareIdenticalLogsIsConsistent(t *testing.T) {
	a := logstore.New("A")
	a.Admit(logstore.Message{Origin: "A", Seq: 1, Text: []byte("hi")})
	b := logstore.New("B")
	b.Admit(logstore.Message{Origin: "A", Seq: 1, Text: []byte("hi")})

	cmp := Compare(Build(a), Build(b))
	require.True(t, cmp.Consistent)
	require.Empty(t, cmp.MismatchedKeys)
}

func TestCompareDetectsMismatchAndMissing(t *testing.T) {
	a := logstore.New("A")
	a.Admit(logstore.Message{Origin: "A", Seq: 1, Text: []byte("hi")})
	a.Admit(logstore.Message{Origin: "B", Seq: 1, Text: []byte("only-on-a")})

	b := logstore.New("B")
	b.Admit(logstore.Message{Origin: "A", Seq: 1, Text: []byte("different text")})

	cmp := Compare(Build(a), Build(b))
	require.False(t, cmp.Consistent)
	require.Contains(t, cmp.MismatchedKeys, "A")
	require.Contains(t, cmp.MissingKeys, "B")
}

func TestCompareDetectsExtraOnPeer(t *testing.T) {
	a := logstore.New("A")
	a.Admit(logstore.Message{Origin: "A", Seq: 1, Text: []byte("hi")})

	b := logstore.New("B")
	b.Admit(logstore.Message{Origin: "A", Seq: 1, Text: []byte("hi")})
	b.Admit(logstore.Message{Origin: "C", Seq: 1, Text: []byte("extra")})

	cmp := Compare(Build(a), Build(b))
	require.False(t, cmp.Consistent)
	require.Contains(t, cmp.ExtraKeys, "C")
}

func TestBuildEmptyStoreProducesRootWithoutPanicking(t *testing.T) {
	s := logstore.New("A")
	require.NotPanics(t, func() {
		tree := Build(s)
		require.NotNil(t, tree.Root)
	})
}
