package health

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gossipchat/internal/roster"
)

func TestIsAliveDefaultsToTrueForUnprobedPeer(t *testing.T) {
	r := roster.New("A", []roster.Member{{ID: "B", Address: "127.0.0.1:1"}})
	tr := New(r)
	require.True(t, tr.IsAlive("B"))
}

func TestProbeMarksAliveAndSuspectedTransitions(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	r := roster.New("A", []roster.Member{{ID: "B", Address: ln.Addr().String()}})
	tr := New(r)

	tr.probeOne("B", ln.Addr().String())
	require.True(t, tr.IsAlive("B"))

	closedLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := closedLn.Addr().String()
	closedLn.Close()

	tr.probeOne("B", addr)
	require.False(t, tr.IsAlive("B"))
}

func TestRunStopsCleanly(t *testing.T) {
	r := roster.New("A", []roster.Member{{ID: "B", Address: "127.0.0.1:1"}})
	tr := New(r)

	done := make(chan struct{})
	go func() {
		tr.Run()
		close(done)
	}()
	tr.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
