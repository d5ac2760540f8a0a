package control

import (
	"bufio"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gossipchat/internal/gossip"
	"gossipchat/internal/logstore"
	"gossipchat/internal/neighbor"
	"gossipchat/internal/roster"
)

func newTestSurface(t *testing.T, self logstore.PeerID, selfAddr string) (*Surface, *logstore.Store) {
	t.Helper()
	r := roster.New(self, []roster.Member{{ID: self, Address: selfAddr}})
	sel := neighbor.New(r, nil, rand.New(rand.NewSource(1)))
	store := logstore.New(self)
	engine := gossip.New(store, sel, rand.New(rand.NewSource(1)), nil)
	return New(store, engine), store
}

func startSurface(t *testing.T, s *Surface) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			frame := readFrame(t, conn)
			s.handleConn(conn, frame)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	// In production transport.ListenConn reads the frame before calling
	// handleConn; this test reads it here so it can feed handleConn directly.
	buf := make([]byte, 1025)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _ := conn.Read(buf)
	return buf[:n]
}

func TestGetChatLogReturnsStoredMessages(t *testing.T) {
	s, store := newTestSurface(t, "self", "127.0.0.1:0")
	store.Mint([]byte("hello"))
	addr := startSurface(t, s)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("get chatLog"))
	require.NoError(t, err)

	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "chatLog hello\n", reply)
}

func TestMsgCommandMintsLocalMessage(t *testing.T) {
	s, store := newTestSurface(t, "self", "127.0.0.1:0")
	addr := startSurface(t, s)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("msg 1 hello there"))
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		return store.SnapshotDigest()["self"] == 1
	}, time.Second, 10*time.Millisecond)

	texts := store.DumpAllTexts()
	require.Len(t, texts, 1)
	require.Equal(t, "hello there", string(texts[0]))
}

func TestCrashCommandInvokesExitFunc(t *testing.T) {
	s, _ := newTestSurface(t, "self", "127.0.0.1:0")
	addr := startSurface(t, s)

	called := make(chan int, 1)
	old := exitFunc
	exitFunc = func(code int) { called <- code }
	defer func() { exitFunc = old }()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("crash"))
	require.NoError(t, err)
	conn.Close()

	select {
	case code := <-called:
		require.Equal(t, 0, code)
	case <-time.After(time.Second):
		t.Fatal("exitFunc was not called")
	}
}

func TestMalformedFrameClosesSessionWithoutCrash(t *testing.T) {
	s, store := newTestSurface(t, "self", "127.0.0.1:0")
	addr := startSurface(t, s)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("FOO bar baz"))
	require.NoError(t, err)
	conn.Close()

	time.Sleep(100 * time.Millisecond)
	require.Empty(t, store.SnapshotDigest())
}

func TestRumorFrameAdmitsMessage(t *testing.T) {
	s, store := newTestSurface(t, "self", "127.0.0.1:0")
	addr := startSurface(t, s)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("RUMOR X 1 hi"))
	require.NoError(t, err)
	conn.Close()

	require.Eventually(t, func() bool {
		return store.SnapshotDigest()["X"] == 1
	}, time.Second, 10*time.Millisecond)
}
