// Package transport is the one-shot, connection-per-message send/listen
// primitive every other component talks through. Each outbound session
// carries exactly one frame, delimited only by the sender closing (or
// half-closing) the connection — there is no length prefix. The one
// session that carries more is SendStatus's: the receiver may answer
// on it with several newline-joined frames.
package transport

import (
	"fmt"
	"io"
	"net"
	"time"

	"gossipchat/internal/protocol"
)

// DialTimeout bounds how long Send waits to establish a connection.
// Kept short since sends never retry.
const DialTimeout = 2 * time.Second

// Send opens a new session to addr, writes frame, and closes. Any
// failure (connect refused, write error) is logged and swallowed —
// the caller never learns the outcome. Convergence is the anti-entropy
// loop's job, not this function's.
func Send(addr string, frame []byte) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		fmt.Printf("📡 send to %s failed (dial): %v\n", addr, err)
		return
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		fmt.Printf("📡 send to %s failed (write): %v\n", addr, err)
		return
	}
}

// ReplyTimeout bounds how long SendStatus waits for a reply after
// half-closing its write side.
const ReplyTimeout = 2 * time.Second

// MaxReplySize bounds the total bytes SendStatus will read back, large
// enough to hold several RUMOR frames (a STATUS reply can legitimately
// carry more than one missing message).
const MaxReplySize = 8 * protocol.MaxFrameSize

// SendStatus opens a session to addr and writes frame (a STATUS), same
// as Send, but then half-closes the write side instead of fully
// closing the connection: the receiver still sees EOF on its read (so
// parsing the outbound frame is unaffected), but our own read side and
// the receiver's write side stay open, letting the receiver write a
// reply — missing RUMORs or a counter-STATUS — back over the same
// connection instead of needing to dial us back on an address it has
// no way to recover. Multiple reply frames are newline-joined by the
// receiver (frame content is guaranteed newline-free by
// protocol.Parse) and split back out here. ok reports whether the
// session completed (dial/write/half-close all succeeded); a true ok
// with a nil/empty reply means "no reply was sent", which is a normal
// outcome, not an error.
func SendStatus(addr string, frame []byte) (reply [][]byte, ok bool) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		fmt.Printf("📡 send to %s failed (dial): %v\n", addr, err)
		return nil, false
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		fmt.Printf("📡 send to %s failed (write): %v\n", addr, err)
		return nil, false
	}

	half, canHalfClose := conn.(interface{ CloseWrite() error })
	if !canHalfClose {
		fmt.Printf("📡 connection to %s cannot half-close, skipping reply read\n", addr)
		return nil, true
	}
	if err := half.CloseWrite(); err != nil {
		fmt.Printf("📡 half-close to %s failed: %v\n", addr, err)
		return nil, true
	}

	conn.SetReadDeadline(time.Now().Add(ReplyTimeout))
	raw := readReply(conn)
	if len(raw) == 0 {
		return nil, true
	}
	return splitReplyFrames(raw), true
}

// readReply reads until EOF, the read deadline, or MaxReplySize,
// whichever comes first, returning whatever was accumulated.
func readReply(conn net.Conn) []byte {
	buf := make([]byte, MaxReplySize)
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			break
		}
	}
	return buf[:n]
}

func splitReplyFrames(raw []byte) [][]byte {
	var frames [][]byte
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			if i > start {
				frames = append(frames, raw[start:i])
			}
			start = i + 1
		}
	}
	if start < len(raw) {
		frames = append(frames, raw[start:])
	}
	return frames
}

// Handler is invoked once per accepted session with the single frame
// read from it. The connection is already closed by the time Handler
// runs; Handler cannot reply on the same socket (frames that need a
// same-session reply — the proxy's `get chatLog` and a STATUS — go
// through ListenConn instead).
type Handler func(frame []byte)

// Listen runs the accept loop on addr until the listener is closed or
// the process exits; it never returns under normal operation. Each
// accepted connection is read to EOF (capped at MaxFrameSize+1 bytes,
// to detect and reject oversize frames without an unbounded read) on
// its own goroutine, then dispatched to handler.
func Listen(addr string, handler Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	fmt.Printf("👂 listening on %s\n", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Printf("⚠️ accept failed on %s: %v\n", addr, err)
			continue
		}
		go serveOne(conn, handler)
	}
}

// ConnHandler is invoked once per accepted session with the frame read
// from it and the still-open connection, which the handler closes.
// ListenConn is like Listen but hands sessions to a ConnHandler, for
// frames answered on the same session (`get chatLog` and STATUS).
type ConnHandler func(conn net.Conn, frame []byte)

func ListenConn(addr string, handler ConnHandler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	fmt.Printf("👂 listening on %s\n", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			fmt.Printf("⚠️ accept failed on %s: %v\n", addr, err)
			continue
		}
		go func(c net.Conn) {
			frame, ok := readOneFrame(c)
			if !ok {
				c.Close()
				return
			}
			handler(c, frame)
		}(conn)
	}
}

func serveOne(conn net.Conn, handler Handler) {
	frame, ok := readOneFrame(conn)
	conn.Close()
	if !ok {
		return
	}
	handler(frame)
}

// readOneFrame reads until EOF or MaxFrameSize+1 bytes, whichever
// comes first. Reading one extra byte past the limit lets us tell "a
// legal frame that happens to be exactly MaxFrameSize bytes" apart
// from "an oversize frame" without buffering unboundedly.
func readOneFrame(conn net.Conn) ([]byte, bool) {
	buf := make([]byte, protocol.MaxFrameSize+1)
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			if err == io.EOF {
				break
			}
			if n == 0 {
				fmt.Printf("📡 read failed: %v\n", err)
				return nil, false
			}
			break
		}
	}
	if n > protocol.MaxFrameSize {
		fmt.Printf("📡 oversize frame (>%d bytes), dropping\n", protocol.MaxFrameSize)
		return nil, false
	}
	return buf[:n], true
}
