// Package control is the single TCP entry point a process exposes: it
// accepts both peer frames (RUMOR/STATUS) and proxy commands
// (get chatLog/crash/msg) on the same listener, dispatching by the
// frame's leading tag per the Peer Transport's listen() contract.
package control

import (
	"fmt"
	"net"
	"os"

	"gossipchat/internal/gossip"
	"gossipchat/internal/logstore"
	"gossipchat/internal/protocol"
	"gossipchat/internal/transport"
)

// exitFunc is os.Exit, indirected so tests can observe a `crash`
// command without killing the test binary.
var exitFunc = os.Exit

// Surface wires the Log Store and Gossip Engine to the proxy commands.
type Surface struct {
	store  *logstore.Store
	engine *gossip.Engine
}

// New creates a Surface.
func New(store *logstore.Store, engine *gossip.Engine) *Surface {
	return &Surface{store: store, engine: engine}
}

// Serve runs the combined peer+proxy listener on addr. It blocks;
// callers run it on its own goroutine or as main's final call.
func (s *Surface) Serve(addr string) error {
	return transport.ListenConn(addr, s.handleConn)
}

func (s *Surface) handleConn(conn net.Conn, raw []byte) {
	defer conn.Close()

	parsed := protocol.Parse(raw)
	switch parsed.Kind {
	case protocol.KindRumor:
		s.engine.HandleRumor(parsed.Rumor.Origin, parsed.Rumor.Seq, parsed.Rumor.Text)

	case protocol.KindStatus:
		s.engine.HandleStatus(parsed.Status.Digest, conn)

	case protocol.KindGetChatLog:
		texts := s.store.DumpAllTexts()
		if _, err := conn.Write(protocol.EncodeChatLogResponse(texts)); err != nil {
			fmt.Printf("📡 writing chatLog response failed: %v\n", err)
		}

	case protocol.KindCrash:
		fmt.Println("💥 crash command received — exiting immediately, no flush")
		exitFunc(0)

	case protocol.KindClientMsg:
		// <id> is client-supplied framing only; not stored.
		s.engine.HandleLocalSubmission(parsed.ClientMsg.Text)

	case protocol.KindMalformed:
		fmt.Printf("⚠️ malformed frame dropped: %q\n", raw)
	}
}
