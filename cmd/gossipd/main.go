// Command gossipd runs one gossip-chat replication node. Process
// launch and argument parsing are a fixed external contract, kept
// separate from the gossip engine under test.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	"gossipchat/internal/admin"
	"gossipchat/internal/antientropy"
	"gossipchat/internal/audit"
	"gossipchat/internal/control"
	"gossipchat/internal/gossip"
	"gossipchat/internal/health"
	"gossipchat/internal/logstore"
	"gossipchat/internal/neighbor"
	"gossipchat/internal/roster"
)

// BasePort is the reference deployment's first listening port; peer
// i listens on BasePort+i.
const BasePort = 20000

// fanout broadcasts a gossip.Event to every wrapped sink.
type fanout []gossip.EventSink

func (f fanout) Emit(e gossip.Event) {
	for _, s := range f {
		s.Emit(e)
	}
}

func main() {
	dataDir := flag.String("data-dir", "./data", "directory for the write-only audit trail")
	aeInterval := flag.Duration("ae-interval", antientropy.DefaultInterval, "anti-entropy tick interval")
	adminPort := flag.Int("admin-port", 0, "admin HTTP port (default: portNo + admin.AdminPortOffset)")
	enableAudit := flag.Bool("audit", true, "enable the write-only LevelDB audit trail")
	flag.Parse()

	args := flag.Args()
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: gossipd [flags] <processID> <nProcesses> <portNo>")
		os.Exit(1)
	}
	processID, err1 := strconv.Atoi(args[0])
	nProcesses, err2 := strconv.Atoi(args[1])
	portNo, err3 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Fprintln(os.Stderr, "processID, nProcesses, and portNo must be integers")
		os.Exit(1)
	}

	self := logstore.PeerID(strconv.Itoa(portNo))
	selfAddr := fmt.Sprintf("127.0.0.1:%d", portNo)

	fmt.Printf("🚀 starting gossip node %s (process %d of %d) listening on %s\n", self, processID, nProcesses, selfAddr)

	r := roster.LinearTopology(self, nProcesses, BasePort)
	store := logstore.New(self)

	tracker := health.New(r)
	go tracker.Run()
	defer tracker.Stop()

	adminHandler := admin.New(self, store, r, tracker, nil)
	sinks := fanout{adminHandler}

	if *enableAudit {
		trail, err := audit.Open(*dataDir, self)
		if err != nil {
			log.Fatal("failed to open audit trail:", err)
		}
		defer trail.Close()
		adminHandler = admin.New(self, store, r, tracker, trail)
		sinks = fanout{adminHandler, audit.NewSink(trail)}
	}

	sel := neighbor.New(r, tracker, rand.New(rand.NewSource(time.Now().UnixNano())))
	engine := gossip.New(store, sel, nil, sinks)

	ticker := antientropy.New(engine, sel, *aeInterval)
	go ticker.Run()
	defer ticker.Stop()

	surface := control.New(store, engine)
	go func() {
		if err := surface.Serve(selfAddr); err != nil {
			log.Fatal("peer/proxy listener failed:", err)
		}
	}()

	adminAddr := fmt.Sprintf("127.0.0.1:%d", resolveAdminPort(*adminPort, portNo))
	fmt.Printf("🖥️  admin surface listening on %s\n", adminAddr)
	if err := adminHandler.Router().Run(adminAddr); err != nil {
		log.Fatal("admin HTTP server failed:", err)
	}
}

func resolveAdminPort(explicit, portNo int) int {
	if explicit > 0 {
		return explicit
	}
	return portNo + admin.AdminPortOffset
}
