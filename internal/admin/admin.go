// Package admin is the read-only HTTP observability surface: it never
// sits on the RUMOR/STATUS wire path (that is raw TCP, framed per
// internal/protocol) and nothing it serves feeds back into a gossip
// decision. One gin handler method per endpoint, JSON via gin.H, a
// WebSocket tail fed by events as they happen.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gossipchat/internal/audit"
	"gossipchat/internal/gossip"
	"gossipchat/internal/health"
	"gossipchat/internal/logstore"
	"gossipchat/internal/merkle"
	"gossipchat/internal/roster"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AdminPortOffset is added to a peer's TCP listening port to get its
// admin HTTP port — a deployment convention, not part of the roster
// itself (the roster only records the peer wire address).
const AdminPortOffset = 1000

// Handler bundles everything the admin surface reads from. All fields
// are read-only views; Handler never mutates gossip state.
type Handler struct {
	self    logstore.PeerID
	started time.Time
	store   *logstore.Store
	roster  *roster.Roster
	tracker *health.Tracker
	trail   *audit.Trail // nil if no audit trail was configured

	mu   sync.Mutex
	subs map[chan gossip.Event]bool
	seen map[string]bool // dedup key "origin:seq:kind" across all tail subscribers
}

// New creates a Handler. trail may be nil (audit disabled).
func New(self logstore.PeerID, store *logstore.Store, r *roster.Roster, tracker *health.Tracker, trail *audit.Trail) *Handler {
	return &Handler{
		self:    self,
		started: time.Now(),
		store:   store,
		roster:  r,
		tracker: tracker,
		trail:   trail,
		subs:    make(map[chan gossip.Event]bool),
		seen:    make(map[string]bool),
	}
}

// Emit implements gossip.EventSink, fanning events out to every
// connected WebSocket tail subscriber. Events that name a message are
// deduped on (origin, seq, kind) so a client doesn't see the same
// rumor event twice; STATUS events carry no origin and are never deduped.
func (h *Handler) Emit(e gossip.Event) {
	key := fmt.Sprintf("%s:%d:%s", e.Origin, e.Seq, e.Kind)
	h.mu.Lock()
	if e.Origin != "" {
		if h.seen[key] {
			h.mu.Unlock()
			return
		}
		h.seen[key] = true
	}
	subs := make([]chan gossip.Event, 0, len(h.subs))
	for ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default: // slow subscriber: drop rather than block the gossip engine
		}
	}
}

func (h *Handler) subscribe() chan gossip.Event {
	ch := make(chan gossip.Event, 32)
	h.mu.Lock()
	h.subs[ch] = true
	h.mu.Unlock()
	return ch
}

func (h *Handler) unsubscribe(ch chan gossip.Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
	close(ch)
}

// Router builds the gin engine with every admin endpoint wired in.
func (h *Handler) Router() *gin.Engine {
	router := gin.Default()

	v1 := router.Group("/")
	{
		v1.GET("/status", h.getStatus)
		v1.GET("/log", h.getLog)
		v1.GET("/vv", h.getVV)
		v1.GET("/peers", h.getPeers)
		v1.GET("/merkle", h.getMerkle)
		v1.GET("/merkle/compare/:peer", h.compareMerkle)
		v1.GET("/audit", h.getAudit)
		v1.GET("/events", h.getEvents)
	}

	return router
}

func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"self":    h.self,
		"uptime":  time.Since(h.started).String(),
		"roster":  len(h.roster.All()),
		"vv":      h.store.SnapshotDigest(),
		"request": uuid.New().String(),
	})
}

func (h *Handler) getLog(c *gin.Context) {
	vv := h.store.SnapshotDigest()
	origins := make([]string, 0, len(vv))
	for o := range vv {
		origins = append(origins, string(o))
	}
	sort.Strings(origins)

	out := make(map[string][]string, len(origins))
	for _, o := range origins {
		msgs := h.store.MessagesFrom(logstore.PeerID(o), 0)
		texts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			texts = append(texts, string(m.Text))
		}
		out[o] = texts
	}
	c.JSON(http.StatusOK, gin.H{"log": out})
}

func (h *Handler) getVV(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"vv": h.store.SnapshotDigest()})
}

func (h *Handler) getPeers(c *gin.Context) {
	members := h.roster.All()
	out := make([]gin.H, 0, len(members))
	for _, m := range members {
		alive := true
		if h.tracker != nil {
			alive = h.tracker.IsAlive(m.ID)
		}
		out = append(out, gin.H{"id": m.ID, "address": m.Address, "alive": alive})
	}
	c.JSON(http.StatusOK, gin.H{"peers": out})
}

func (h *Handler) getMerkle(c *gin.Context) {
	c.JSON(http.StatusOK, merkle.Build(h.store))
}

// compareMerkle fetches a peer's own /merkle endpoint at its admin
// port (AdminPortOffset above its peer wire port) and diffs it against
// the local tree. Admin-surface-only; never consulted by gossip.
func (h *Handler) compareMerkle(c *gin.Context) {
	peerID := logstore.PeerID(c.Param("peer"))
	member, ok := h.roster.Lookup(peerID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown peer"})
		return
	}

	url := fmt.Sprintf("http://%s/merkle", adminAddr(member.Address))
	resp, err := http.Get(url)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	var peerTree merkle.Tree
	if err := json.NewDecoder(resp.Body).Decode(&peerTree); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	cmp := merkle.Compare(merkle.Build(h.store), &peerTree)
	c.JSON(http.StatusOK, cmp)
}

func (h *Handler) getAudit(c *gin.Context) {
	if h.trail == nil {
		c.JSON(http.StatusOK, gin.H{"entries": []audit.Entry{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": h.trail.All()})
}

func (h *Handler) getEvents(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	for e := range ch {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}
}

// adminAddr derives "host:adminPort" from a peer wire address
// "host:port" by adding AdminPortOffset to the port. Best-effort: on a
// malformed address it returns the input unchanged.
func adminAddr(wireAddr string) string {
	host, port, ok := splitHostPort(wireAddr)
	if !ok {
		return wireAddr
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return wireAddr
	}
	return fmt.Sprintf("%s:%d", host, p+AdminPortOffset)
}

func splitHostPort(addr string) (host, port string, ok bool) {
	idx := -1
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", "", false
	}
	return addr[:idx], addr[idx+1:], true
}
