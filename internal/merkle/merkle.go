// Package merkle is an optional, admin-surface-only diagnostic: it
// builds a Merkle tree over a node's per-origin logs and compares two
// such trees to report which origins differ. STATUS/vv exchange is
// the mandated convergence mechanism; this package never participates
// in it and never alters log, vv, or any gossip decision — it only
// gives an operator or test harness a stronger check than "the
// version vectors match."
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"gossipchat/internal/logstore"
)

// Node is one tree node, leaf or internal.
type Node struct {
	Hash   string `json:"hash"`
	IsLeaf bool   `json:"is_leaf"`
	Origin string `json:"origin,omitempty"`
	Left   *Node  `json:"left,omitempty"`
	Right  *Node  `json:"right,omitempty"`
}

// Tree is the complete tree for one node's log store.
type Tree struct {
	Root       *Node             `json:"root"`
	OriginHash map[string]string `json:"origin_hash"` // leaf hash per origin, for comparison
}

// Build constructs a tree from a snapshot: one leaf per origin, hashed
// over the origin id and that origin's full ordered message texts.
func Build(store *logstore.Store) *Tree {
	vv := store.SnapshotDigest()
	origins := make([]string, 0, len(vv))
	for o := range vv {
		origins = append(origins, string(o))
	}
	sort.Strings(origins)

	leaves := make([]*Node, 0, len(origins))
	originHash := make(map[string]string, len(origins))
	for _, o := range origins {
		msgs := store.MessagesFrom(logstore.PeerID(o), 0)
		h := hashOrigin(o, msgs)
		leaves = append(leaves, &Node{Hash: h, IsLeaf: true, Origin: o})
		originHash[o] = h
	}

	return &Tree{Root: buildFromLeaves(leaves), OriginHash: originHash}
}

func hashOrigin(origin string, msgs []logstore.Message) string {
	h := sha256.New()
	h.Write([]byte(origin))
	for _, m := range msgs {
		h.Write([]byte{':'})
		h.Write(m.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func buildFromLeaves(leaves []*Node) *Node {
	if len(leaves) == 0 {
		return &Node{Hash: hex.EncodeToString(sha256.New().Sum(nil)), IsLeaf: false}
	}
	level := leaves
	for len(level) > 1 {
		next := make([]*Node, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			h := sha256.Sum256([]byte(left.Hash + right.Hash))
			next = append(next, &Node{Hash: hex.EncodeToString(h[:]), Left: left, Right: right})
		}
		level = next
	}
	return level[0]
}

// Comparison is the result of comparing two nodes' trees.
type Comparison struct {
	Consistent     bool     `json:"consistent"`
	MismatchedKeys []string `json:"mismatched_keys"`
	MissingKeys    []string `json:"missing_keys"` // present locally, absent on peer
	ExtraKeys      []string `json:"extra_keys"`   // present on peer, absent locally
}

// Compare reports, per origin, whether local and peer logs agree.
func Compare(local, peer *Tree) Comparison {
	var mismatched, missing, extra []string

	for origin, h := range local.OriginHash {
		ph, ok := peer.OriginHash[origin]
		switch {
		case !ok:
			missing = append(missing, origin)
		case ph != h:
			mismatched = append(mismatched, origin)
		}
	}
	for origin := range peer.OriginHash {
		if _, ok := local.OriginHash[origin]; !ok {
			extra = append(extra, origin)
		}
	}

	sort.Strings(mismatched)
	sort.Strings(missing)
	sort.Strings(extra)

	return Comparison{
		Consistent:     len(mismatched) == 0 && len(missing) == 0 && len(extra) == 0,
		MismatchedKeys: mismatched,
		MissingKeys:    missing,
		ExtraKeys:      extra,
	}
}
