// Package audit is a write-only append trail backed by LevelDB. It is
// never read at startup and never feeds admit, the version vector, or
// any recovery path — the gossip engine's correctness never depends
// on this package, which is why "no persistence across crashes" still
// holds even though it writes to disk. Its only reader is the admin
// surface's postmortem endpoint.
package audit

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"

	"gossipchat/internal/logstore"
)

// Entry is one audit row.
type Entry struct {
	CorrelationID string    `json:"correlation_id"`
	Origin        string    `json:"origin"`
	Seq           uint32    `json:"seq"`
	Text          string    `json:"text"`
	Kind          string    `json:"kind"` // "rumor" or "mint"
	At            time.Time `json:"at"`
}

// Trail wraps a LevelDB handle. The zero value is not usable;
// construct with Open.
type Trail struct {
	db *leveldb.DB
}

// Open opens (or creates) the LevelDB database under dataDir/self.
// Any existing contents are ignored by this process — Open never
// reads them back into memory, only appends.
func Open(dataDir string, self logstore.PeerID) (*Trail, error) {
	path := filepath.Join(dataDir, string(self))
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open audit trail at %s: %w", path, err)
	}
	fmt.Printf("🗂️  audit trail opened at %s\n", path)
	return &Trail{db: db}, nil
}

// RecordAccepted appends a row for a RUMOR this process admitted
// (whether received from a peer or locally minted).
func (t *Trail) RecordAccepted(kind string, msg logstore.Message) {
	entry := Entry{
		CorrelationID: uuid.New().String(),
		Origin:        string(msg.Origin),
		Seq:           msg.Seq,
		Text:          string(msg.Text),
		Kind:          kind,
		At:            time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Printf("🗂️  audit marshal failed: %v\n", err)
		return
	}
	key := []byte(fmt.Sprintf("%s|%d|%s", msg.Origin, msg.Seq, entry.CorrelationID))
	if err := t.db.Put(key, data, nil); err != nil {
		fmt.Printf("🗂️  audit write failed: %v\n", err)
	}
}

// All returns every audit row, for the admin surface's GET /audit
// endpoint only. Never called on the gossip hot path.
func (t *Trail) All() []Entry {
	var out []Entry
	iter := t.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Close releases the underlying database handle.
func (t *Trail) Close() error {
	return t.db.Close()
}
