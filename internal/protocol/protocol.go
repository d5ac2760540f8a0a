// Package protocol implements the wire grammar for both TCP dialects
// this process speaks: the peer RUMOR/STATUS protocol and the proxy
// command protocol. Parsing never panics and never returns an error —
// malformed input becomes a first-class Malformed frame, per the
// tagged-variant redesign (no exception-for-control-flow).
package protocol

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"gossipchat/internal/logstore"
)

// MaxFrameSize is the largest frame this process will read or write.
// A frame is whatever bytes a connection carries before it is closed;
// there is no length prefix.
const MaxFrameSize = 1024

// Kind tags which variant a Parsed frame holds.
type Kind int

const (
	KindRumor Kind = iota
	KindStatus
	KindGetChatLog
	KindCrash
	KindClientMsg
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindRumor:
		return "RUMOR"
	case KindStatus:
		return "STATUS"
	case KindGetChatLog:
		return "GET_CHATLOG"
	case KindCrash:
		return "CRASH"
	case KindClientMsg:
		return "CLIENT_MSG"
	default:
		return "MALFORMED"
	}
}

// RumorFrame carries a single propagated message.
type RumorFrame struct {
	Origin logstore.PeerID
	Seq    uint32
	Text   []byte
}

// StatusFrame carries a peer's version-vector digest.
type StatusFrame struct {
	Digest map[logstore.PeerID]uint32
}

// ClientMsgFrame is a proxy-originated local submission request.
type ClientMsgFrame struct {
	ID   string
	Text []byte
}

// Parsed is the tagged-variant result of Parse: exactly one of the
// payload fields is meaningful, selected by Kind.
type Parsed struct {
	Kind      Kind
	Rumor     RumorFrame
	Status    StatusFrame
	ClientMsg ClientMsgFrame
	Raw       []byte
}

// Parse dispatches raw frame bytes to one of RUMOR, STATUS, the fixed
// proxy commands, or Malformed. It never returns an error; an
// unrecognized or structurally broken frame is reported as
// KindMalformed so the caller can log and close the session.
func Parse(raw []byte) Parsed {
	if len(raw) > MaxFrameSize || bytes.ContainsRune(raw, '\n') {
		return Parsed{Kind: KindMalformed, Raw: raw}
	}

	s := string(raw)

	switch {
	case s == "get chatLog":
		return Parsed{Kind: KindGetChatLog, Raw: raw}
	case s == "crash":
		return Parsed{Kind: KindCrash, Raw: raw}
	case hasPrefix(s, "RUMOR "):
		return parseRumor(s, raw)
	case s == "STATUS" || hasPrefix(s, "STATUS "):
		return parseStatus(s, raw)
	case hasPrefix(s, "msg "):
		return parseClientMsg(s, raw)
	default:
		return Parsed{Kind: KindMalformed, Raw: raw}
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func parseRumor(s string, raw []byte) Parsed {
	// RUMOR <origin> <seq> <text> — text may contain spaces, so split
	// into at most 4 fields.
	fields := splitN(s, 4)
	if len(fields) != 4 {
		return Parsed{Kind: KindMalformed, Raw: raw}
	}
	origin := fields[1]
	if origin == "" {
		return Parsed{Kind: KindMalformed, Raw: raw}
	}
	seq, err := strconv.ParseUint(fields[2], 10, 32)
	if err != nil {
		return Parsed{Kind: KindMalformed, Raw: raw}
	}
	return Parsed{
		Kind: KindRumor,
		Rumor: RumorFrame{
			Origin: logstore.PeerID(origin),
			Seq:    uint32(seq),
			Text:   []byte(fields[3]),
		},
		Raw: raw,
	}
}

func parseStatus(s string, raw []byte) Parsed {
	digest := make(map[logstore.PeerID]uint32)
	rest := s[len("STATUS"):]
	for _, tok := range fieldsSplit(rest) {
		origin, seqStr, ok := cutLast(tok, ':')
		if !ok || origin == "" {
			return Parsed{Kind: KindMalformed, Raw: raw}
		}
		seq, err := strconv.ParseUint(seqStr, 10, 32)
		if err != nil {
			return Parsed{Kind: KindMalformed, Raw: raw}
		}
		digest[logstore.PeerID(origin)] = uint32(seq)
	}
	return Parsed{Kind: KindStatus, Status: StatusFrame{Digest: digest}, Raw: raw}
}

func parseClientMsg(s string, raw []byte) Parsed {
	// msg <id> <text> — text may contain spaces.
	fields := splitN(s, 3)
	if len(fields) != 3 {
		return Parsed{Kind: KindMalformed, Raw: raw}
	}
	return Parsed{
		Kind:      KindClientMsg,
		ClientMsg: ClientMsgFrame{ID: fields[1], Text: []byte(fields[2])},
		Raw:       raw,
	}
}

// splitN splits s on single spaces into exactly n fields, the last one
// absorbing any remaining spaces (so free text is not itself split).
func splitN(s string, n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n-1; i++ {
		idx := indexByte(s, ' ')
		if idx < 0 {
			return out
		}
		out = append(out, s[:idx])
		s = s[idx+1:]
	}
	out = append(out, s)
	return out
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// fieldsSplit splits on runs of leading/trailing spaces without
// collapsing a leading single space into an empty first field.
func fieldsSplit(s string) []string {
	var out []string
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

// cutLast splits tok on the last ':' so origins are free to contain
// colons themselves (PeerId is an opaque token).
func cutLast(tok string, sep byte) (before, after string, ok bool) {
	idx := -1
	for i := 0; i < len(tok); i++ {
		if tok[i] == sep {
			idx = i
		}
	}
	if idx < 0 {
		return "", "", false
	}
	return tok[:idx], tok[idx+1:], true
}

// EncodeRumor renders a RUMOR frame. text must not contain '\n'.
func EncodeRumor(origin logstore.PeerID, seq uint32, text []byte) []byte {
	return []byte(fmt.Sprintf("RUMOR %s %d %s", origin, seq, text))
}

// EncodeStatus renders a STATUS frame from a digest, with entries
// sorted by origin for deterministic output (not required by the
// grammar, but makes round-trip tests and logs reproducible).
func EncodeStatus(digest map[logstore.PeerID]uint32) []byte {
	origins := make([]string, 0, len(digest))
	for p := range digest {
		origins = append(origins, string(p))
	}
	sort.Strings(origins)

	buf := bytes.NewBufferString("STATUS")
	for _, p := range origins {
		fmt.Fprintf(buf, " %s:%d", p, digest[logstore.PeerID(p)])
	}
	return buf.Bytes()
}

// EncodeChatLogResponse renders the proxy's `get chatLog` response.
// Order of texts is whatever the caller passes; the contract does not
// fix one.
func EncodeChatLogResponse(texts [][]byte) []byte {
	return append([]byte(fmt.Sprintf("chatLog %s", bytes.Join(texts, []byte(",")))), '\n')
}

// EncodeClientMsg renders a proxy `msg <id> <text>` request, for any
// harness that speaks the proxy protocol programmatically.
func EncodeClientMsg(id string, text []byte) []byte {
	return []byte(fmt.Sprintf("msg %s %s", id, text))
}
