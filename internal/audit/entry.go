// Package audit implements the audit channel referenced throughout spec.md
// §7 and §4.6 ("logged to the audit channel", the Compliance Gate's
// forget() binding invalidation): a Merkle-chained, append-only log.
//
// It generalises the teacher repo's internal/trustledger package — originally
// specialised to agent lifecycle events — into a chain that records any
// component's mutating operation (register_agent, release_escrow,
// distribute_revenue, register_cross_chain_service, compliance decisions)
// keyed by an opaque subject identifier instead of an agent:// URI.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cardanoagents/enhanced-client/internal/hashing"
)

// GenesisHash is the well-known trust anchor all chains begin from.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Entry is a single audit record.
type Entry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Subject   string    `json:"subject"` // e.g. agent id, escrow id, recipient address
	Action    string    `json:"action"`  // e.g. register_agent, create_escrow, release_escrow, refund_expired, distribute_revenue, claim_rewards, compliance.forget, genesis
	Actor     string    `json:"actor"`
	DataHash  string    `json:"data_hash"` // canonical hash (C1) of the associated payload
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// hashEntry computes a deterministic SHA-256 over an entry's fields. Must
// never be called on the genesis entry (index 0), whose hash is the constant.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.Subject, e.Action, e.Actor, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// payloadHash canonicalises payload via C1 (internal/hashing) and returns its
// hash, or falls back to hashing its string form when the payload does not
// decompose into primitives the canonical hasher accepts.
func payloadHash(payload any) string {
	if h, err := hashing.Hash(payload); err == nil {
		return h
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v", payload)))
	return hex.EncodeToString(sum[:])
}
