package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenesisHash is the well-known hash of the genesis entry (64 hex zeros).
// It anchors the chain; every later entry hash chains from it.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// SystemActor is recorded as the actor of entries the ledger writes on its
// own behalf, such as the genesis entry.
const SystemActor = "ledger-system"

// Entry is one record in the hash-chained audit trail of sensor lifecycle
// events. Actions: genesis, register, activate, deactivate, proof, batch.
type Entry struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor"`     // caller identity or SystemActor
	DataHash  string    `json:"data_hash"` // SHA-256 of the associated payload
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// hashEntry computes the deterministic SHA-256 digest of an entry's fields.
// Never called for the genesis entry (index 0), whose hash is the constant.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%s",
		e.Index, e.Timestamp.Format(time.RFC3339Nano),
		e.DeviceID, e.Action, e.Actor, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// sha256Sum returns the hex-encoded SHA-256 digest of data.
func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
