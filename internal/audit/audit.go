// Package audit implements a hash-chained trail of sensor lifecycle events.
//
// Registrations are never deleted, so the trail is the permanent record of
// what happened to each device: registration, activation toggles, proof and
// batch submissions. The chain starts at a well-known genesis entry whose
// hash equals GenesisHash; every later entry records the SHA-256 of its
// predecessor, making tampering detectable via Verify.
//
// Two implementations of Ledger are provided:
//   - MemoryLedger: in-process, for testing and development.
//   - PostgresLedger: durable, for production use.
package audit

import "context"

// Ledger is the interface for the append-only audit chain.
type Ledger interface {
	// Append adds a new entry chained to the previous one. payload is
	// JSON-marshalled and its SHA-256 stored as DataHash.
	Append(ctx context.Context, deviceID, action, actor string, payload any) (*Entry, error)

	// Get returns the entry at the given zero-based index.
	Get(ctx context.Context, index int) (*Entry, error)

	// Count returns the total number of entries, genesis included.
	Count(ctx context.Context) (int, error)

	// Verify walks the whole chain and checks hash consistency.
	Verify(ctx context.Context) error

	// Head returns the hash of the most recent entry.
	Head(ctx context.Context) (string, error)
}
