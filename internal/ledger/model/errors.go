package model

import "errors"

// The ledger's failure modes form a closed enumeration; each sentinel is
// tied to exactly one precondition and is terminal for its operation. An
// operation either fully succeeds or fails with no state change.
var (
	// ErrAccountInactive: the registration's is_active gate is closed.
	ErrAccountInactive = errors.New("sensor registration is not active")
	// ErrInvalidTimestamp: a claimed proof timestamp lies in the future.
	ErrInvalidTimestamp = errors.New("proof timestamp is in the future")
	// ErrInvalidSignature: Ed25519 verification of the canonical message failed.
	ErrInvalidSignature = errors.New("invalid proof signature")
	// ErrInvalidProofCount: a batch claimed zero leaves.
	ErrInvalidProofCount = errors.New("batch proof count must be positive")
	// ErrInvalidTimestampRange: a batch's start timestamp exceeds its end.
	ErrInvalidTimestampRange = errors.New("batch start timestamp exceeds end timestamp")
	// ErrInvalidMerkleProof: a recomputed root does not match the stored commitment.
	ErrInvalidMerkleProof = errors.New("merkle proof does not match committed root")
	// ErrUnauthorized: the caller is not the registration's authority.
	ErrUnauthorized = errors.New("caller is not the registration authority")
)

// ErrValidation is returned when a caller-supplied field violates a bound or
// encoding constraint before any precondition is evaluated.
type ErrValidation struct{ Msg string }

func (e *ErrValidation) Error() string { return e.Msg }
