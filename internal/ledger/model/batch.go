package model

import (
	"github.com/google/uuid"
)

// BatchProofRecord commits a Merkle root over a time-bounded set of proofs
// built off-system. Only the root and metadata are retained; individual
// leaves must be supplied again for inclusion verification. Immutable once
// created.
type BatchProofRecord struct {
	ID       uuid.UUID `json:"id"        db:"id"`
	SensorID uuid.UUID `json:"sensor_id" db:"sensor_id"`

	MerkleRoot     []byte `json:"merkle_root"     db:"merkle_root"` // 32 bytes
	ProofCount     uint32 `json:"proof_count"     db:"proof_count"` // claimed leaf count
	StartTimestamp int64  `json:"start_timestamp" db:"start_timestamp"`
	EndTimestamp   int64  `json:"end_timestamp"   db:"end_timestamp"`

	SubmittedAt int64  `json:"submitted_at" db:"submitted_at"` // server-observed
	Submitter   string `json:"submitter"    db:"submitter"`
}

// SubmitBatchRequest is the payload for committing a proof batch.
// MerkleRoot is a 64-character lowercase hex string.
type SubmitBatchRequest struct {
	MerkleRoot     string `json:"merkle_root" binding:"required"`
	ProofCount     uint32 `json:"proof_count"`
	StartTimestamp int64  `json:"start_timestamp"`
	EndTimestamp   int64  `json:"end_timestamp"`
}

// VerifyProofRequest is the payload for verifying one leaf against a stored
// batch root. ProofHash and each MerklePath element are 64-character hex.
type VerifyProofRequest struct {
	ProofHash  string   `json:"proof_hash" binding:"required"`
	MerklePath []string `json:"merkle_path"`
	Index      uint32   `json:"index"`
}
