package model

import (
	"github.com/google/uuid"
)

// ProofRecord is one individually submitted, signature-verified proof.
// Immutable once created; exactly one record exists per accepted submission.
type ProofRecord struct {
	ID uuid.UUID `json:"id" db:"id"`

	// SensorID is a lookup key referencing the owning SensorRegistration.
	// Registrations never reference records back.
	SensorID uuid.UUID `json:"sensor_id" db:"sensor_id"`

	SensorType string `json:"sensor_type" db:"sensor_type"`
	Timestamp  int64  `json:"timestamp"   db:"timestamp"` // claimed by the device
	Data       []byte `json:"data"        db:"data"`
	Signature  []byte `json:"signature"   db:"signature"` // 64-byte Ed25519

	Verifier   string `json:"verifier"    db:"verifier"`    // identity whose key verified the signature
	VerifiedAt int64  `json:"verified_at" db:"verified_at"` // server-observed acceptance time
}

// SubmitProofRequest is the payload for submitting a single proof.
type SubmitProofRequest struct {
	SensorType string `json:"sensor_type" binding:"required"`
	Timestamp  int64  `json:"timestamp"`
	Data       []byte `json:"data"`
	Signature  []byte `json:"signature" binding:"required"`
}
