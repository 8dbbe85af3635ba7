package model

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Field size limits. The ledger allocates a fixed budget per record, so
// variable-length fields are bounded at the boundary rather than allowed to
// grow without limit.
const (
	MaxDeviceIDLen   = 64
	MaxSensorTypeLen = 64
	MaxDataLen       = 256
)

// messageDelimiter separates fields in the canonical signed message.
// No string field may contain it, or independent verifiers could not
// unambiguously re-derive the signed payload.
const messageDelimiter = "|"

// SensorRegistration is the per-device record tracking activation state,
// authority, and aggregate proof counters. Created once per device and never
// deleted; it forms a permanent audit trail.
type SensorRegistration struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	Authority string    `json:"authority"  db:"authority"` // hex Ed25519 public key, immutable
	DeviceID  string    `json:"device_id"  db:"device_id"` // immutable

	// ProofCount and TotalProofsVerified track the same quantity: the
	// cumulative number of proofs attributed to the device, individual and
	// batched. Both are retained because clients read each name.
	ProofCount          uint64 `json:"proof_count"           db:"proof_count"`
	TotalProofsVerified uint64 `json:"total_proofs_verified" db:"total_proofs_verified"`

	LastProofTimestamp int64 `json:"last_proof_timestamp" db:"last_proof_timestamp"`
	IsActive           bool  `json:"is_active"            db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AuthorityKey decodes the registration's authority into an Ed25519 public key.
func (s *SensorRegistration) AuthorityKey() (ed25519.PublicKey, error) {
	return DecodeIdentity(s.Authority)
}

// SensorStats is the read-only counter view of a registration.
type SensorStats struct {
	TotalProofs        uint64 `json:"total_proofs"`
	LastProofTimestamp int64  `json:"last_proof_timestamp"`
	IsActive           bool   `json:"is_active"`
}

// Stats returns the registration's counter snapshot.
func (s *SensorRegistration) Stats() SensorStats {
	return SensorStats{
		TotalProofs:        s.TotalProofsVerified,
		LastProofTimestamp: s.LastProofTimestamp,
		IsActive:           s.IsActive,
	}
}

// RegisterRequest is the payload for creating a new sensor registration.
type RegisterRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// DecodeIdentity parses a lowercase hex Ed25519 public key.
func DecodeIdentity(id string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(id)
	if err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("identity must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// EncodeIdentity renders an Ed25519 public key as the canonical lowercase
// hex identity string.
func EncodeIdentity(pub ed25519.PublicKey) string {
	return hex.EncodeToString(pub)
}

// ValidateDeviceID checks the device identifier against the field budget and
// the delimiter constraint of the signed-message encoding.
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return &ErrValidation{Msg: "device_id is required"}
	}
	if len(deviceID) > MaxDeviceIDLen {
		return &ErrValidation{Msg: fmt.Sprintf("device_id exceeds %d bytes", MaxDeviceIDLen)}
	}
	if strings.Contains(deviceID, messageDelimiter) {
		return &ErrValidation{Msg: "device_id must not contain '|'"}
	}
	return nil
}

// ValidateSensorType checks the sensor type against the field budget and the
// delimiter constraint.
func ValidateSensorType(sensorType string) error {
	if sensorType == "" {
		return &ErrValidation{Msg: "sensor_type is required"}
	}
	if len(sensorType) > MaxSensorTypeLen {
		return &ErrValidation{Msg: fmt.Sprintf("sensor_type exceeds %d bytes", MaxSensorTypeLen)}
	}
	if strings.Contains(sensorType, messageDelimiter) {
		return &ErrValidation{Msg: "sensor_type must not contain '|'"}
	}
	return nil
}
