// Package sensorproof implements the cryptographic primitives of the
// attestation ledger: the canonical signed-message encoding, Ed25519
// signature verification, and Merkle inclusion proof verification against
// a committed root.
//
// All three are deterministic and side-effect free. The Merkle node hash is
// Keccak-256, matching the convention used by the off-system batch builders
// that construct the trees.
package sensorproof

import "strconv"

// EncodeMessage builds the canonical byte string a device signs for a single
// proof submission:
//
//	sensor_type || '|' || decimal(timestamp) || '|' || data || '|' || device_id
//
// The encoding must be byte-exact reproducible by any independent verifier;
// fields must not contain the '|' delimiter themselves (enforced at the
// service boundary).
func EncodeMessage(sensorType string, timestamp int64, data []byte, deviceID string) []byte {
	ts := strconv.FormatInt(timestamp, 10)
	msg := make([]byte, 0, len(sensorType)+len(ts)+len(data)+len(deviceID)+3)
	msg = append(msg, sensorType...)
	msg = append(msg, '|')
	msg = append(msg, ts...)
	msg = append(msg, '|')
	msg = append(msg, data...)
	msg = append(msg, '|')
	msg = append(msg, deviceID...)
	return msg
}
