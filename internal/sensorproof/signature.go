package sensorproof

import (
	"crypto/ed25519"
	"errors"
)

// SignatureSize is the length of an Ed25519 signature in bytes.
const SignatureSize = ed25519.SignatureSize

// ErrBadSignature is returned when a signature does not verify against the
// given public key and message. There is no partial acceptance: a signature
// either verifies over exactly the message bytes or it fails.
var ErrBadSignature = errors.New("ed25519 signature verification failed")

// VerifySignature checks that sig is a valid Ed25519 signature by pub over
// exactly msg. sig must be 64 bytes and pub 32 bytes.
func VerifySignature(sig []byte, pub ed25519.PublicKey, msg []byte) error {
	if len(sig) != SignatureSize {
		return ErrBadSignature
	}
	if len(pub) != ed25519.PublicKeySize {
		return ErrBadSignature
	}
	if !ed25519.Verify(pub, msg, sig) {
		return ErrBadSignature
	}
	return nil
}
