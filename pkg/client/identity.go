package client

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// GenerateKey creates a fresh Ed25519 device key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return priv, nil
}

// SaveKeyFile writes priv to path as a single line of hex, mode 0600.
func SaveKeyFile(path string, priv ed25519.PrivateKey) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("bad private key length %d", len(priv))
	}
	return os.WriteFile(path, []byte(hex.EncodeToString(priv)+"\n"), 0o600)
}

// LoadKeyFile reads a key written by SaveKeyFile.
func LoadKeyFile(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("decode key file %q: %w", path, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("key file %q holds %d bytes, want %d", path, len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}

// WithKey configures the client's signing identity.
func WithKey(priv ed25519.PrivateKey) Option {
	return func(c *Client) error {
		if len(priv) != ed25519.PrivateKeySize {
			return fmt.Errorf("bad private key length %d", len(priv))
		}
		c.key = priv
		return nil
	}
}

// WithKeyFile loads the signing identity from a key file.
func WithKeyFile(path string) Option {
	return func(c *Client) error {
		priv, err := LoadKeyFile(path)
		if err != nil {
			return err
		}
		c.key = priv
		return nil
	}
}

// Identity returns the client's hex-encoded public key, or "" when the
// client has no key.
func (c *Client) Identity() string {
	if c.key == nil {
		return ""
	}
	pub := c.key.Public().(ed25519.PublicKey)
	return hex.EncodeToString(pub)
}
