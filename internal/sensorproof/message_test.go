package sensorproof_test

import (
	"bytes"
	"testing"

	"github.com/depinlabs/sensorledger/internal/sensorproof"
)

func TestEncodeMessage_layout(t *testing.T) {
	got := sensorproof.EncodeMessage("temperature", 1700000000, []byte{0x01, 0x02}, "dev-42")
	want := []byte("temperature|1700000000|\x01\x02|dev-42")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeMessage: got %q, want %q", got, want)
	}
}

func TestEncodeMessage_negativeTimestamp(t *testing.T) {
	got := sensorproof.EncodeMessage("t", -5, nil, "d")
	want := []byte("t|-5||d")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeMessage: got %q, want %q", got, want)
	}
}

func TestEncodeMessage_deterministic(t *testing.T) {
	a := sensorproof.EncodeMessage("humidity", 42, []byte("payload"), "dev-1")
	b := sensorproof.EncodeMessage("humidity", 42, []byte("payload"), "dev-1")
	if !bytes.Equal(a, b) {
		t.Error("identical inputs must encode identically")
	}

	c := sensorproof.EncodeMessage("humidity", 43, []byte("payload"), "dev-1")
	if bytes.Equal(a, c) {
		t.Error("different timestamps must encode differently")
	}
}
