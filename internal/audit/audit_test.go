package audit_test

import (
	"context"
	"testing"

	"github.com/depinlabs/sensorledger/internal/audit"
)

var ctx = context.Background()

func TestNew_genesisEntry(t *testing.T) {
	l := audit.New()

	n, err := l.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 genesis entry, got %d", n)
	}

	entry, err := l.Get(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Action != "genesis" {
		t.Errorf("expected action 'genesis', got %q", entry.Action)
	}
	if entry.Hash != audit.GenesisHash {
		t.Errorf("genesis hash: got %q, want GenesisHash", entry.Hash)
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	l := audit.New()

	e1, err := l.Append(ctx, "dev-1", "register", "aabb", map[string]string{"sensor_id": "x"})
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, "dev-1", "proof", "aabb", nil)
	if err != nil {
		t.Fatal(err)
	}

	if e2.PrevHash != e1.Hash {
		t.Errorf("chain broken: e2.PrevHash=%q, want e1.Hash=%q", e2.PrevHash, e1.Hash)
	}

	n, err := l.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 { // genesis + 2
		t.Errorf("expected 3 entries, got %d", n)
	}
}

func TestVerify_valid(t *testing.T) {
	l := audit.New()
	_, _ = l.Append(ctx, "dev-1", "register", "aabb", nil)
	_, _ = l.Append(ctx, "dev-1", "deactivate", "aabb", nil)

	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() failed on valid chain: %v", err)
	}
}

func TestVerify_genesisOnly(t *testing.T) {
	l := audit.New()
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() on genesis-only chain should pass: %v", err)
	}
}

func TestHead_returnsLastHash(t *testing.T) {
	l := audit.New()

	head, err := l.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head != audit.GenesisHash {
		t.Errorf("Head() on genesis-only: got %q, want GenesisHash", head)
	}

	e, _ := l.Append(ctx, "dev-1", "register", "aabb", nil)
	head, err = l.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head != e.Hash {
		t.Errorf("Head(): got %q, want %q", head, e.Hash)
	}
}

func TestGet_outOfRange(t *testing.T) {
	l := audit.New()
	if _, err := l.Get(ctx, 5); err == nil {
		t.Error("Get past the tail should fail")
	}
	if _, err := l.Get(ctx, -1); err == nil {
		t.Error("Get with negative index should fail")
	}
}
