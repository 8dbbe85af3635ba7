package sensorproof_test

import (
	"testing"

	"github.com/depinlabs/sensorledger/internal/sensorproof"
)

// buildTree constructs a Merkle tree over the given leaves with the same
// convention ComputeRoot expects (left = even index, Keccak-256 pairs) and
// returns the root plus the authentication path for each leaf.
func buildTree(t *testing.T, leaves []sensorproof.Hash) (sensorproof.Hash, [][]sensorproof.Hash) {
	t.Helper()
	if len(leaves)&(len(leaves)-1) != 0 {
		t.Fatalf("buildTree requires a power-of-two leaf count, got %d", len(leaves))
	}

	paths := make([][]sensorproof.Hash, len(leaves))
	level := append([]sensorproof.Hash(nil), leaves...)
	pos := make([]int, len(leaves))
	for i := range pos {
		pos[i] = i
	}

	for len(level) > 1 {
		next := make([]sensorproof.Hash, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = pairHash(level[i], level[i+1])
		}
		for leaf := range paths {
			sibling := pos[leaf] ^ 1
			paths[leaf] = append(paths[leaf], level[sibling])
			pos[leaf] /= 2
		}
		level = next
	}
	return level[0], paths
}

// pairHash mirrors the node combination in ComputeRoot by computing the root
// of a single-level proof with the current node on the left.
func pairHash(left, right sensorproof.Hash) sensorproof.Hash {
	return sensorproof.ComputeRoot(left, []sensorproof.Hash{right}, 0)
}

func TestComputeRoot_singleLevel(t *testing.T) {
	leaf := sensorproof.HashLeaf([]byte("a"))
	sibling := sensorproof.HashLeaf([]byte("b"))

	// Index 0: leaf is the left child.
	rootLeft := sensorproof.ComputeRoot(leaf, []sensorproof.Hash{sibling}, 0)
	// Index 1: leaf is the right child.
	rootRight := sensorproof.ComputeRoot(leaf, []sensorproof.Hash{sibling}, 1)

	if rootLeft == rootRight {
		t.Fatal("left and right placement must produce different roots")
	}

	if !sensorproof.VerifyInclusion(rootLeft, leaf, []sensorproof.Hash{sibling}, 0) {
		t.Error("index 0 proof should verify against its own root")
	}
	if !sensorproof.VerifyInclusion(rootRight, leaf, []sensorproof.Hash{sibling}, 1) {
		t.Error("index 1 proof should verify against its own root")
	}
	if sensorproof.VerifyInclusion(rootLeft, leaf, []sensorproof.Hash{sibling}, 1) {
		t.Error("index 1 proof must not verify against the index 0 root")
	}
	if sensorproof.VerifyInclusion(rootRight, leaf, []sensorproof.Hash{sibling}, 0) {
		t.Error("index 0 proof must not verify against the index 1 root")
	}
}

func TestComputeRoot_roundTrip(t *testing.T) {
	leaves := make([]sensorproof.Hash, 8)
	for i := range leaves {
		leaves[i] = sensorproof.HashLeaf([]byte{byte(i), 0xAB})
	}
	root, paths := buildTree(t, leaves)

	for i, leaf := range leaves {
		if !sensorproof.VerifyInclusion(root, leaf, paths[i], uint32(i)) {
			t.Errorf("leaf %d: proof did not verify against built root", i)
		}
	}
}

func TestComputeRoot_wrongIndexFails(t *testing.T) {
	leaves := make([]sensorproof.Hash, 4)
	for i := range leaves {
		leaves[i] = sensorproof.HashLeaf([]byte{byte(i)})
	}
	root, paths := buildTree(t, leaves)

	if sensorproof.VerifyInclusion(root, leaves[2], paths[2], 3) {
		t.Error("proof with shifted index must not verify")
	}
}

func TestComputeRoot_flippedSiblingByteFails(t *testing.T) {
	leaves := make([]sensorproof.Hash, 4)
	for i := range leaves {
		leaves[i] = sensorproof.HashLeaf([]byte{byte(i), 0x7F})
	}
	root, paths := buildTree(t, leaves)

	for level := range paths[1] {
		corrupted := append([]sensorproof.Hash(nil), paths[1]...)
		corrupted[level][0] ^= 0x01
		if sensorproof.VerifyInclusion(root, leaves[1], corrupted, 1) {
			t.Errorf("proof with corrupted sibling at level %d must not verify", level)
		}
	}
}

func TestComputeRoot_emptyPathIsLeaf(t *testing.T) {
	leaf := sensorproof.HashLeaf([]byte("solo"))
	if got := sensorproof.ComputeRoot(leaf, nil, 0); got != leaf {
		t.Error("empty path: root must equal the leaf itself")
	}
}
