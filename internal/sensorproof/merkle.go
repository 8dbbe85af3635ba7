package sensorproof

import "golang.org/x/crypto/sha3"

// HashSize is the length of a Merkle node hash in bytes.
const HashSize = 32

// Hash is a 32-byte Keccak-256 digest used for Merkle leaves and nodes.
type Hash [HashSize]byte

// HashLeaf returns the Keccak-256 digest of raw leaf bytes. Batch builders
// use this to derive leaf hashes from encoded proof messages.
func HashLeaf(data []byte) Hash {
	return hashNode(data)
}

// ComputeRoot recomputes a Merkle root from a leaf hash, its authentication
// path, and its zero-based leaf index.
//
// At each level the sibling is combined on the side determined by the least
// significant bit of the index: an even index means the current node is the
// left child (hash(current || sibling)), an odd index means it is the right
// child (hash(sibling || current)). The index is halved per level. This must
// match the convention of the off-system tree builder exactly.
func ComputeRoot(leaf Hash, path []Hash, index uint32) Hash {
	current := leaf
	idx := index
	for _, sibling := range path {
		if idx%2 == 0 {
			current = hashPair(current, sibling)
		} else {
			current = hashPair(sibling, current)
		}
		idx /= 2
	}
	return current
}

// VerifyInclusion reports whether (leaf, path, index) recomputes to root.
// Any mismatch is a failed proof; there is no partial success.
func VerifyInclusion(root, leaf Hash, path []Hash, index uint32) bool {
	return ComputeRoot(leaf, path, index) == root
}

func hashPair(left, right Hash) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(left[:])
	h.Write(right[:])
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func hashNode(data []byte) Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
