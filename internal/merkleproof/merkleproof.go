// Package merkleproof verifies Bitcoin/Dogecoin-style Merkle audit paths
// (a leaf txid, a sibling-hash list, and a left/right flag per level)
// against a block's merkle root. Bitcoin's own merkle tree uses
// double-SHA256 and, uniquely, duplicates the last node at odd levels —
// a shape neither xsleonard/go-merkle nor cbergoon/merkletree (both seen
// elsewhere in the pack) implement, so this is intentionally hand-rolled
// stdlib crypto/sha256 rather than forcing a general-purpose merkle
// library into a shape it doesn't support (DESIGN.md records this
// standard-library justification).
package merkleproof

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// Step is one level of an audit path: a sibling hash and whether that
// sibling sits to the IsLeft of the node being climbed.
type Step struct {
	Hash   [32]byte
	IsLeft bool
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// Verify climbs leaf up path and reports whether the resulting root
// equals want. Hashes are compared and combined in Bitcoin's internal
// (little-endian) byte order, the same order callers must supply leaf
// and want in.
func Verify(leaf [32]byte, path []Step, want [32]byte) bool {
	cur := leaf
	for _, step := range path {
		var buf [64]byte
		if step.IsLeft {
			copy(buf[:32], step.Hash[:])
			copy(buf[32:], cur[:])
		} else {
			copy(buf[:32], cur[:])
			copy(buf[32:], step.Hash[:])
		}
		cur = doubleSHA256(buf[:])
	}
	return bytes.Equal(cur[:], want[:])
}

// BuildPath derives the audit path for leafIndex within leaves (already
// in internal byte order), duplicating the final node at odd levels per
// Bitcoin's merkle tree construction (CVE-2012-2459's root cause, which
// full nodes now special-case; this mirrors the same duplication rule
// so a proof built here verifies against a real Bitcoin block).
func BuildPath(leaves [][32]byte, leafIndex int) ([]Step, [32]byte, error) {
	if len(leaves) == 0 {
		return nil, [32]byte{}, fmt.Errorf("merkleproof: empty leaf set")
	}
	if leafIndex < 0 || leafIndex >= len(leaves) {
		return nil, [32]byte{}, fmt.Errorf("merkleproof: leaf index %d out of range [0,%d)", leafIndex, len(leaves))
	}

	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	idx := leafIndex

	var path []Step
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		var next [][32]byte
		for i := 0; i < len(level); i += 2 {
			var buf [64]byte
			copy(buf[:32], level[i][:])
			copy(buf[32:], level[i+1][:])
			next = append(next, doubleSHA256(buf[:]))

			if i == idx || i+1 == idx {
				if i == idx {
					path = append(path, Step{Hash: level[i+1], IsLeft: false})
				} else {
					path = append(path, Step{Hash: level[i], IsLeft: true})
				}
			}
		}
		idx /= 2
		level = next
	}
	return path, level[0], nil
}
