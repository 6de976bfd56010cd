package dogecoin

import (
	"encoding/hex"
	"fmt"

	"github.com/octopus-network/omnity-bridge-core/internal/merkleproof"
)

// DepositProof is an already-extracted Merkle audit path for a deposit
// transaction. internal/deposit's DogecoinMerkleValidator builds this
// path itself from a full block's transaction list (getblock verbosity
// 1) rather than parsing a Dogecoin Core `gettxoutproof` response's
// partial-merkle-tree wire format; this package only verifies the
// resulting path against the block's own merkle root, matching
// internal/merkleproof's scope everywhere else it's used in this
// module.
type DepositProof struct {
	TxidHex         string
	Path            []merkleproof.Step
	BlockMerkleRoot string // hex, RPC byte order (big-endian display)
}

// VerifyDepositProof reports whether proof climbs to blockMerkleRoot,
// confirming the deposit transaction was actually included in that
// block rather than merely relayed by a malicious or buggy peer. This
// is the light-client check customs/doge performs before honoring a
// deposit observed through an external indexer instead of a fully
// validating node.
func VerifyDepositProof(proof DepositProof) (bool, error) {
	leaf, err := reversedHashFromHex(proof.TxidHex)
	if err != nil {
		return false, fmt.Errorf("dogecoin: invalid txid in proof: %w", err)
	}
	root, err := reversedHashFromHex(proof.BlockMerkleRoot)
	if err != nil {
		return false, fmt.Errorf("dogecoin: invalid merkle root in proof: %w", err)
	}
	return merkleproof.Verify(leaf, proof.Path, root), nil
}

// reversedHashFromHex decodes a big-endian display hex hash into the
// little-endian internal byte order Bitcoin/Dogecoin hash internally.
func reversedHashFromHex(s string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}
	for i := 0; i < 32; i++ {
		out[i] = b[31-i]
	}
	return out, nil
}
