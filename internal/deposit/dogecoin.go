package deposit

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/dogecoin"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/merkleproof"
)

// DogecoinMerkleValidator validates a candidate Dogecoin deposit by
// fetching the block it claims inclusion in and rebuilding a Merkle
// audit path from that block's own transaction list, then checking the
// path climbs to the block's own merkle root — the same
// fetch-block/rebuild-tree/compare-root approach
// check_tx_confirmation_and_verify_by_merkle_root takes, rather than
// trusting a pre-built proof blob from a possibly-compromised indexer.
type DogecoinMerkleValidator struct {
	RPC *dogecoin.RPCHelper
}

// Validate implements Validator.
func (v *DogecoinMerkleValidator) Validate(ctx context.Context, req domain.GenTicketRequest) (bool, error) {
	if len(req.NewUtxos) == 0 {
		return false, fmt.Errorf("deposit: dogecoin candidate has no utxo")
	}
	txid := req.NewUtxos[0].Txid

	tx, err := v.RPC.GetRawTransaction(ctx, txid, true)
	if err != nil {
		return false, fmt.Errorf("deposit: fetching dogecoin tx %s: %w", txid, err)
	}
	if tx.BlockHash == "" {
		return false, nil // not yet mined; try again on the next poll
	}

	block, err := v.RPC.GetBlock(ctx, tx.BlockHash, 1)
	if err != nil {
		return false, fmt.Errorf("deposit: fetching dogecoin block %s: %w", tx.BlockHash, err)
	}

	leaves := make([][32]byte, len(block.Tx))
	leafIndex := -1
	for i, t := range block.Tx {
		h, err := reversedHashFromHex(t)
		if err != nil {
			return false, fmt.Errorf("deposit: decoding block txid %s: %w", t, err)
		}
		leaves[i] = h
		if t == txid {
			leafIndex = i
		}
	}
	if leafIndex < 0 {
		return false, fmt.Errorf("deposit: txid %s not found in its claimed block %s", txid, tx.BlockHash)
	}

	path, _, err := merkleproof.BuildPath(leaves, leafIndex)
	if err != nil {
		return false, fmt.Errorf("deposit: building merkle path for %s: %w", txid, err)
	}

	return dogecoin.VerifyDepositProof(dogecoin.DepositProof{
		TxidHex:         txid,
		Path:            path,
		BlockMerkleRoot: block.MerkleRoot,
	})
}

// reversedHashFromHex decodes a big-endian display hex hash (the
// txid/merkleroot format RPC responses use) into the little-endian
// internal byte order Bitcoin/Dogecoin hash internally and
// internal/merkleproof expects, matching dogecoin package's own
// unexported helper of the same name.
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
