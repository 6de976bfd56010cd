package dogecoin

import (
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/bitcoin"
)

// VerifySignature verifies a compact (r||s) signature against a payload
// and public key. Dogecoin's transaction signature hash algorithm
// (double-SHA256 over the legacy sighash serialization) is identical to
// Bitcoin's pre-segwit scheme, so the verification logic is reused
// directly rather than reimplemented.
var VerifySignature = bitcoin.VerifySignature

// ComputeTransactionHash computes the Dogecoin transaction hash
// (double-SHA256, reversed to the conventional big-endian display
// order), identical to Bitcoin's txid computation.
var ComputeTransactionHash = bitcoin.ComputeTransactionHash
