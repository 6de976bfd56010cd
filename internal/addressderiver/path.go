// Package addressderiver builds threshold-key derivation paths from a
// domain.Destination and renders the resulting public key as a native
// address on whichever settlement chain a customs process controls.
// Only customs chains (Bitcoin, Dogecoin, and EVM-style customs) need
// unique per-destination addresses: a route's receiver is simply the
// end user's own existing wallet address on that execution chain, no
// derivation required (original_source/customs/bitcoin/src/address.rs
// and the route handlers never derive a receiver address, they only
// validate one). Grounded on the derivation-path plumbing in
// src/chainadapter/bitcoin/derive.go (teacher) and
// internal/services/address/*.go (teacher), generalized from fixed
// BIP44 paths to the one-path-per-destination scheme below.
package addressderiver

import (
	"bytes"

	"github.com/octopus-network/omnity-bridge-core/internal/domain"
)

// schemaByte tags every derivation path the bridge ever produces, so a
// key service sharing its master key with unrelated callers can never
// be tricked into deriving a bridge path by accident.
const schemaByte = 0x01

// Path builds the derivation path
// [0x01, target_chain_id, receiver, token_id_or_empty] for dest, the
// scheme spec.md §4.9 and the GLOSSARY describe. Two destinations are
// reserved and never collide with a real deposit address:
// domain.ChangeDestination and domain.FeePaymentDestination.
func Path(dest domain.Destination) []byte {
	var buf bytes.Buffer
	buf.WriteByte(schemaByte)
	writeLenPrefixed(&buf, []byte(dest.TargetChainID))
	writeLenPrefixed(&buf, []byte(dest.Receiver))
	writeLenPrefixed(&buf, []byte(dest.Token))
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	buf.WriteByte(byte(len(b)))
	buf.WriteByte(byte(len(b) >> 8))
	buf.Write(b)
}
