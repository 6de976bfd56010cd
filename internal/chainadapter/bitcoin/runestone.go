// Package bitcoin - Runestone OP_RETURN encoding for Runes releases
package bitcoin

import (
	"bytes"

	"github.com/btcsuite/btcd/txscript"
)

// RuneID identifies an etched rune by the block it was etched in and
// its index within that block's transactions, the same pair
// original_source/customs/bitcoin_runes/src/runes_etching/wallet/builder/mod.rs's
// Edict carries as ordinals::RuneId.
type RuneID struct {
	Block uint64
	Tx    uint32
}

// Edict moves Amount of a rune to the transaction output at index
// Output, mirroring the ordinals crate's Edict{id, amount, output}.
type Edict struct {
	ID     RuneID
	Amount uint64
	Output uint32
}

// runestoneBodyTag is the message-field tag the ord/runes protocol
// uses for the edict list (tag 0, "Body").
const runestoneBodyTag = 0

// EncodeRunestone builds the OP_RETURN script carrying a Runestone
// with one edict per entry in edicts. Fields are varint (LEB128)
// encoded per the runes protocol: a rune id is carried as the delta
// from the previous edict's id (block, then tx-within-block), so the
// first edict just encodes its own (block, tx) pair directly. A Runes
// release carries one edict, or two when it has a runes change output.
func EncodeRunestone(edicts []Edict) ([]byte, error) {
	var payload bytes.Buffer
	putVarint(&payload, runestoneBodyTag)

	var prevBlock uint64
	var prevTx uint32
	for _, e := range edicts {
		putVarint(&payload, e.ID.Block-prevBlock)
		if e.ID.Block == prevBlock {
			putVarint(&payload, uint64(e.ID.Tx-prevTx))
		} else {
			putVarint(&payload, uint64(e.ID.Tx))
		}
		putVarint(&payload, e.Amount)
		putVarint(&payload, uint64(e.Output))
		prevBlock, prevTx = e.ID.Block, e.ID.Tx
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_RETURN)
	builder.AddOp(txscript.OP_13) // runestone protocol magic number
	builder.AddData(payload.Bytes())
	return builder.Script()
}

// putVarint appends n to buf as a LEB128 varint, 7 bits per byte with
// the continuation bit set on every byte but the last.
func putVarint(buf *bytes.Buffer, n uint64) {
	for n >= 0x80 {
		buf.WriteByte(byte(n&0x7f) | 0x80)
		n >>= 7
	}
	buf.WriteByte(byte(n))
}
