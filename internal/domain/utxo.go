package domain

// Utxo is an unspent transaction output tracked by a UTXO-chain customs.
// Height is nil/zero until the outpoint has been observed on-chain with a
// block height attached.
type Utxo struct {
	Txid   string `cbor:"1,keyasint" json:"txid"`
	Vout   uint32 `cbor:"2,keyasint" json:"vout"`
	Value  uint64 `cbor:"3,keyasint" json:"value"`
	Height uint32 `cbor:"4,keyasint" json:"height,omitempty"`
}

// OutPoint identifies a Utxo without its value, for set membership and
// removal bookkeeping.
type OutPoint struct {
	Txid string
	Vout uint32
}

func (u Utxo) OutPoint() OutPoint { return OutPoint{Txid: u.Txid, Vout: u.Vout} }

// UtxoPurpose partitions the UTXO set per spec.md §3. Pools must remain
// disjoint at all times; internal/state.CheckInvariants verifies this.
type UtxoPurpose string

const (
	PurposeRunes        UtxoPurpose = "runes_utxos"
	PurposeAvailableFee  UtxoPurpose = "available_fee_utxos"
	PurposeDepositAddr   UtxoPurpose = "deposit_addr_utxo"
	PurposeFeePayment    UtxoPurpose = "fee_payment_utxo"
	PurposeChange        UtxoPurpose = "change"
)

// Destination is the triple that, with a schema byte, forms a
// threshold-key derivation path (spec.md §4.9, GLOSSARY).
type Destination struct {
	TargetChainID string `cbor:"1,keyasint" json:"target_chain_id"`
	Receiver      string `cbor:"2,keyasint" json:"receiver"`
	Token         string `cbor:"3,keyasint,omitempty" json:"token,omitempty"`
}

// Reserved destinations, per spec.md §4.9.
var (
	ChangeDestination      = Destination{TargetChainID: "", Receiver: "", Token: ""}
	FeePaymentDestination  = Destination{TargetChainID: "fee_payment", Receiver: "fee_payment", Token: ""}
)
