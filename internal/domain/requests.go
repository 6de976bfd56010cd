package domain

// GenTicketStatus is the lifecycle of a pending generate-ticket request.
// Transitions are monotone: Pending -> Confirmed -> Finalized, or Unknown
// if the txid was never observed.
type GenTicketStatus string

const (
	GenTicketUnknown   GenTicketStatus = "Unknown"
	GenTicketPending   GenTicketStatus = "Pending"
	GenTicketConfirmed GenTicketStatus = "Confirmed"
	GenTicketFinalized GenTicketStatus = "Finalized"
)

// GenTicketRequest is a deposit observed on the settlement chain, not yet
// (or not fully) turned into a Ticket handed to the Hub. Keyed by the
// source chain's transaction id.
type GenTicketRequest struct {
	Txid          string          `cbor:"1,keyasint" json:"txid"`
	TargetChainID string          `cbor:"2,keyasint" json:"target_chain_id"`
	Receiver      string          `cbor:"3,keyasint" json:"receiver"`
	TokenID       string          `cbor:"4,keyasint" json:"token_id"`
	Amount        string          `cbor:"5,keyasint" json:"amount"`
	NewUtxos      []Utxo          `cbor:"6,keyasint" json:"new_utxos,omitempty"`
	ReceivedAt    int64           `cbor:"7,keyasint" json:"received_at"`
	RawTx         []byte          `cbor:"8,keyasint,omitempty" json:"-"`
	Status        GenTicketStatus `cbor:"9,keyasint" json:"status"`
}

// RunesBalance annotates how much of which rune a deposited UTXO carries,
// as reported by the runes-oracle principal (spec.md §4.8 mode 1).
type RunesBalance struct {
	RuneID string `cbor:"1,keyasint" json:"rune_id"`
	Amount string `cbor:"2,keyasint" json:"amount"`
}

// ChangeOutput records the change UTXO produced by a release transaction,
// if any.
type ChangeOutput struct {
	Value uint64 `cbor:"1,keyasint" json:"value"`
	Vout  uint32 `cbor:"2,keyasint" json:"vout"`
}

// SubmittedTx is the record of one outbound release transaction. It can
// be Replaced (RBF-style), producing a new SubmittedTx bound to the same
// ticket set while the old record is removed atomically.
type SubmittedTx struct {
	TokenID       string   `cbor:"1,keyasint" json:"token_id"`
	TicketIDs     []string `cbor:"2,keyasint" json:"ticket_ids"`
	Txid          string   `cbor:"3,keyasint" json:"txid"`
	ConsumedUtxos []Utxo   `cbor:"4,keyasint" json:"consumed_utxos"`
	ChangeOutputs []ChangeOutput `cbor:"5,keyasint" json:"change_outputs,omitempty"`
	FeePerVbyte   uint64   `cbor:"6,keyasint" json:"fee_per_vbyte,omitempty"`
	SubmittedAt   int64    `cbor:"7,keyasint" json:"submitted_at"`
}

// PendingTicketStatus is the state of an in-flight mint/release for one
// ticket on an execution-chain route.
type PendingTicketStatus struct {
	TicketID    string `cbor:"1,keyasint" json:"ticket_id"`
	TxHash      string `cbor:"2,keyasint" json:"tx_hash,omitempty"`
	RetryCount  int    `cbor:"3,keyasint" json:"retry_count"`
	LastAttempt int64  `cbor:"4,keyasint" json:"last_attempt_time"`
	Finalized   bool   `cbor:"5,keyasint" json:"finalized"`
}
