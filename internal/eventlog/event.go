// Package eventlog defines the append-only Event log that is the sole
// source of truth for customs/route state (spec.md §3, §4.1, §6). Events
// are the only way state mutates durably: record(event) must be called
// before the corresponding in-memory mutation, so that a crash between
// the two leaves the authoritative record (spec.md §9 "Event-first
// mutation").
package eventlog

import "github.com/octopus-network/omnity-bridge-core/internal/domain"

// Kind tags the Event variant. Mirrors
// original_source/customs/bitcoin/src/state/eventlog.rs and
// original_source/hub/src/event.rs one-for-one.
type Kind string

const (
	KindInit                       Kind = "init"
	KindUpgrade                    Kind = "upgrade"
	KindAddedChain                 Kind = "added_chain"
	KindUpdatedChain               Kind = "updated_chain"
	KindAddedToken                 Kind = "added_token"
	KindUpdatedToken               Kind = "updated_token"
	KindToggleChainState           Kind = "toggle_chain_state"
	KindUpdatedFee                 Kind = "updated_fee"
	KindUpdateNextDirectiveSeq     Kind = "update_next_directive_seq"
	KindUpdateNextTicketSeq        Kind = "update_next_ticket_seq"
	KindUpdateNextConsumeDirective Kind = "update_next_consume_directive_seq"
	KindUpdateNextConsumeTicket    Kind = "update_next_consume_ticket_seq"
	KindReceivedUtxos              Kind = "received_utxos"
	KindUpdatedRunesBalance        Kind = "updated_runes_balance"
	KindAcceptedGenTicketRequestV2 Kind = "accepted_generate_ticket_request_v2"
	KindFinalizedTicketRequest     Kind = "finalized_ticket_request"
	KindRemovedTicketRequest       Kind = "removed_ticket_request"
	KindSentBtcTransaction         Kind = "sent_transaction"
	KindReplacedBtcTransaction     Kind = "replaced_transaction"
	KindConfirmedBtcTransaction    Kind = "confirmed_transaction"
	KindPendingTicket              Kind = "pending_ticket"
	KindFinalizeTicket             Kind = "finaize_ticket"
	KindUpdatedTxHash              Kind = "updated_tx_hash"
	KindDispatchedDirective        Kind = "dispatched_directive"
)

// InitArgs seeds the very first event in a log; replay fails EmptyLog /
// InconsistentLog unless it sees this first.
type InitArgs struct {
	ChainID    string `cbor:"1,keyasint" json:"chain_id"`
	ChainType  domain.ChainType `cbor:"2,keyasint" json:"chain_type"`
	HubURL     string `cbor:"3,keyasint" json:"hub_url"`
}

// UpgradeArgs carries whatever changed across a process upgrade; pure
// values only (stable-map-backed fields are reopened from their own
// storage region, not serialized here, per spec.md §9).
type UpgradeArgs struct {
	Note string `cbor:"1,keyasint,omitempty" json:"note,omitempty"`
}

// ReceivedUtxosPayload is the payload of KindReceivedUtxos.
type ReceivedUtxosPayload struct {
	Destination domain.Destination `cbor:"1,keyasint" json:"destination"`
	Utxos       []domain.Utxo      `cbor:"2,keyasint" json:"utxos"`
	IsRunes     bool               `cbor:"3,keyasint" json:"is_runes"`
}

// UpdatedRunesBalancePayload is the payload of KindUpdatedRunesBalance.
type UpdatedRunesBalancePayload struct {
	Txid    string              `cbor:"1,keyasint" json:"txid"`
	Balance domain.RunesBalance `cbor:"2,keyasint" json:"balance"`
}

// FinalizedTicketRequestPayload is the payload of
// KindFinalizedTicketRequest.
type FinalizedTicketRequestPayload struct {
	Txid     string                `cbor:"1,keyasint" json:"txid"`
	Balances []domain.RunesBalance `cbor:"2,keyasint,omitempty" json:"balances,omitempty"`
}

// SentBtcTransactionPayload is the payload of KindSentBtcTransaction.
type SentBtcTransactionPayload struct {
	TokenID       string               `cbor:"1,keyasint" json:"token_id"`
	TicketIDs     []string             `cbor:"2,keyasint" json:"ticket_ids"`
	Txid          string               `cbor:"3,keyasint" json:"txid"`
	ConsumedUtxos []domain.Utxo        `cbor:"4,keyasint" json:"consumed_utxos"`
	ChangeOutputs []domain.ChangeOutput `cbor:"5,keyasint,omitempty" json:"change_outputs,omitempty"`
	FeePerVbyte   uint64               `cbor:"6,keyasint,omitempty" json:"fee_per_vbyte,omitempty"`
	SubmittedAt   int64                `cbor:"7,keyasint" json:"submitted_at"`
}

// ReplacedBtcTransactionPayload is the payload of
// KindReplacedBtcTransaction.
type ReplacedBtcTransactionPayload struct {
	OldTxid       string               `cbor:"1,keyasint" json:"old_txid"`
	NewTxid       string               `cbor:"2,keyasint" json:"new_txid"`
	ChangeOutputs []domain.ChangeOutput `cbor:"3,keyasint,omitempty" json:"change_outputs,omitempty"`
	FeePerVbyte   uint64               `cbor:"4,keyasint" json:"fee_per_vbyte"`
	SubmittedAt   int64                `cbor:"5,keyasint" json:"submitted_at"`
}

// Event is a tagged union over every state-changing decision a
// customs/route process can make. Exactly the field(s) matching Kind are
// populated; everything else is zero. Encoded with canonical CBOR
// (fxamacker/cbor) for the durable log (spec.md §6).
type Event struct {
	Kind Kind `cbor:"1,keyasint" json:"kind"`

	Init    *InitArgs    `cbor:"2,keyasint,omitempty" json:"init,omitempty"`
	Upgrade *UpgradeArgs `cbor:"3,keyasint,omitempty" json:"upgrade,omitempty"`

	Chain  *domain.Chain  `cbor:"4,keyasint,omitempty" json:"chain,omitempty"`
	Token  *domain.Token  `cbor:"5,keyasint,omitempty" json:"token,omitempty"`
	Toggle *domain.ToggleState `cbor:"6,keyasint,omitempty" json:"toggle,omitempty"`
	Fee    *domain.FeeUpdate `cbor:"7,keyasint,omitempty" json:"fee,omitempty"`

	NextSeq uint64 `cbor:"8,keyasint,omitempty" json:"next_seq,omitempty"`

	ReceivedUtxos       *ReceivedUtxosPayload          `cbor:"9,keyasint,omitempty" json:"received_utxos,omitempty"`
	UpdatedRunesBalance *UpdatedRunesBalancePayload    `cbor:"10,keyasint,omitempty" json:"updated_runes_balance,omitempty"`
	GenTicketRequest    *domain.GenTicketRequest       `cbor:"11,keyasint,omitempty" json:"gen_ticket_request,omitempty"`
	FinalizedRequest    *FinalizedTicketRequestPayload `cbor:"12,keyasint,omitempty" json:"finalized_request,omitempty"`
	RemovedRequestTxid  string                         `cbor:"13,keyasint,omitempty" json:"removed_request_txid,omitempty"`

	SentTx      *SentBtcTransactionPayload     `cbor:"14,keyasint,omitempty" json:"sent_tx,omitempty"`
	ReplacedTx  *ReplacedBtcTransactionPayload `cbor:"15,keyasint,omitempty" json:"replaced_tx,omitempty"`
	ConfirmedTxid string                       `cbor:"16,keyasint,omitempty" json:"confirmed_txid,omitempty"`

	Ticket       *domain.Ticket `cbor:"17,keyasint,omitempty" json:"ticket,omitempty"`
	TicketID     string         `cbor:"18,keyasint,omitempty" json:"ticket_id,omitempty"`
	TxHash       string         `cbor:"19,keyasint,omitempty" json:"tx_hash,omitempty"`

	DispatchedDirectiveSeq uint64 `cbor:"20,keyasint,omitempty" json:"dispatched_directive_seq,omitempty"`
}
