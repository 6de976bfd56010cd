// Package domain holds the content-addressed entities shared by every
// customs/route component: tickets, directives, chain/token registries,
// UTXOs, and the derived-destination triple. None of these types know how
// to mutate themselves — state transitions live in internal/state, driven
// by internal/eventlog.Event — but they are the vocabulary every other
// package speaks.
package domain

import "fmt"

// TicketAction is the action carried by a Ticket.
type TicketAction string

const (
	ActionTransfer TicketAction = "Transfer"
	ActionRedeem   TicketAction = "Redeem"
	ActionMint     TicketAction = "Mint"
	ActionBurn     TicketAction = "Burn"
)

// TicketType distinguishes a first submission from an operator resubmit.
type TicketType string

const (
	TicketNormal   TicketType = "Normal"
	TicketResubmit TicketType = "Resubmit"
)

// Ticket is the immutable interchange unit routed by the Hub between a
// customs and a route. ticket_time is nanoseconds since epoch, amount is
// a decimal string to avoid float precision loss, and memo is opaque
// bytes that may carry an encoded bridge fee.
type Ticket struct {
	TicketID   string       `cbor:"1,keyasint" json:"ticket_id"`
	TicketTime int64        `cbor:"2,keyasint" json:"ticket_time"`
	SrcChain   string       `cbor:"3,keyasint" json:"src_chain"`
	DstChain   string       `cbor:"4,keyasint" json:"dst_chain"`
	Action     TicketAction `cbor:"5,keyasint" json:"action"`
	TokenID    string       `cbor:"6,keyasint" json:"token_id"`
	Amount     string       `cbor:"7,keyasint" json:"amount"`
	Sender     string       `cbor:"8,keyasint" json:"sender"`
	Receiver   string       `cbor:"9,keyasint" json:"receiver"`
	Memo       []byte       `cbor:"10,keyasint" json:"memo,omitempty"`
	Type       TicketType   `cbor:"11,keyasint" json:"ticket_type"`
}

func (t Ticket) String() string {
	return fmt.Sprintf("Ticket{%s %s->%s %s %s}", t.TicketID, t.SrcChain, t.DstChain, t.Action, t.Amount)
}

// SeqKey pairs a monotone sequence number with the Hub's routing key,
// mirroring the hub's own (chain_id, seq) addressing of queued tickets
// and directives.
type SeqKey struct {
	ChainID string `cbor:"1,keyasint" json:"chain_id"`
	Seq     uint64 `cbor:"2,keyasint" json:"seq"`
}
