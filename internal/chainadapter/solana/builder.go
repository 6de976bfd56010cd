// Package solana implements the Capability interface for Solana-family
// routes: release transaction construction against the system/token
// programs, signature verification, and confirmation polling via the
// JSON-RPC surface shared with every other RPCClient-based adapter in
// this module.
package solana

import (
	"context"
	"fmt"
	"math/big"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
)

// TransactionBuilder builds Solana release transactions.
type TransactionBuilder struct{}

// NewTransactionBuilder creates a new Solana transaction builder.
func NewTransactionBuilder() *TransactionBuilder { return &TransactionBuilder{} }

// Build constructs an unsigned Solana release transaction. Release is
// expressed as a System Program transfer from the customs's controlling
// account; a real omnity-port deployment mints SPL tokens instead (see
// original_source/route/solana/src/handler/token_account.rs), which
// would swap this instruction for a token.NewMintToInstruction built
// against the port's mint address — this placeholder keeps the same
// signing-payload/broadcast shape until that mint address is wired in.
func (tb *TransactionBuilder) Build(ctx context.Context, req *chainadapter.ReleaseRequest, fromAddr string, recentBlockhash string) (*chainadapter.UnsignedTransaction, error) {
	if err := tb.validateRequest(req); err != nil {
		return nil, err
	}

	from, err := solanago.PublicKeyFromBase58(fromAddr)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, fmt.Sprintf("invalid from address: %s", fromAddr), err)
	}
	to, err := solanago.PublicKeyFromBase58(req.Destination.Receiver)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, fmt.Sprintf("invalid receiver address: %s", req.Destination.Receiver), err)
	}
	blockhash, err := solanago.HashFromBase58(recentBlockhash)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_BLOCKHASH", fmt.Sprintf("invalid recent blockhash: %s", recentBlockhash), err)
	}

	ix := system.NewTransferInstruction(req.Amount.Uint64(), from, to).Build()

	tx, err := solanago.NewTransaction([]solanago.Instruction{ix}, blockhash, solanago.TransactionPayer(from))
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to build solana transaction", err)
	}

	signingPayload, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to marshal solana message", err)
	}

	return &chainadapter.UnsignedTransaction{
		ID:             req.TicketID,
		ChainID:        "solana", // overridden by adapter
		From:           fromAddr,
		To:             req.Destination.Receiver,
		Amount:         req.Amount,
		Fee:            big.NewInt(5000), // lamports, Solana's flat base fee per signature
		Nonce:          nil,
		SigningPayload: signingPayload,
		HumanReadable:  fmt.Sprintf(`{"ticket_id":"%s","to":"%s","amount":%s lamports,"blockhash":"%s"}`, req.TicketID, req.Destination.Receiver, req.Amount.String(), recentBlockhash),
		ChainSpecific: map[string]interface{}{
			"recent_blockhash": recentBlockhash,
			"message":          signingPayload,
		},
		CreatedAt: time.Now(),
	}, nil
}

func (tb *TransactionBuilder) validateRequest(req *chainadapter.ReleaseRequest) error {
	if req.Destination.Receiver == "" {
		return chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, "receiver address is required", nil)
	}
	if _, err := solanago.PublicKeyFromBase58(req.Destination.Receiver); err != nil {
		return chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, fmt.Sprintf("invalid receiver address: %s", req.Destination.Receiver), err)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAmount, "amount must be positive", nil)
	}
	return nil
}
