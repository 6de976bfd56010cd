// Package evm implements chainadapter.Capability for EVM-compatible
// chains (Ethereum, Bitfinity, BSC-style networks that share go-ethereum's
// RPC surface and EIP-1559 fee market).
package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransactionBuilder builds EIP-1559 release transactions from a
// chainadapter.ReleaseRequest.
type TransactionBuilder struct {
	chainID *big.Int
}

// NewTransactionBuilder creates a new EVM transaction builder.
func NewTransactionBuilder(chainID int64) *TransactionBuilder {
	return &TransactionBuilder{chainID: big.NewInt(chainID)}
}

// Build constructs an unsigned EIP-1559 release transaction paying
// req.Amount to req.Destination.Receiver.
func (tb *TransactionBuilder) Build(
	ctx context.Context,
	req *chainadapter.ReleaseRequest,
	fromAddr string,
	nonce uint64,
	gasLimit uint64,
	maxFeePerGas *big.Int,
	maxPriorityFeePerGas *big.Int,
) (*chainadapter.UnsignedTransaction, error) {
	if err := tb.validateRequest(req); err != nil {
		return nil, err
	}

	toAddr := common.HexToAddress(req.Destination.Receiver)

	var data []byte
	if req.Memo != "" {
		data = []byte(req.Memo)
	}

	if req.ChainSpecific != nil {
		if customGasLimit, ok := req.ChainSpecific["gas_limit"].(uint64); ok {
			gasLimit = customGasLimit
		}
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   tb.chainID,
		Nonce:     nonce,
		GasFeeCap: maxFeePerGas,
		GasTipCap: maxPriorityFeePerGas,
		Gas:       gasLimit,
		To:        &toAddr,
		Value:     req.Amount,
		Data:      data,
	})

	signer := types.LatestSignerForChainID(tb.chainID)
	txHash := signer.Hash(tx)
	signingPayload := txHash.Bytes()

	fee := new(big.Int).Mul(maxFeePerGas, big.NewInt(int64(gasLimit)))

	unsigned := &chainadapter.UnsignedTransaction{
		ID:             txHash.Hex(),
		ChainID:        fmt.Sprintf("evm-%d", tb.chainID.Int64()),
		From:           fromAddr,
		To:             req.Destination.Receiver,
		Amount:         req.Amount,
		Fee:            fee,
		Nonce:          &nonce,
		SigningPayload: signingPayload,
		HumanReadable:  tb.createHumanReadable(req, fromAddr, nonce, gasLimit, maxFeePerGas, maxPriorityFeePerGas, fee),
		ChainSpecific: map[string]interface{}{
			"chain_id":                 tb.chainID.Int64(),
			"nonce":                    nonce,
			"gas_limit":                gasLimit,
			"max_fee_per_gas":          maxFeePerGas.String(),
			"max_priority_fee_per_gas": maxPriorityFeePerGas.String(),
			"data":                     data,
		},
		CreatedAt: time.Now(),
	}

	return unsigned, nil
}

func (tb *TransactionBuilder) validateRequest(req *chainadapter.ReleaseRequest) error {
	if req.Destination.Receiver == "" {
		return chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidAddress,
			"destination receiver address is required",
			nil,
		)
	}
	if !common.IsHexAddress(req.Destination.Receiver) {
		return chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidAddress,
			fmt.Sprintf("invalid receiver address: %s", req.Destination.Receiver),
			nil,
		)
	}
	if req.Amount == nil || req.Amount.Cmp(big.NewInt(0)) < 0 {
		return chainadapter.NewNonRetryableError(
			chainadapter.ErrCodeInvalidAmount,
			"amount must be non-negative",
			nil,
		)
	}
	return nil
}

// createHumanReadable renders a JSON preview of the release transaction
// for audit-log display before signing.
func (tb *TransactionBuilder) createHumanReadable(
	req *chainadapter.ReleaseRequest,
	fromAddr string,
	nonce uint64,
	gasLimit uint64,
	maxFeePerGas *big.Int,
	maxPriorityFeePerGas *big.Int,
	fee *big.Int,
) string {
	amountEth := new(big.Float).Quo(new(big.Float).SetInt(req.Amount), new(big.Float).SetInt(big.NewInt(1e18)))
	feeEth := new(big.Float).Quo(new(big.Float).SetInt(fee), new(big.Float).SetInt(big.NewInt(1e18)))
	maxFeeGwei := new(big.Int).Div(maxFeePerGas, big.NewInt(1e9))
	maxPriorityGwei := new(big.Int).Div(maxPriorityFeePerGas, big.NewInt(1e9))

	return fmt.Sprintf(`{
  "ticket_id": "%s",
  "from": "%s",
  "to": "%s",
  "amount": %s ETH (%s wei),
  "nonce": %d,
  "gas_limit": %d,
  "max_fee_per_gas": %s Gwei,
  "max_priority_fee_per_gas": %s Gwei,
  "estimated_fee": %s ETH,
  "memo": "%s",
  "chain_id": %d
}`,
		req.TicketID,
		fromAddr,
		req.Destination.Receiver,
		amountEth.Text('f', 6),
		req.Amount.String(),
		nonce,
		gasLimit,
		maxFeeGwei.String(),
		maxPriorityGwei.String(),
		feeEth.Text('f', 6),
		req.Memo,
		tb.chainID.Int64(),
	)
}
