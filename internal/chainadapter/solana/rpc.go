package solana

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
)

// RPCHelper wraps Solana's JSON-RPC surface (getLatestBlockhash,
// sendTransaction, getSignatureStatuses) behind the same RPCClient
// abstraction the Bitcoin/EVM adapters use, so the transport, retry,
// and health-tracking machinery in internal/chainadapter/rpc is shared
// rather than reimplemented per chain family.
type RPCHelper struct {
	client rpc.RPCClient
}

// NewRPCHelper creates a new Solana RPC helper.
func NewRPCHelper(client rpc.RPCClient) *RPCHelper {
	return &RPCHelper{client: client}
}

type blockhashResult struct {
	Value struct {
		Blockhash            string `json:"blockhash"`
		LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	} `json:"value"`
}

// GetLatestBlockhash fetches the current recent blockhash transactions
// must reference.
func (r *RPCHelper) GetLatestBlockhash(ctx context.Context) (string, error) {
	raw, err := r.client.Call(ctx, "getLatestBlockhash", []interface{}{map[string]string{"commitment": "finalized"}})
	if err != nil {
		return "", chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable, fmt.Sprintf("getLatestBlockhash failed: %s", err.Error()), nil, err)
	}
	var result blockhashResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_RPC_PARSE", fmt.Sprintf("failed to parse getLatestBlockhash: %s", err.Error()), err)
	}
	return result.Value.Blockhash, nil
}

// SendRawTransaction submits a base64-encoded signed transaction.
func (r *RPCHelper) SendRawTransaction(ctx context.Context, base64Tx string) (string, error) {
	raw, err := r.client.Call(ctx, "sendTransaction", []interface{}{base64Tx, map[string]string{"encoding": "base64"}})
	if err != nil {
		return "", chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable, fmt.Sprintf("sendTransaction failed: %s", err.Error()), nil, err)
	}
	var sig string
	if err := json.Unmarshal(raw, &sig); err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_RPC_PARSE", fmt.Sprintf("failed to parse sendTransaction response: %s", err.Error()), err)
	}
	return sig, nil
}

type signatureStatus struct {
	Value []*struct {
		ConfirmationStatus string `json:"confirmationStatus"` // "processed", "confirmed", "finalized"
		Confirmations      *int   `json:"confirmations"`
		Err                interface{} `json:"err"`
		Slot                uint64 `json:"slot"`
	} `json:"value"`
}

// GetSignatureStatus looks up a transaction signature's current
// confirmation status.
func (r *RPCHelper) GetSignatureStatus(ctx context.Context, signature string) (status string, slot uint64, failed bool, err error) {
	raw, callErr := r.client.Call(ctx, "getSignatureStatuses", []interface{}{[]string{signature}, map[string]bool{"searchTransactionHistory": true}})
	if callErr != nil {
		return "", 0, false, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable, fmt.Sprintf("getSignatureStatuses failed: %s", callErr.Error()), nil, callErr)
	}
	var result signatureStatus
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", 0, false, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", fmt.Sprintf("failed to parse getSignatureStatuses: %s", err.Error()), err)
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return "", 0, false, nil // not seen yet
	}
	entry := result.Value[0]
	return entry.ConfirmationStatus, entry.Slot, entry.Err != nil, nil
}
