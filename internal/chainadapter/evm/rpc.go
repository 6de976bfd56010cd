// Package evm - RPC helper functions for EVM chain adapters.
package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RPCHelper provides typed helpers over the raw JSON-RPC client for the
// subset of eth_* methods release building, fee estimation, broadcast
// and confirmation tracking need.
type RPCHelper struct {
	client rpc.RPCClient
}

// NewRPCHelper creates a new EVM RPC helper.
func NewRPCHelper(client rpc.RPCClient) *RPCHelper {
	return &RPCHelper{client: client}
}

// GetTransactionCount retrieves the pending nonce for an address.
func (r *RPCHelper) GetTransactionCount(ctx context.Context, address string) (uint64, error) {
	result, err := r.client.Call(ctx, "eth_getTransactionCount", []interface{}{address, "pending"})
	if err != nil {
		return 0, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable,
			fmt.Sprintf("eth_getTransactionCount RPC failed: %s", err.Error()), nil, err)
	}
	var nonceHex string
	if err := json.Unmarshal(result, &nonceHex); err != nil {
		return 0, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", fmt.Sprintf("failed to parse nonce: %s", err.Error()), err)
	}
	nonce, err := hexutil.DecodeUint64(nonceHex)
	if err != nil {
		return 0, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", fmt.Sprintf("failed to decode nonce hex: %s", err.Error()), err)
	}
	return nonce, nil
}

// EstimateGas estimates gas for a transaction via eth_estimateGas.
func (r *RPCHelper) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	txObj := map[string]interface{}{"from": from, "to": to}
	if value != nil && value.Cmp(big.NewInt(0)) > 0 {
		txObj["value"] = hexutil.EncodeBig(value)
	}
	if len(data) > 0 {
		txObj["data"] = hexutil.Encode(data)
	}

	result, err := r.client.Call(ctx, "eth_estimateGas", []interface{}{txObj})
	if err != nil {
		return 0, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable,
			fmt.Sprintf("eth_estimateGas RPC failed: %s", err.Error()), nil, err)
	}
	var gasHex string
	if err := json.Unmarshal(result, &gasHex); err != nil {
		return 0, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", fmt.Sprintf("failed to parse gas estimate: %s", err.Error()), err)
	}
	gas, err := hexutil.DecodeUint64(gasHex)
	if err != nil {
		return 0, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", fmt.Sprintf("failed to decode gas hex: %s", err.Error()), err)
	}
	return gas, nil
}

// GetBaseFee retrieves the current base fee from the latest block (EIP-1559).
func (r *RPCHelper) GetBaseFee(ctx context.Context) (*big.Int, error) {
	result, err := r.client.Call(ctx, "eth_getBlockByNumber", []interface{}{"latest", false})
	if err != nil {
		return nil, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable, "eth_getBlockByNumber RPC failed", nil, err)
	}
	var block struct {
		BaseFeePerGas string `json:"baseFeePerGas"`
	}
	if err := json.Unmarshal(result, &block); err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", "failed to parse block", err)
	}
	if block.BaseFeePerGas == "" {
		return big.NewInt(0), nil
	}
	baseFee, err := hexutil.DecodeBig(block.BaseFeePerGas)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", "failed to decode base fee", err)
	}
	return baseFee, nil
}

// GetFeeHistory retrieves each of the last blockCount blocks' 50th
// percentile priority fee via eth_feeHistory and returns their mean
// (2 Gwei when no reward data comes back).
func (r *RPCHelper) GetFeeHistory(ctx context.Context, blockCount int) (*big.Int, error) {
	result, err := r.client.Call(ctx, "eth_feeHistory", []interface{}{
		hexutil.EncodeUint64(uint64(blockCount)), "latest", []int{50},
	})
	if err != nil {
		return nil, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable, "eth_feeHistory RPC failed", nil, err)
	}
	var feeHistory struct {
		Reward [][]string `json:"reward"`
	}
	if err := json.Unmarshal(result, &feeHistory); err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", "failed to parse fee history", err)
	}
	if len(feeHistory.Reward) == 0 {
		return big.NewInt(2e9), nil
	}

	sum := big.NewInt(0)
	count := 0
	for _, rewards := range feeHistory.Reward {
		if len(rewards) > 0 {
			if priorityFee, err := hexutil.DecodeBig(rewards[0]); err == nil {
				sum.Add(sum, priorityFee)
				count++
			}
		}
	}
	if count == 0 {
		return big.NewInt(2e9), nil
	}
	return new(big.Int).Div(sum, big.NewInt(int64(count))), nil
}

// GetBlockNumber retrieves the current block number.
func (r *RPCHelper) GetBlockNumber(ctx context.Context) (uint64, error) {
	result, err := r.client.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable, "eth_blockNumber RPC failed", nil, err)
	}
	var blockHex string
	if err := json.Unmarshal(result, &blockHex); err != nil {
		return 0, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", "failed to parse block number", err)
	}
	return hexutil.DecodeUint64(blockHex)
}

// SendRawTransaction submits a 0x-prefixed raw signed transaction via
// eth_sendRawTransaction and returns the transaction hash.
func (r *RPCHelper) SendRawTransaction(ctx context.Context, rawTxHex string) (string, error) {
	result, err := r.client.Call(ctx, "eth_sendRawTransaction", []interface{}{rawTxHex})
	if err != nil {
		return "", chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable,
			fmt.Sprintf("eth_sendRawTransaction RPC failed: %s", err.Error()), nil, err)
	}
	var txHash string
	if err := json.Unmarshal(result, &txHash); err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_RPC_PARSE", "failed to parse sent tx hash", err)
	}
	return txHash, nil
}

// TransactionResult is the subset of eth_getTransactionByHash's response
// the confirmation tracker needs.
type TransactionResult struct {
	Hash        string `json:"hash"`
	BlockNumber string `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
}

// GetTransactionByHash looks up a transaction by hash. Returns nil, nil
// if the node has not seen it (still pending propagation, or unknown).
func (r *RPCHelper) GetTransactionByHash(ctx context.Context, txHash string) (*TransactionResult, error) {
	result, err := r.client.Call(ctx, "eth_getTransactionByHash", []interface{}{txHash})
	if err != nil {
		return nil, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable,
			fmt.Sprintf("eth_getTransactionByHash RPC failed: %s", err.Error()), nil, err)
	}
	if string(result) == "null" {
		return nil, nil
	}
	var tx TransactionResult
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", "failed to parse transaction", err)
	}
	return &tx, nil
}

// ReceiptResult is the subset of eth_getTransactionReceipt's response
// needed to classify a release transaction's outcome.
type ReceiptResult struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
	BlockHash   string `json:"blockHash"`
}

// GetTransactionReceipt looks up a transaction's receipt. Returns
// nil, nil if the transaction has not yet been mined.
func (r *RPCHelper) GetTransactionReceipt(ctx context.Context, txHash string) (*ReceiptResult, error) {
	result, err := r.client.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash})
	if err != nil {
		return nil, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable,
			fmt.Sprintf("eth_getTransactionReceipt RPC failed: %s", err.Error()), nil, err)
	}
	if string(result) == "null" {
		return nil, nil
	}
	var receipt ReceiptResult
	if err := json.Unmarshal(result, &receipt); err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", "failed to parse receipt", err)
	}
	return &receipt, nil
}

// GetTransactionReceiptStatus reports whether txHash has been mined and,
// if so, whether it succeeded, satisfying
// internal/confirm.ReceiptSource for multi-provider consensus polling.
func (r *RPCHelper) GetTransactionReceiptStatus(ctx context.Context, txHash string) (mined bool, success bool, err error) {
	receipt, err := r.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return false, false, err
	}
	if receipt == nil {
		return false, false, nil
	}
	return true, receipt.Status == "0x1", nil
}

// LogEntry is one eth_getLogs result: a deposit event the port contract
// emitted, decoded by the caller against its known topic0 signature.
type LogEntry struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	TransactionHash string   `json:"transactionHash"`
	BlockNumber     string   `json:"blockNumber"`
}

// GetLogs retrieves logs matching address and topic0 between fromBlock
// and "latest", used by ObserveDeposits to scan the port contract's
// deposit event.
func (r *RPCHelper) GetLogs(ctx context.Context, address string, topic0 string, fromBlock uint64) ([]LogEntry, error) {
	filter := map[string]interface{}{
		"address":   address,
		"topics":    []interface{}{topic0},
		"fromBlock": hexutil.EncodeUint64(fromBlock),
		"toBlock":   "latest",
	}
	result, err := r.client.Call(ctx, "eth_getLogs", []interface{}{filter})
	if err != nil {
		return nil, chainadapter.NewRetryableError(chainadapter.ErrCodeRPCUnavailable,
			fmt.Sprintf("eth_getLogs RPC failed: %s", err.Error()), nil, err)
	}
	var logs []LogEntry
	if err := json.Unmarshal(result, &logs); err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_RPC_PARSE", "failed to parse logs", err)
	}
	return logs, nil
}
