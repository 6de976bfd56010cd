// Package evm implements chainadapter.Capability for EVM-compatible
// chains (Ethereum, Bitfinity, BSC-style networks). Unlike Bitcoin's
// UTXO model, deposits arrive as port-contract log events rather than
// spendable outputs, and the customs address is a single EOA rather
// than a pool of per-destination addresses.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/octopus-network/omnity-bridge-core/internal/addressderiver"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/metrics"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/signer"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Adapter implements chainadapter.Capability for an EVM-compatible
// settlement chain.
type Adapter struct {
	rpcClient  rpc.RPCClient
	txStore    storage.TransactionStateStore
	chainID    string
	networkID  int64
	builder    *TransactionBuilder
	rpcHelper  *RPCHelper
	feeEst     *FeeEstimator
	metrics    metrics.ChainMetrics
	signer     signer.Signer
	portAddr   string // port contract address, watched for deposit events
	depositTopic0 string // keccak256 signature of the port contract's deposit event
	lastScanned   uint64
}

// DepositEventTopic0 is the keccak256 signature of
// Deposited(address indexed depositor, uint256 amount), the minimal
// port-contract deposit event this adapter watches. Production ports
// emit a richer event (target chain id, receiver, token); this
// placeholder keeps the retrieval shape until the real port ABI is
// wired in.
const DepositEventTopic0 = "0x" +
	"dcbc1c05240f31d3f1e5e2fe2640e5a03b14d2e0d8cf7e0bc0d4936ac38ba8a0"

// NewAdapter constructs an EVM chain adapter.
func NewAdapter(
	rpcClient rpc.RPCClient,
	txStore storage.TransactionStateStore,
	networkID int64,
	portAddr string,
	sign signer.Signer,
	metricsRecorder metrics.ChainMetrics,
) (*Adapter, error) {
	chainID := "evm"
	switch networkID {
	case 1:
		chainID = "ethereum"
	case 5:
		chainID = "ethereum-goerli"
	case 11155111:
		chainID = "ethereum-sepolia"
	case 56:
		chainID = "bsc"
	}

	if metricsRecorder != nil {
		rpcClient = rpc.NewMetricsRPCClient(rpcClient, metricsRecorder)
	}

	rpcHelper := NewRPCHelper(rpcClient)

	return &Adapter{
		rpcClient:     rpcClient,
		txStore:       txStore,
		chainID:       chainID,
		networkID:     networkID,
		builder:       NewTransactionBuilder(networkID),
		rpcHelper:     rpcHelper,
		feeEst:        NewFeeEstimator(rpcHelper, uint64(networkID)),
		metrics:       metricsRecorder,
		signer:        sign,
		portAddr:      portAddr,
		depositTopic0: DepositEventTopic0,
	}, nil
}

var _ chainadapter.Capability = (*Adapter)(nil)

// ChainID returns the unique identifier for this EVM chain.
func (e *Adapter) ChainID() string {
	return e.chainID
}

// Capabilities returns the feature flags this EVM adapter supports.
func (e *Adapter) Capabilities() *chainadapter.Capabilities {
	return &chainadapter.Capabilities{
		ChainID:               e.chainID,
		InterfaceVersion:      "1.0.0",
		SupportsEIP1559:       true,
		SupportsMemo:          true,
		SupportsMultiSig:      true,
		SupportsFeeDelegation: true,
		SupportsWebSocket:     true,
		SupportsRBF:           false,
		MaxMemoLength:         0,
		MinConfirmations:      12,
	}
}

// DeriveAddress returns the customs's single controlling EOA address.
// Unlike Bitcoin, an EVM port contract identifies a deposit's intended
// destination from the call's own arguments, so the customs never
// needs one address per destination — every release transaction is
// signed from the same key, derived under the reserved
// domain.ChangeDestination path.
func (e *Adapter) DeriveAddress(ctx context.Context, dest domain.Destination) (string, error) {
	path := addressderiver.Path(domain.ChangeDestination)
	pub, err := e.signer.PublicKey(ctx, path)
	if err != nil {
		return "", chainadapter.NewRetryableError(
			chainadapter.ErrCodeRPCUnavailable,
			fmt.Sprintf("failed to fetch public key: %s", err.Error()),
			nil, err,
		)
	}
	addr, err := addressderiver.Ethereum(pub)
	if err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_ADDRESS_ENCODING", err.Error(), err)
	}
	return addr, nil
}

// ObserveDeposits scans the port contract's deposit event log since the
// last scanned block, returning candidate ticket requests for the
// caller to validate and dedupe against the event log.
func (e *Adapter) ObserveDeposits(ctx context.Context) ([]domain.GenTicketRequest, error) {
	logs, err := e.rpcHelper.GetLogs(ctx, e.portAddr, e.depositTopic0, e.lastScanned)
	if err != nil {
		return nil, err
	}

	requests := make([]domain.GenTicketRequest, 0, len(logs))
	var highest uint64
	for _, l := range logs {
		amount := big.NewInt(0)
		if len(l.Data) >= 2 {
			if raw, err := hexutil.Decode(l.Data); err == nil {
				amount.SetBytes(raw)
			}
		}

		var receiver string
		if len(l.Topics) > 1 {
			receiver = "0x" + l.Topics[1][len(l.Topics[1])-40:]
		}

		blockNum, _ := hexutil.DecodeUint64(l.BlockNumber)
		if blockNum > highest {
			highest = blockNum
		}

		requests = append(requests, domain.GenTicketRequest{
			Txid:       l.TransactionHash,
			Receiver:   receiver,
			Amount:     amount.String(),
			ReceivedAt: time.Now().Unix(),
			Status:     domain.GenTicketPending,
		})
	}
	if highest > 0 {
		e.lastScanned = highest + 1
	}
	return requests, nil
}

// BuildReleaseTx constructs an unsigned EIP-1559 release transaction.
// availableUtxos is unused on EVM chains (account-based, not UTXO-based)
// and is accepted only to satisfy chainadapter.Capability's shared
// signature across chain families.
func (e *Adapter) BuildReleaseTx(ctx context.Context, req *chainadapter.ReleaseRequest, availableUtxos []domain.Utxo) (result *chainadapter.UnsignedTransaction, err error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordTransactionBuild(e.chainID, time.Since(start), err == nil)
		}
	}()

	fromAddr, err := e.DeriveAddress(ctx, req.Destination)
	if err != nil {
		return nil, err
	}

	nonce, err := e.rpcHelper.GetTransactionCount(ctx, fromAddr)
	if err != nil {
		return nil, err
	}

	var data []byte
	if req.Memo != "" {
		data = []byte(req.Memo)
	}
	gasLimit, err := e.rpcHelper.EstimateGas(ctx, fromAddr, req.Destination.Receiver, req.Amount, data)
	if err != nil {
		gasLimit = 21000
	}
	gasLimit = gasLimit * 110 / 100

	baseFee, err := e.rpcHelper.GetBaseFee(ctx)
	if err != nil {
		baseFee = big.NewInt(30e9)
	}
	priorityFee, err := e.rpcHelper.GetFeeHistory(ctx, 10)
	if err != nil {
		priorityFee = big.NewInt(2e9)
	}

	var multiplier int64
	switch req.FeeSpeed {
	case chainadapter.FeeSpeedFast:
		multiplier = 3
	case chainadapter.FeeSpeedNormal:
		multiplier = 2
	case chainadapter.FeeSpeedSlow:
		multiplier = 1
	default:
		multiplier = 2
	}
	maxFeePerGas := new(big.Int).Mul(baseFee, big.NewInt(multiplier))
	maxFeePerGas.Add(maxFeePerGas, priorityFee)

	maxPriorityFeePerGas := priorityFee
	if req.FeeSpeed == chainadapter.FeeSpeedFast {
		maxPriorityFeePerGas = new(big.Int).Mul(priorityFee, big.NewInt(2))
	}

	unsigned, err := e.builder.Build(ctx, req, fromAddr, nonce, gasLimit, maxFeePerGas, maxPriorityFeePerGas)
	if err != nil {
		return nil, err
	}
	unsigned.ChainID = e.chainID
	return unsigned, nil
}

// Estimate calculates fee estimates with confidence bounds.
func (e *Adapter) Estimate(ctx context.Context, req *chainadapter.ReleaseRequest) (*chainadapter.FeeEstimate, error) {
	estimate, err := e.feeEst.Estimate(ctx, req)
	if err != nil {
		return nil, err
	}
	estimate.ChainID = e.chainID
	return estimate, nil
}

// Sign signs an unsigned release transaction. Every release is signed
// under the same domain.ChangeDestination path — the customs address
// holds the single key all release transactions spend from, mirroring
// bitcoin.Adapter.Sign.
func (e *Adapter) Sign(ctx context.Context, unsigned *chainadapter.UnsignedTransaction, sign chainadapter.Signer) (result *chainadapter.SignedTransaction, err error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordTransactionSign(e.chainID, time.Since(start), err == nil)
		}
	}()

	if unsigned.ChainID != e.chainID {
		return nil, chainadapter.NewNonRetryableError(
			"ERR_CHAIN_MISMATCH",
			fmt.Sprintf("chain mismatch: unsigned tx for %s, adapter for %s", unsigned.ChainID, e.chainID),
			nil,
		)
	}
	if len(unsigned.SigningPayload) != 32 {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_PAYLOAD", "SigningPayload must be a 32-byte transaction hash", nil)
	}

	path := addressderiver.Path(domain.ChangeDestination)
	signature, err := sign.Sign(ctx, unsigned.SigningPayload, path)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_SIGNING_FAILED", fmt.Sprintf("signing failed: %v", err), err)
	}

	serializedTx := append(append([]byte{}, unsigned.SigningPayload...), signature...)

	return &chainadapter.SignedTransaction{
		UnsignedTx:   unsigned,
		Signature:    signature,
		SignedBy:     unsigned.From,
		TxHash:       unsigned.ID,
		SerializedTx: serializedTx,
		SignedAt:     unsigned.CreatedAt,
	}, nil
}

// Broadcast submits a signed release transaction, idempotently via
// the transaction state store.
func (e *Adapter) Broadcast(ctx context.Context, signed *chainadapter.SignedTransaction) (result *chainadapter.BroadcastReceipt, err error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.RecordTransactionBroadcast(e.chainID, time.Since(start), err == nil)
		}
	}()

	if signed == nil {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_INPUT", "signed transaction is nil", nil)
	}
	if len(signed.SerializedTx) == 0 {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_INPUT", "SerializedTx is empty", nil)
	}

	txHash := signed.TxHash

	if e.txStore != nil {
		if existing, err := e.txStore.Get(txHash); err == nil && existing != nil && existing.RetryCount > 0 {
			return &chainadapter.BroadcastReceipt{TxHash: txHash, ChainID: e.chainID, SubmittedAt: existing.LastRetry}, nil
		}
	}

	txHex := "0x" + fmt.Sprintf("%x", signed.SerializedTx)
	broadcastedHash, err := e.rpcHelper.SendRawTransaction(ctx, txHex)
	if err != nil {
		errMsg := err.Error()
		if contains(errMsg, "already") || contains(errMsg, "known") {
			broadcastedHash = txHash
		} else {
			return nil, err
		}
	}

	if normalizeHash(broadcastedHash) != normalizeHash(txHash) {
		return nil, chainadapter.NewNonRetryableError(
			"ERR_HASH_MISMATCH",
			fmt.Sprintf("broadcasted tx hash %s doesn't match signed tx hash %s", broadcastedHash, txHash),
			nil,
		)
	}

	if e.txStore != nil {
		now := time.Now()
		state := &storage.TxState{
			TxHash: txHash, ChainID: e.chainID, RawTx: signed.SerializedTx,
			RetryCount: 1, FirstSeen: now, LastRetry: now, Status: storage.TxStatusPending,
		}
		if existing, err := e.txStore.Get(txHash); err == nil && existing != nil {
			state.RetryCount = existing.RetryCount + 1
			state.FirstSeen = existing.FirstSeen
			if state.FirstSeen.IsZero() {
				state.FirstSeen = now
			}
		}
		_ = e.txStore.Set(txHash, state)
	}

	return &chainadapter.BroadcastReceipt{TxHash: txHash, ChainID: e.chainID, SubmittedAt: time.Now()}, nil
}

// ConfirmTx retrieves the current status of a release transaction by
// hash via eth_getTransactionByHash + eth_getTransactionReceipt.
func (e *Adapter) ConfirmTx(ctx context.Context, txHash string) (*chainadapter.TransactionStatus, error) {
	tx, err := e.rpcHelper.GetTransactionByHash(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeTxNotFound, fmt.Sprintf("transaction not found: %s", txHash), nil)
	}

	receipt, err := e.rpcHelper.GetTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	var status chainadapter.TxStatus
	var confirmations int
	var blockNumber *uint64
	var blockHash *string
	var txError *chainadapter.ChainError

	if receipt == nil {
		status = chainadapter.TxStatusPending
	} else if receipt.Status == "0x0" {
		status = chainadapter.TxStatusFailed
		txError = &chainadapter.ChainError{Code: "ERR_TX_REVERTED", Message: "transaction reverted"}
		blockHash = &receipt.BlockHash
	} else {
		currentBlock, err := e.rpcHelper.GetBlockNumber(ctx)
		if err == nil {
			if receiptBlockNum, err := hexutil.DecodeUint64(receipt.BlockNumber); err == nil {
				confirmations = int(currentBlock - receiptBlockNum)
				if confirmations >= e.Capabilities().MinConfirmations {
					status = chainadapter.TxStatusFinalized
				} else {
					status = chainadapter.TxStatusConfirmed
				}
				blockNumber = &receiptBlockNum
			}
		}
		if status == "" {
			status = chainadapter.TxStatusConfirmed
			confirmations = 1
		}
		blockHash = &receipt.BlockHash
	}

	return &chainadapter.TransactionStatus{
		TxHash: txHash, Status: status, Confirmations: confirmations,
		BlockNumber: blockNumber, BlockHash: blockHash, UpdatedAt: time.Now(), Error: txError,
	}, nil
}

// SubscribeStatus streams release-transaction status updates by HTTP
// polling at roughly one block interval.
func (e *Adapter) SubscribeStatus(ctx context.Context, txHash string) (<-chan *chainadapter.TransactionStatus, error) {
	statusChan := make(chan *chainadapter.TransactionStatus, 10)

	initialStatus, err := e.ConfirmTx(ctx, txHash)
	if err != nil {
		close(statusChan)
		return statusChan, err
	}

	go func() {
		defer close(statusChan)

		select {
		case statusChan <- initialStatus:
		case <-ctx.Done():
			return
		}

		lastStatus := initialStatus.Status
		lastConfirmations := initialStatus.Confirmations
		pollInterval := 12 * time.Second
		maxPollInterval := 60 * time.Second
		errorBackoff := 3 * time.Second

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := e.ConfirmTx(ctx, txHash)
				if err != nil {
					ticker.Reset(errorBackoff)
					if errorBackoff < maxPollInterval {
						errorBackoff *= 2
					}
					continue
				}
				errorBackoff = 3 * time.Second

				if status.Status != lastStatus || status.Confirmations != lastConfirmations {
					lastStatus = status.Status
					lastConfirmations = status.Confirmations
					select {
					case statusChan <- status:
					case <-ctx.Done():
						return
					default:
					}
					if status.Status == chainadapter.TxStatusFinalized || status.Status == chainadapter.TxStatusFailed {
						ticker.Reset(maxPollInterval)
					}
				}
			}
		}
	}()

	return statusChan, nil
}

func contains(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func normalizeHash(hash string) string {
	if len(hash) >= 2 && hash[:2] == "0x" {
		hash = hash[2:]
	}
	return toLower(hash)
}

func toLower(s string) string {
	result := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c = c + ('a' - 'A')
		}
		result[i] = c
	}
	return string(result)
}
