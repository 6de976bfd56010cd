package dogecoin

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/octopus-network/omnity-bridge-core/internal/addressderiver"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/signer"
)

// Adapter implements chainadapter.Capability for Dogecoin.
type Adapter struct {
	rpcClient    rpc.RPCClient
	txStore      storage.TransactionStateStore
	chainID      string
	network      string
	depositAddr  string
	builder      *TransactionBuilder
	rpcHelper    *RPCHelper
	feeEstimator *FeeEstimator
	signer       signer.Signer
}

// NewAdapter creates a new Dogecoin Capability implementation.
func NewAdapter(rpcClient rpc.RPCClient, txStore storage.TransactionStateStore, network string, depositAddr string, sign signer.Signer) (*Adapter, error) {
	chainID := "Dogecoin"
	if network == "testnet" {
		chainID = "Dogecoin-testnet"
	}

	builder, err := NewTransactionBuilder(network, depositAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction builder: %w", err)
	}
	rpcHelper := NewRPCHelper(rpcClient)

	return &Adapter{
		rpcClient:    rpcClient,
		txStore:      txStore,
		chainID:      chainID,
		network:      network,
		depositAddr:  depositAddr,
		builder:      builder,
		rpcHelper:    rpcHelper,
		feeEstimator: NewFeeEstimator(0),
		signer:       sign,
	}, nil
}

var _ chainadapter.Capability = (*Adapter)(nil)

// ChainID returns the unique identifier for this Dogecoin network.
func (d *Adapter) ChainID() string { return d.chainID }

// Capabilities returns the feature flags supported by the Dogecoin adapter.
func (d *Adapter) Capabilities() *chainadapter.Capabilities {
	return &chainadapter.Capabilities{
		ChainID:               d.chainID,
		InterfaceVersion:      "1.0.0",
		SupportsEIP1559:       false,
		SupportsMemo:          true,
		SupportsMultiSig:      true,
		SupportsFeeDelegation: false,
		SupportsWebSocket:     false,
		SupportsRBF:           false, // Dogecoin Core does not implement BIP 125
		MaxMemoLength:         80,
		MinConfirmations:      40, // 1-minute blocks; customs/doge's documented safe depth
	}
}

// DeriveAddress derives the P2PKH deposit address for dest.
func (d *Adapter) DeriveAddress(ctx context.Context, dest domain.Destination) (string, error) {
	path := addressderiver.Path(dest)
	pub, err := d.signer.PublicKey(ctx, path)
	if err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_KEY_DERIVATION", fmt.Sprintf("failed to derive public key: %s", err.Error()), err)
	}
	addr, err := addressderiver.Dogecoin(pub)
	if err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_ADDRESS_ENCODING", fmt.Sprintf("failed to derive dogecoin address: %s", err.Error()), err)
	}
	return addr, nil
}

// ObserveDeposits scans the customs deposit-collection address for
// UTXOs. Unlike Bitcoin's native/Runes path, a real customs/doge
// deployment additionally requires each candidate to carry a
// DepositProof (see merkle.go) before it is trusted enough to mint a
// ticket against; that validation happens one layer up, in the deposit
// observer, which treats this method's output as unverified candidates.
func (d *Adapter) ObserveDeposits(ctx context.Context) ([]domain.GenTicketRequest, error) {
	utxos, err := d.rpcHelper.ListUnspent(ctx, d.depositAddr)
	if err != nil {
		return nil, err
	}
	requests := make([]domain.GenTicketRequest, 0, len(utxos))
	for _, u := range utxos {
		requests = append(requests, domain.GenTicketRequest{
			Txid:       fmt.Sprintf("%s:%d", u.Txid, u.Vout),
			NewUtxos:   []domain.Utxo{u},
			ReceivedAt: time.Now().Unix(),
			Status:     domain.GenTicketPending,
		})
	}
	return requests, nil
}

// BuildReleaseTx constructs an unsigned Dogecoin release transaction.
func (d *Adapter) BuildReleaseTx(ctx context.Context, req *chainadapter.ReleaseRequest, availableUtxos []domain.Utxo) (*chainadapter.UnsignedTransaction, error) {
	if len(availableUtxos) == 0 {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInsufficientFunds, "no UTXOs available for release", nil)
	}

	estimate, err := d.feeEstimator.Estimate(ctx, req)
	if err != nil {
		return nil, err
	}
	const assumedSize = 250
	feeRate := estimate.Recommended.Int64() / assumedSize
	if feeRate <= 0 {
		feeRate = 2
	}

	unsigned, err := d.builder.Build(ctx, req, availableUtxos, feeRate)
	if err != nil {
		return nil, err
	}
	unsigned.ChainID = d.chainID
	return unsigned, nil
}

// Estimate calculates Dogecoin fee estimates.
func (d *Adapter) Estimate(ctx context.Context, req *chainadapter.ReleaseRequest) (*chainadapter.FeeEstimate, error) {
	estimate, err := d.feeEstimator.Estimate(ctx, req)
	if err != nil {
		return nil, err
	}
	estimate.ChainID = d.chainID
	return estimate, nil
}

// Sign signs an unsigned Dogecoin transaction through the threshold signer.
func (d *Adapter) Sign(ctx context.Context, unsigned *chainadapter.UnsignedTransaction, sign chainadapter.Signer) (*chainadapter.SignedTransaction, error) {
	if unsigned.ChainID != d.chainID {
		return nil, chainadapter.NewNonRetryableError("ERR_CHAIN_MISMATCH", fmt.Sprintf("chain mismatch: unsigned tx for %s, adapter for %s", unsigned.ChainID, d.chainID), nil)
	}
	if len(unsigned.SigningPayload) == 0 {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_PAYLOAD", "SigningPayload is empty", nil)
	}

	digest := doubleSHA256(unsigned.SigningPayload)
	path := addressderiver.Path(domain.ChangeDestination)
	signature, err := sign.Sign(ctx, digest, path)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_SIGNING_FAILED", fmt.Sprintf("signing failed: %v", err), err)
	}

	serializedTx := unsigned.SigningPayload
	txHash := ComputeTransactionHash(serializedTx)

	return &chainadapter.SignedTransaction{
		UnsignedTx:   unsigned,
		Signature:    signature,
		SignedBy:     unsigned.From,
		TxHash:       txHash,
		SerializedTx: serializedTx,
		SignedAt:     unsigned.CreatedAt,
	}, nil
}

// Broadcast submits a signed Dogecoin transaction, idempotently.
func (d *Adapter) Broadcast(ctx context.Context, signed *chainadapter.SignedTransaction) (*chainadapter.BroadcastReceipt, error) {
	if signed == nil || len(signed.SerializedTx) == 0 {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_INPUT", "signed transaction is empty", nil)
	}
	txHash := signed.TxHash

	if d.txStore != nil {
		if existing, err := d.txStore.Get(txHash); err == nil && existing != nil && existing.RetryCount > 0 {
			return &chainadapter.BroadcastReceipt{TxHash: txHash, ChainID: d.chainID, SubmittedAt: existing.LastRetry}, nil
		}
	}

	txHex := fmt.Sprintf("%x", signed.SerializedTx)
	broadcastedHash, err := d.rpcHelper.SendRawTransaction(ctx, txHex)
	if err != nil {
		if contains(err.Error(), "already") {
			broadcastedHash = txHash
		} else {
			return nil, err
		}
	}
	if broadcastedHash != txHash {
		return nil, chainadapter.NewNonRetryableError("ERR_HASH_MISMATCH", fmt.Sprintf("broadcasted tx hash %s doesn't match signed tx hash %s", broadcastedHash, txHash), nil)
	}

	if d.txStore != nil {
		now := time.Now()
		state := &storage.TxState{TxHash: txHash, ChainID: d.chainID, RawTx: signed.SerializedTx, RetryCount: 1, FirstSeen: now, LastRetry: now, Status: storage.TxStatusPending}
		if existing, err := d.txStore.Get(txHash); err == nil && existing != nil {
			state.RetryCount = existing.RetryCount + 1
			state.FirstSeen = existing.FirstSeen
		}
		_ = d.txStore.Set(txHash, state)
	}
	return &chainadapter.BroadcastReceipt{TxHash: txHash, ChainID: d.chainID, SubmittedAt: time.Now()}, nil
}

// ConfirmTx retrieves the current confirmation status of a Dogecoin transaction.
func (d *Adapter) ConfirmTx(ctx context.Context, txHash string) (*chainadapter.TransactionStatus, error) {
	txResult, err := d.rpcHelper.GetRawTransaction(ctx, txHash, true)
	if err != nil {
		return nil, err
	}

	var status chainadapter.TxStatus
	var blockNumber *uint64
	var blockHash *string

	switch {
	case txResult.Confirmations == 0:
		status = chainadapter.TxStatusPending
	case txResult.Confirmations >= d.Capabilities().MinConfirmations:
		status = chainadapter.TxStatusFinalized
	default:
		status = chainadapter.TxStatusConfirmed
	}

	if txResult.BlockHash != "" {
		blockHash = &txResult.BlockHash
		if blockResult, err := d.rpcHelper.GetBlock(ctx, txResult.BlockHash, 1); err == nil {
			h := uint64(blockResult.Height)
			blockNumber = &h
		}
	}

	return &chainadapter.TransactionStatus{
		TxHash:        txHash,
		Status:        status,
		Confirmations: txResult.Confirmations,
		BlockNumber:   blockNumber,
		BlockHash:     blockHash,
		UpdatedAt:     time.Now(),
	}, nil
}

// SubscribeStatus streams Dogecoin transaction status updates via HTTP
// polling, at a faster cadence than Bitcoin's since Dogecoin blocks
// land roughly ten times more often.
func (d *Adapter) SubscribeStatus(ctx context.Context, txHash string) (<-chan *chainadapter.TransactionStatus, error) {
	statusChan := make(chan *chainadapter.TransactionStatus, 10)

	initialStatus, err := d.ConfirmTx(ctx, txHash)
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
		pollInterval := 5 * time.Second
		maxPollInterval := 30 * time.Second
		errorBackoff := 5 * time.Second

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := d.ConfirmTx(ctx, txHash)
				if err != nil {
					ticker.Reset(errorBackoff)
					if errorBackoff < maxPollInterval {
						errorBackoff *= 2
					}
					continue
				}
				errorBackoff = 5 * time.Second

				if status.Status != lastStatus || status.Confirmations != lastConfirmations {
					lastStatus = status.Status
					lastConfirmations = status.Confirmations
					select {
					case statusChan <- status:
					case <-ctx.Done():
						return
					default:
					}
					if status.Status == chainadapter.TxStatusFinalized {
						ticker.Reset(maxPollInterval)
					}
				}
			}
		}
	}()

	return statusChan, nil
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && findSubstring(s, substr)
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func doubleSHA256(data []byte) []byte {
	h1 := sha256.Sum256(data)
	h2 := sha256.Sum256(h1[:])
	return h2[:]
}
