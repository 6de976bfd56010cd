package solana

import (
	"context"
	"encoding/base64"
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
)

// Adapter implements chainadapter.Capability for Solana-family routes.
type Adapter struct {
	rpcHelper *RPCHelper
	txStore   storage.TransactionStateStore
	chainID   string
	builder   *TransactionBuilder
	signer    signer.Signer
	metrics   metrics.ChainMetrics
}

// NewAdapter creates a new Solana Capability implementation.
func NewAdapter(rpcClient rpc.RPCClient, txStore storage.TransactionStateStore, sign signer.Signer, metricsRecorder metrics.ChainMetrics) (*Adapter, error) {
	if metricsRecorder == nil {
		metricsRecorder = &metrics.NoOpMetrics{}
	}
	return &Adapter{
		rpcHelper: NewRPCHelper(rpcClient),
		txStore:   txStore,
		chainID:   "Solana",
		builder:   NewTransactionBuilder(),
		signer:    sign,
		metrics:   metricsRecorder,
	}, nil
}

var _ chainadapter.Capability = (*Adapter)(nil)

// ChainID returns the unique identifier for Solana.
func (s *Adapter) ChainID() string { return s.chainID }

// Capabilities returns the feature flags supported by the Solana adapter.
func (s *Adapter) Capabilities() *chainadapter.Capabilities {
	return &chainadapter.Capabilities{
		ChainID:               s.chainID,
		InterfaceVersion:      "1.0.0",
		SupportsEIP1559:       false,
		SupportsMemo:          true, // Memo program
		SupportsMultiSig:      false,
		SupportsFeeDelegation: false,
		SupportsWebSocket:     true, // signatureSubscribe
		SupportsRBF:           false,
		MaxMemoLength:         566,
		MinConfirmations:      32, // finalized commitment, ~32 slots
	}
}

// DeriveAddress derives the customs's controlling Solana account from
// the reserved domain.ChangeDestination path — Solana, like EVM, is
// account-based, so there is no per-destination deposit address.
func (s *Adapter) DeriveAddress(ctx context.Context, dest domain.Destination) (string, error) {
	path := addressderiver.Path(domain.ChangeDestination)
	ecdsaPub, err := s.signer.PublicKey(ctx, path)
	if err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_KEY_DERIVATION", fmt.Sprintf("failed to derive public key: %s", err.Error()), err)
	}
	seed := deriveEd25519Seed(ecdsaPub, path)
	addr, err := addressderiver.Solana(publicKeyFromSeed(seed))
	if err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_ADDRESS_ENCODING", fmt.Sprintf("failed to derive solana address: %s", err.Error()), err)
	}
	return addr, nil
}

// ObserveDeposits is not implemented for the Solana route: deposits
// into a Solana-family route are driven by directive/ticket traffic
// from the hub (original_source/route/solana/src/handler/directive.rs
// polls the hub, it does not scan its own chain for deposits), so this
// always returns an empty set rather than an unsupported-operation
// error — a route legitimately has nothing to observe here.
func (s *Adapter) ObserveDeposits(ctx context.Context) ([]domain.GenTicketRequest, error) {
	return nil, nil
}

// BuildReleaseTx constructs an unsigned Solana release transaction.
func (s *Adapter) BuildReleaseTx(ctx context.Context, req *chainadapter.ReleaseRequest, availableUtxos []domain.Utxo) (*chainadapter.UnsignedTransaction, error) {
	fromAddr, err := s.DeriveAddress(ctx, req.Destination)
	if err != nil {
		return nil, err
	}
	blockhash, err := s.rpcHelper.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	unsigned, err := s.builder.Build(ctx, req, fromAddr, blockhash)
	if err != nil {
		return nil, err
	}
	unsigned.ChainID = s.chainID
	return unsigned, nil
}

// Estimate returns Solana's flat per-signature fee; Solana has no
// fee market comparable to Bitcoin/EVM's, so this does not need the
// shared feewindow estimator the UTXO/EVM chains use.
func (s *Adapter) Estimate(ctx context.Context, req *chainadapter.ReleaseRequest) (*chainadapter.FeeEstimate, error) {
	flat := big.NewInt(5000)
	return &chainadapter.FeeEstimate{
		ChainID:         s.chainID,
		Timestamp:       time.Now(),
		MinFee:          flat,
		Recommended:     flat,
		MaxFee:          flat,
		Confidence:      100,
		Reason:          "Solana charges a flat 5000 lamport fee per signature",
		EstimatedBlocks: 1,
	}, nil
}

// Sign signs an unsigned Solana transaction through the threshold
// signer's Ed25519 derivation.
func (s *Adapter) Sign(ctx context.Context, unsigned *chainadapter.UnsignedTransaction, sign chainadapter.Signer) (*chainadapter.SignedTransaction, error) {
	if unsigned.ChainID != s.chainID {
		return nil, chainadapter.NewNonRetryableError("ERR_CHAIN_MISMATCH", fmt.Sprintf("chain mismatch: unsigned tx for %s, adapter for %s", unsigned.ChainID, s.chainID), nil)
	}
	path := addressderiver.Path(domain.ChangeDestination)
	ecdsaPub, err := s.signer.PublicKey(ctx, path)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_KEY_DERIVATION", err.Error(), err)
	}
	seed := deriveEd25519Seed(ecdsaPub, path)
	signature := signEd25519(seed, unsigned.SigningPayload)

	// Solana's wire format prefixes a compact-array signature count
	// before each 64-byte signature; with exactly one signer this is a
	// single 0x01 byte, followed by the signature, followed by the
	// signed message.
	serializedTx := append(append([]byte{0x01}, signature...), unsigned.SigningPayload...)
	txHash := base64.StdEncoding.EncodeToString(serializedTx)

	return &chainadapter.SignedTransaction{
		UnsignedTx:   unsigned,
		Signature:    signature,
		SignedBy:     unsigned.From,
		TxHash:       txHash,
		SerializedTx: serializedTx,
		SignedAt:     unsigned.CreatedAt,
	}, nil
}

// Broadcast submits a signed Solana transaction.
func (s *Adapter) Broadcast(ctx context.Context, signed *chainadapter.SignedTransaction) (*chainadapter.BroadcastReceipt, error) {
	if signed == nil || len(signed.SerializedTx) == 0 {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_INPUT", "signed transaction is empty", nil)
	}

	if s.txStore != nil {
		if existing, err := s.txStore.Get(signed.TxHash); err == nil && existing != nil && existing.RetryCount > 0 {
			return &chainadapter.BroadcastReceipt{TxHash: signed.TxHash, ChainID: s.chainID, SubmittedAt: existing.LastRetry}, nil
		}
	}

	b64 := base64.StdEncoding.EncodeToString(signed.SerializedTx)
	sig, err := s.rpcHelper.SendRawTransaction(ctx, b64)
	if err != nil {
		return nil, err
	}

	if s.txStore != nil {
		now := time.Now()
		_ = s.txStore.Set(sig, &storage.TxState{TxHash: sig, ChainID: s.chainID, RawTx: signed.SerializedTx, RetryCount: 1, FirstSeen: now, LastRetry: now, Status: storage.TxStatusPending})
	}

	return &chainadapter.BroadcastReceipt{TxHash: sig, ChainID: s.chainID, SubmittedAt: time.Now()}, nil
}

// ConfirmTx retrieves the current confirmation status of a Solana signature.
func (s *Adapter) ConfirmTx(ctx context.Context, txHash string) (*chainadapter.TransactionStatus, error) {
	confStatus, slot, failed, err := s.rpcHelper.GetSignatureStatus(ctx, txHash)
	if err != nil {
		return nil, err
	}

	var status chainadapter.TxStatus
	switch {
	case failed:
		status = chainadapter.TxStatusFailed
	case confStatus == "":
		status = chainadapter.TxStatusPending
	case confStatus == "finalized":
		status = chainadapter.TxStatusFinalized
	default:
		status = chainadapter.TxStatusConfirmed
	}

	var blockNumber *uint64
	if slot > 0 {
		blockNumber = &slot
	}

	return &chainadapter.TransactionStatus{
		TxHash:      txHash,
		Status:      status,
		BlockNumber: blockNumber,
		UpdatedAt:   time.Now(),
	}, nil
}

// SubscribeStatus streams Solana signature status updates via HTTP polling.
func (s *Adapter) SubscribeStatus(ctx context.Context, txHash string) (<-chan *chainadapter.TransactionStatus, error) {
	statusChan := make(chan *chainadapter.TransactionStatus, 10)

	initialStatus, err := s.ConfirmTx(ctx, txHash)
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
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := s.ConfirmTx(ctx, txHash)
				if err != nil {
					continue
				}
				if status.Status != lastStatus {
					lastStatus = status.Status
					select {
					case statusChan <- status:
					case <-ctx.Done():
						return
					default:
					}
					if status.Status == chainadapter.TxStatusFinalized || status.Status == chainadapter.TxStatusFailed {
						return
					}
				}
			}
		}
	}()

	return statusChan, nil
}
