package cosmwasm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/octopus-network/omnity-bridge-core/internal/addressderiver"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/rpc"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/storage"
	"github.com/octopus-network/omnity-bridge-core/internal/domain"
	"github.com/octopus-network/omnity-bridge-core/internal/signer"
)

// Adapter implements chainadapter.Capability for a CosmWasm port-contract route.
type Adapter struct {
	client     *Client
	txStore    storage.TransactionStateStore
	chainID    string // this bridge's ChainID label, e.g. "CosmWasm-osmosis"
	cosmosHRP  string
	contractID string
	signer     signer.Signer
}

// NewAdapter creates a new CosmWasm Capability implementation.
func NewAdapter(rpcClient rpc.RPCClient, txStore storage.TransactionStateStore, chainID, cosmosChainID, cosmosHRP, contractID string, sign signer.Signer) *Adapter {
	return &Adapter{
		client:     NewClient(rpcClient, contractID, cosmosChainID),
		txStore:    txStore,
		chainID:    chainID,
		cosmosHRP:  cosmosHRP,
		contractID: contractID,
		signer:     sign,
	}
}

var _ chainadapter.Capability = (*Adapter)(nil)

// ChainID returns the unique identifier for this CosmWasm route.
func (a *Adapter) ChainID() string { return a.chainID }

// Capabilities returns the feature flags supported by this CosmWasm adapter.
func (a *Adapter) Capabilities() *chainadapter.Capabilities {
	return &chainadapter.Capabilities{
		ChainID:               a.chainID,
		InterfaceVersion:      "1.0.0",
		SupportsEIP1559:       false,
		SupportsMemo:          true,
		SupportsMultiSig:      false,
		SupportsFeeDelegation: true, // Cosmos SDK fee-grant module
		SupportsWebSocket:     true, // Tendermint RPC subscribe
		SupportsRBF:           false,
		MaxMemoLength:         256,
		MinConfirmations:      1, // Tendermint instant finality on block commit
	}
}

// DeriveAddress derives the customs's controlling Cosmos SDK account
// from the reserved change-destination path; like EVM/Solana this is a
// single-account chain family, not per-destination UTXO addressing.
func (a *Adapter) DeriveAddress(ctx context.Context, dest domain.Destination) (string, error) {
	path := addressderiver.Path(domain.ChangeDestination)
	pub, err := a.signer.PublicKey(ctx, path)
	if err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_KEY_DERIVATION", fmt.Sprintf("failed to derive public key: %s", err.Error()), err)
	}
	addr, err := addressderiver.Cosmos(pub, a.cosmosHRP)
	if err != nil {
		return "", chainadapter.NewNonRetryableError("ERR_ADDRESS_ENCODING", fmt.Sprintf("failed to derive cosmos address: %s", err.Error()), err)
	}
	return addr, nil
}

// ObserveDeposits is not implemented for the CosmWasm route: deposits
// arrive as RedeemRequested wasm events emitted by the port contract,
// scanned via Tendermint's tx_search, not via a self-poll loop the
// Capability interface models. A real deployment wires that scan into
// internal/confirm's event-topic dispatch alongside the EVM log scan;
// this adapter returns an empty set like the Solana route.
func (a *Adapter) ObserveDeposits(ctx context.Context) ([]domain.GenTicketRequest, error) {
	return nil, nil
}

// BuildReleaseTx constructs an unsigned mint_token contract-exec call.
func (a *Adapter) BuildReleaseTx(ctx context.Context, req *chainadapter.ReleaseRequest, availableUtxos []domain.Utxo) (*chainadapter.UnsignedTransaction, error) {
	if req.Destination.Receiver == "" {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAddress, "receiver address is required", nil)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidAmount, "amount must be positive", nil)
	}

	fromAddr, err := a.DeriveAddress(ctx, req.Destination)
	if err != nil {
		return nil, err
	}

	msg := MintTokenExecMsg(req.TicketID, req.Destination.Token, req.Destination.Receiver, req.Amount.String())
	signBytes, err := CanonicalSignBytes(a.client.chainID, a.contractID, fromAddr, msg, nil)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError(chainadapter.ErrCodeInvalidTransaction, "failed to build exec-contract sign bytes", err)
	}

	return &chainadapter.UnsignedTransaction{
		ID:             req.TicketID,
		ChainID:        a.chainID,
		From:           fromAddr,
		To:             a.contractID,
		Amount:         req.Amount,
		Fee:            big.NewInt(0), // gas fee resolved by the chain's fee market, not modeled here
		SigningPayload: signBytes,
		HumanReadable:  fmt.Sprintf(`{"ticket_id":"%s","contract":"%s","mint_to":"%s","amount":"%s"}`, req.TicketID, a.contractID, req.Destination.Receiver, req.Amount.String()),
		ChainSpecific:  map[string]interface{}{"contract_id": a.contractID},
		CreatedAt:      time.Now(),
	}, nil
}

// Estimate returns a flat gas-fee placeholder; CosmWasm chains vary
// widely in gas price, and this module has no gas-price oracle wired in
// for any specific Cosmos chain.
func (a *Adapter) Estimate(ctx context.Context, req *chainadapter.ReleaseRequest) (*chainadapter.FeeEstimate, error) {
	flat := big.NewInt(5000)
	return &chainadapter.FeeEstimate{
		ChainID:         a.chainID,
		Timestamp:       time.Now(),
		MinFee:          flat,
		Recommended:     flat,
		MaxFee:          big.NewInt(20000),
		Confidence:      50,
		Reason:          "no per-chain gas price oracle wired in; flat placeholder",
		EstimatedBlocks: 1,
	}, nil
}

// Sign signs an unsigned CosmWasm exec-contract call through the
// threshold signer; Cosmos SDK's default key type is secp256k1, the
// same curve the shared Signer abstraction already produces.
func (a *Adapter) Sign(ctx context.Context, unsigned *chainadapter.UnsignedTransaction, sign chainadapter.Signer) (*chainadapter.SignedTransaction, error) {
	if unsigned.ChainID != a.chainID {
		return nil, chainadapter.NewNonRetryableError("ERR_CHAIN_MISMATCH", fmt.Sprintf("chain mismatch: unsigned tx for %s, adapter for %s", unsigned.ChainID, a.chainID), nil)
	}
	digest := sha256.Sum256(unsigned.SigningPayload)
	path := addressderiver.Path(domain.ChangeDestination)
	signature, err := sign.Sign(ctx, digest[:], path)
	if err != nil {
		return nil, chainadapter.NewNonRetryableError("ERR_SIGNING_FAILED", fmt.Sprintf("signing failed: %v", err), err)
	}

	serializedTx := append(append([]byte{}, unsigned.SigningPayload...), signature...)
	txHash := fmt.Sprintf("%x", sha256.Sum256(serializedTx))

	return &chainadapter.SignedTransaction{
		UnsignedTx:   unsigned,
		Signature:    signature,
		SignedBy:     unsigned.From,
		TxHash:       txHash,
		SerializedTx: serializedTx,
		SignedAt:     unsigned.CreatedAt,
	}, nil
}

// Broadcast submits a signed exec-contract call via broadcast_tx_sync.
func (a *Adapter) Broadcast(ctx context.Context, signed *chainadapter.SignedTransaction) (*chainadapter.BroadcastReceipt, error) {
	if signed == nil || len(signed.SerializedTx) == 0 {
		return nil, chainadapter.NewNonRetryableError("ERR_INVALID_INPUT", "signed transaction is empty", nil)
	}

	if a.txStore != nil {
		if existing, err := a.txStore.Get(signed.TxHash); err == nil && existing != nil && existing.RetryCount > 0 {
			return &chainadapter.BroadcastReceipt{TxHash: signed.TxHash, ChainID: a.chainID, SubmittedAt: existing.LastRetry}, nil
		}
	}

	txHash, err := a.client.BroadcastTxSync(ctx, signed.SerializedTx)
	if err != nil {
		return nil, err
	}

	if a.txStore != nil {
		now := time.Now()
		_ = a.txStore.Set(txHash, &storage.TxState{TxHash: txHash, ChainID: a.chainID, RawTx: signed.SerializedTx, RetryCount: 1, FirstSeen: now, LastRetry: now, Status: storage.TxStatusPending})
	}
	return &chainadapter.BroadcastReceipt{TxHash: txHash, ChainID: a.chainID, SubmittedAt: time.Now()}, nil
}

// ConfirmTx retrieves the current confirmation status of a CosmWasm tx.
func (a *Adapter) ConfirmTx(ctx context.Context, txHash string) (*chainadapter.TransactionStatus, error) {
	height, failed, found, err := a.client.QueryTx(ctx, txHash)
	if err != nil {
		return nil, err
	}

	var status chainadapter.TxStatus
	switch {
	case !found:
		status = chainadapter.TxStatusPending
	case failed:
		status = chainadapter.TxStatusFailed
	default:
		status = chainadapter.TxStatusFinalized // Tendermint consensus: one commit is final
	}

	var blockNumber *uint64
	if height > 0 {
		h := uint64(height)
		blockNumber = &h
	}

	return &chainadapter.TransactionStatus{
		TxHash:      txHash,
		Status:      status,
		BlockNumber: blockNumber,
		UpdatedAt:   time.Now(),
	}, nil
}

// SubscribeStatus streams CosmWasm tx status updates via HTTP polling.
func (a *Adapter) SubscribeStatus(ctx context.Context, txHash string) (<-chan *chainadapter.TransactionStatus, error) {
	statusChan := make(chan *chainadapter.TransactionStatus, 10)

	initialStatus, err := a.ConfirmTx(ctx, txHash)
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
		if initialStatus.Status == chainadapter.TxStatusFinalized || initialStatus.Status == chainadapter.TxStatusFailed {
			return
		}

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status, err := a.ConfirmTx(ctx, txHash)
				if err != nil {
					continue
				}
				if status.Status != chainadapter.TxStatusPending {
					select {
					case statusChan <- status:
					case <-ctx.Done():
					}
					return
				}
			}
		}
	}()

	return statusChan, nil
}

// VerifySignature verifies a compact (r||s) secp256k1 signature over a
// CosmWasm exec-contract call's sign bytes.
func VerifySignature(signBytes []byte, signature []byte, pubKeyBytes []byte) (bool, error) {
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("invalid public key: %w", err)
	}
	if len(signature) < 64 {
		return false, fmt.Errorf("signature too short: %d bytes", len(signature))
	}
	var rsBytes [64]byte
	copy(rsBytes[:], signature[:64])
	sig := ecdsa.NewSignature(
		new(btcec.ModNScalar).SetByteSlice(rsBytes[:32]),
		new(btcec.ModNScalar).SetByteSlice(rsBytes[32:64]),
	)
	digest := sha256.Sum256(signBytes)
	return sig.Verify(digest[:], pubKey), nil
}
