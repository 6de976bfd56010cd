// Package evm - fee estimation for EIP-1559 (baseFee + priority fee).
package evm

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter/feewindow"
)

// FeeEstimator estimates release-transaction fees using EIP-1559
// (baseFee + eth_feeHistory priority fee).
type FeeEstimator struct {
	rpcHelper *RPCHelper
	chainID   uint64

	// baseFeeWindow holds the last 100 observed base-fee (Gwei)
	// datapoints, giving the fallback path a recently-observed value;
	// with no history yet it uses the window's 30 Gwei default.
	baseFeeWindow *feewindow.Window
}

// NewFeeEstimator creates a new EVM fee estimator.
func NewFeeEstimator(rpcHelper *RPCHelper, chainID uint64) *FeeEstimator {
	return &FeeEstimator{rpcHelper: rpcHelper, chainID: chainID, baseFeeWindow: feewindow.New(feewindow.DefaultCapacity, 30)}
}

// Estimate calculates fee estimates with confidence bounds.
//
// Strategy:
// 1. Get current base fee from latest block
// 2. Get priority fee from eth_feeHistory (50th percentile)
// 3. Apply multipliers based on FeeSpeed
// 4. Calculate min/max bounds with confidence
func (f *FeeEstimator) Estimate(ctx context.Context, req *chainadapter.ReleaseRequest) (*chainadapter.FeeEstimate, error) {
	baseFee, err := f.rpcHelper.GetBaseFee(ctx)
	if err != nil {
		return f.fallbackEstimate(req.FeeSpeed), nil
	}
	f.baseFeeWindow.Push(float64(new(big.Int).Div(baseFee, big.NewInt(1e9)).Int64()))

	priorityFee, err := f.rpcHelper.GetFeeHistory(ctx, 10)
	if err != nil {
		priorityFee = big.NewInt(2e9)
	}

	var baseMultiplier, priorityMultiplier int64
	var estimatedBlocks int

	switch req.FeeSpeed {
	case chainadapter.FeeSpeedFast:
		baseMultiplier, priorityMultiplier, estimatedBlocks = 3, 3, 1
	case chainadapter.FeeSpeedNormal:
		baseMultiplier, priorityMultiplier, estimatedBlocks = 2, 2, 3
	case chainadapter.FeeSpeedSlow:
		baseMultiplier, priorityMultiplier, estimatedBlocks = 1, 1, 6
	default:
		baseMultiplier, priorityMultiplier, estimatedBlocks = 2, 2, 3
	}

	maxFeePerGas := new(big.Int).Mul(baseFee, big.NewInt(baseMultiplier))
	maxFeePerGas.Add(maxFeePerGas, new(big.Int).Mul(priorityFee, big.NewInt(priorityMultiplier)))

	minMaxFeePerGas := new(big.Int).Mul(maxFeePerGas, big.NewInt(80))
	minMaxFeePerGas.Div(minMaxFeePerGas, big.NewInt(100))

	maxMaxFeePerGas := new(big.Int).Mul(maxFeePerGas, big.NewInt(150))
	maxMaxFeePerGas.Div(maxMaxFeePerGas, big.NewInt(100))

	gasLimit := int64(21000)

	minFee := new(big.Int).Mul(minMaxFeePerGas, big.NewInt(gasLimit))
	recommendedFee := new(big.Int).Mul(maxFeePerGas, big.NewInt(gasLimit))
	maxFee := new(big.Int).Mul(maxMaxFeePerGas, big.NewInt(gasLimit))

	confidence := f.calculateConfidence(baseFee, priorityFee)
	reason := f.generateReason(confidence, baseFee, priorityFee)

	return &chainadapter.FeeEstimate{
		ChainID:         "evm",
		Timestamp:       time.Now(),
		MinFee:          minFee,
		MaxFee:          maxFee,
		Recommended:     recommendedFee,
		Confidence:      confidence,
		Reason:          reason,
		EstimatedBlocks: estimatedBlocks,
		BaseFee:         baseFee,
	}, nil
}

// calculateConfidence scores 0-100 based on base-fee and priority-fee
// congestion signals.
func (f *FeeEstimator) calculateConfidence(baseFee, priorityFee *big.Int) int {
	confidence := 80

	baseFeeGwei := new(big.Int).Div(baseFee, big.NewInt(1e9))
	if baseFeeGwei.Cmp(big.NewInt(100)) > 0 {
		confidence -= 15
	} else if baseFeeGwei.Cmp(big.NewInt(50)) > 0 {
		confidence -= 10
	}

	priorityFeeGwei := new(big.Int).Div(priorityFee, big.NewInt(1e9))
	if priorityFeeGwei.Cmp(big.NewInt(10)) > 0 {
		confidence -= 10
	} else if priorityFeeGwei.Cmp(big.NewInt(5)) > 0 {
		confidence -= 5
	}

	if confidence < 50 {
		confidence = 50
	}
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func (f *FeeEstimator) generateReason(confidence int, baseFee, priorityFee *big.Int) string {
	baseFeeGwei := new(big.Int).Div(baseFee, big.NewInt(1e9))
	priorityFeeGwei := new(big.Int).Div(priorityFee, big.NewInt(1e9))

	switch {
	case confidence >= 80:
		return fmt.Sprintf("network stable, base fee %s Gwei, priority fee %s Gwei", baseFeeGwei, priorityFeeGwei)
	case confidence >= 65:
		return fmt.Sprintf("network conditions normal, base fee %s Gwei, priority fee %s Gwei", baseFeeGwei, priorityFeeGwei)
	case confidence >= 50:
		return fmt.Sprintf("network congested, base fee %s Gwei may fluctuate", baseFeeGwei)
	default:
		return "insufficient data for reliable estimate, using fallback rates"
	}
}

// fallbackEstimate returns conservative estimates when RPC is unavailable.
func (f *FeeEstimator) fallbackEstimate(speed chainadapter.FeeSpeed) *chainadapter.FeeEstimate {
	var priorityFeeGwei int64
	var estimatedBlocks int
	var percentile float64

	switch speed {
	case chainadapter.FeeSpeedFast:
		priorityFeeGwei, estimatedBlocks, percentile = 3, 1, 90
	case chainadapter.FeeSpeedSlow:
		priorityFeeGwei, estimatedBlocks, percentile = 1, 6, 10
	default:
		priorityFeeGwei, estimatedBlocks, percentile = 2, 3, 50
	}

	// Prefer a recently-observed base-fee percentile over the window's
	// default: if GetBaseFee has succeeded recently, its history beats
	// a static guess at network conditions.
	baseFeeGwei := int64(f.baseFeeWindow.Percentile(percentile))

	maxFeePerGas := big.NewInt((baseFeeGwei + priorityFeeGwei) * 1e9)
	gasLimit := int64(21000)

	minFee := new(big.Int).Mul(maxFeePerGas, big.NewInt(gasLimit))
	minFee.Mul(minFee, big.NewInt(80)).Div(minFee, big.NewInt(100))

	recommendedFee := new(big.Int).Mul(maxFeePerGas, big.NewInt(gasLimit))

	maxFee := new(big.Int).Mul(maxFeePerGas, big.NewInt(gasLimit))
	maxFee.Mul(maxFee, big.NewInt(150)).Div(maxFee, big.NewInt(100))

	return &chainadapter.FeeEstimate{
		ChainID:         "evm",
		Timestamp:       time.Now(),
		MinFee:          minFee,
		MaxFee:          maxFee,
		Recommended:     recommendedFee,
		Confidence:      50,
		Reason:          "using fallback estimates (RPC unavailable)",
		EstimatedBlocks: estimatedBlocks,
		BaseFee:         big.NewInt(baseFeeGwei * 1e9),
	}
}
