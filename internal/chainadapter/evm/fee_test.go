package evm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
)

func TestFeeEstimatorFallsBackWhenRPCUnavailable(t *testing.T) {
	estimator := NewFeeEstimator(NewRPCHelper(newMockRPCClient()), 1)

	req := &chainadapter.ReleaseRequest{FeeSpeed: chainadapter.FeeSpeedNormal}
	estimate, err := estimator.Estimate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 50, estimate.Confidence)
	require.True(t, estimate.MinFee.Cmp(estimate.Recommended) <= 0)
	require.True(t, estimate.Recommended.Cmp(estimate.MaxFee) <= 0)
}

func TestFeeEstimatorUsesBaseFeeWhenAvailable(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("eth_getBlockByNumber", map[string]interface{}{"baseFeePerGas": "0x77359400"}) // 2e9
	rpcClient.set("eth_feeHistory", map[string]interface{}{"reward": [][]string{{"0x77359400"}}})

	estimator := NewFeeEstimator(NewRPCHelper(rpcClient), 1)
	req := &chainadapter.ReleaseRequest{FeeSpeed: chainadapter.FeeSpeedFast}

	estimate, err := estimator.Estimate(context.Background(), req)
	require.NoError(t, err)
	require.True(t, estimate.Recommended.Sign() > 0)
}
