package bitcoin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
)

func TestFeeEstimatorFallsBackWhenRPCUnavailable(t *testing.T) {
	rpcHelper := NewRPCHelper(newMockRPCClient())
	estimator := NewFeeEstimator(rpcHelper, "mainnet")

	req := &chainadapter.ReleaseRequest{FeeSpeed: chainadapter.FeeSpeedNormal}
	estimate, err := estimator.Estimate(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 50, estimate.Confidence)
	require.True(t, estimate.MinFee.Cmp(estimate.Recommended) <= 0)
	require.True(t, estimate.Recommended.Cmp(estimate.MaxFee) <= 0)
}

func TestFeeEstimatorUsesSmartFeeWhenAvailable(t *testing.T) {
	rpcClient := newMockRPCClient()
	rpcClient.set("estimatesmartfee", EstimateSmartFeeResult{FeeRate: 0.0002})

	estimator := NewFeeEstimator(NewRPCHelper(rpcClient), "mainnet")
	req := &chainadapter.ReleaseRequest{FeeSpeed: chainadapter.FeeSpeedFast}

	estimate, err := estimator.Estimate(context.Background(), req)
	require.NoError(t, err)
	require.True(t, estimate.Recommended.Sign() > 0)
}
