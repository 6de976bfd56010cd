package dogecoin

import (
	"context"
	"math/big"
	"time"

	"github.com/octopus-network/omnity-bridge-core/internal/chainadapter"
)

// FeeEstimator estimates Dogecoin release fees. Dogecoin Core's
// estimatesmartfee is notoriously unreliable on mainnet (blocks are
// mined every minute and miners rarely enforce a fee market), so unlike
// Bitcoin's estimator this one is deliberately a flat, governance-set
// rate rather than a mempool-percentile calculation — the same shared
// fee-payment-pool philosophy customs/doge uses: a handful of
// dedicated UTXOs exist purely to cover network fees at a fixed per-byte
// rate, topped up by the route's deposit flow rather than drawn from
// general float funds.
type FeeEstimator struct {
	flatRateKoinuPerByte int64
}

// NewFeeEstimator creates a new Dogecoin fee estimator with the given
// flat fee rate (in koinu/byte). Dogecoin Core's default relay floor is
// 1000 koinu/kB; a safety margin above that avoids evictions under
// mempool pressure.
func NewFeeEstimator(flatRateKoinuPerByte int64) *FeeEstimator {
	if flatRateKoinuPerByte <= 0 {
		flatRateKoinuPerByte = 2 // 2000 koinu/kB, 2x Core's relay floor
	}
	return &FeeEstimator{flatRateKoinuPerByte: flatRateKoinuPerByte}
}

// Estimate returns the flat fee rate, widened by FeeSpeed: fast pays a
// premium in case of a backlog, slow takes the floor rate.
func (f *FeeEstimator) Estimate(ctx context.Context, req *chainadapter.ReleaseRequest) (*chainadapter.FeeEstimate, error) {
	rate := f.flatRateKoinuPerByte
	var minRate, maxRate int64 = rate, rate * 3
	var confidence int

	switch req.FeeSpeed {
	case chainadapter.FeeSpeedFast:
		rate = maxRate
		confidence = 95
	case chainadapter.FeeSpeedSlow:
		rate = minRate
		confidence = 80
	default:
		rate = (minRate + maxRate) / 2
		confidence = 90
	}

	const estimatedSize = 250 // typical 2-in-2-out tx, bytes
	return &chainadapter.FeeEstimate{
		Timestamp:       time.Now(),
		MinFee:          big.NewInt(minRate * estimatedSize),
		Recommended:     big.NewInt(rate * estimatedSize),
		MaxFee:          big.NewInt(maxRate * estimatedSize),
		Confidence:      confidence,
		Reason:          "flat governance-set fee rate, Dogecoin mempool fee markets are not reliable signal",
		EstimatedBlocks: 1,
	}, nil
}
