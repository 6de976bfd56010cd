// Package metrics - Prometheus-backed ChainMetrics implementation.
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// PrometheusMetrics implements ChainMetrics using real
// github.com/prometheus/client_golang collectors for Export(), plus a
// small mutex-guarded aggregate so GetMetrics/GetHealthStatus can answer
// without scraping the registry back out (client_golang's collectors
// are write-only from the application's point of view).
type PrometheusMetrics struct {
	registry *prometheus.Registry

	rpcCallsTotal    *prometheus.CounterVec
	rpcDuration      *prometheus.HistogramVec
	txOperationTotal *prometheus.CounterVec
	txOperationSecs  *prometheus.HistogramVec
	healthGauge      prometheus.Gauge

	mu                 sync.RWMutex
	rpcMetrics         map[string]*methodStats
	buildStats         operationStats
	signStats          operationStats
	broadcastStats     operationStats
	totalRPCCalls      int64
	successfulRPCCalls int64
	failedRPCCalls     int64
	lastSuccessfulCall time.Time
}

// methodStats tracks statistics for a single RPC method, mirrored
// locally alongside the Prometheus collectors so GetRPCMetrics can
// answer point queries.
type methodStats struct {
	totalCalls         int64
	successfulCalls    int64
	failedCalls        int64
	totalDuration      time.Duration
	minDuration        time.Duration
	maxDuration        time.Duration
	lastSuccessfulCall time.Time
	lastFailedCall     time.Time
}

// operationStats tracks statistics for transaction operations (Build, Sign, Broadcast).
type operationStats struct {
	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	totalDuration   time.Duration
}

// NewPrometheusMetrics creates a new Prometheus-backed metrics recorder
// registered against its own prometheus.Registry, so multiple adapter
// instances (one per chain) never collide on a shared default registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	p := &PrometheusMetrics{
		registry:   prometheus.NewRegistry(),
		rpcMetrics: make(map[string]*methodStats),
		rpcCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainadapter_rpc_calls_total",
			Help: "Total number of RPC calls",
		}, []string{"method", "status"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainadapter_rpc_duration_seconds",
			Help:    "RPC call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		txOperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chainadapter_tx_operations_total",
			Help: "Total number of transaction operations",
		}, []string{"operation", "status"}),
		txOperationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chainadapter_tx_operation_duration_seconds",
			Help:    "Transaction operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		healthGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chainadapter_health_status",
			Help: "Health status (1=OK, 0.5=Degraded, 0=Down)",
		}),
	}
	p.registry.MustRegister(p.rpcCallsTotal, p.rpcDuration, p.txOperationTotal, p.txOperationSecs, p.healthGauge)
	return p
}

// RecordRPCCall records a single RPC call with its duration and success status.
func (p *PrometheusMetrics) RecordRPCCall(method string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	p.rpcCallsTotal.WithLabelValues(method, status).Inc()
	p.rpcDuration.WithLabelValues(method).Observe(duration.Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalRPCCalls++
	if success {
		p.successfulRPCCalls++
		p.lastSuccessfulCall = time.Now()
	} else {
		p.failedRPCCalls++
	}

	stats, exists := p.rpcMetrics[method]
	if !exists {
		stats = &methodStats{minDuration: duration, maxDuration: duration}
		p.rpcMetrics[method] = stats
	}
	stats.totalCalls++
	stats.totalDuration += duration
	if success {
		stats.successfulCalls++
		stats.lastSuccessfulCall = time.Now()
	} else {
		stats.failedCalls++
		stats.lastFailedCall = time.Now()
	}
	if duration < stats.minDuration || stats.minDuration == 0 {
		stats.minDuration = duration
	}
	if duration > stats.maxDuration {
		stats.maxDuration = duration
	}
}

func (p *PrometheusMetrics) recordOperation(counter *operationStats, metricName string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	p.txOperationTotal.WithLabelValues(metricName, status).Inc()
	p.txOperationSecs.WithLabelValues(metricName).Observe(duration.Seconds())

	p.mu.Lock()
	defer p.mu.Unlock()
	counter.totalCalls++
	counter.totalDuration += duration
	if success {
		counter.successfulCalls++
	} else {
		counter.failedCalls++
	}
}

// RecordTransactionBuild records a BuildReleaseTx() call.
func (p *PrometheusMetrics) RecordTransactionBuild(chainID string, duration time.Duration, success bool) {
	p.recordOperation(&p.buildStats, "build", duration, success)
}

// RecordTransactionSign records a Sign() call.
func (p *PrometheusMetrics) RecordTransactionSign(chainID string, duration time.Duration, success bool) {
	p.recordOperation(&p.signStats, "sign", duration, success)
}

// RecordTransactionBroadcast records a Broadcast() call.
func (p *PrometheusMetrics) RecordTransactionBroadcast(chainID string, duration time.Duration, success bool) {
	p.recordOperation(&p.broadcastStats, "broadcast", duration, success)
}

// GetMetrics returns aggregated metrics for all recorded operations.
func (p *PrometheusMetrics) GetMetrics() *AggregatedMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var totalRPCDuration time.Duration
	for _, stats := range p.rpcMetrics {
		totalRPCDuration += stats.totalDuration
	}

	return &AggregatedMetrics{
		TotalRPCCalls:        p.totalRPCCalls,
		SuccessfulRPCCalls:   p.successfulRPCCalls,
		FailedRPCCalls:       p.failedRPCCalls,
		RPCSuccessRate:       rate(p.successfulRPCCalls, p.totalRPCCalls),
		AvgRPCDuration:       avgDuration(totalRPCDuration, p.totalRPCCalls),
		LastSuccessfulCall:   p.lastSuccessfulCall,
		TotalBuilds:          p.buildStats.totalCalls,
		SuccessfulBuilds:     p.buildStats.successfulCalls,
		FailedBuilds:         p.buildStats.failedCalls,
		BuildSuccessRate:     rate(p.buildStats.successfulCalls, p.buildStats.totalCalls),
		AvgBuildDuration:     avgDuration(p.buildStats.totalDuration, p.buildStats.totalCalls),
		TotalSigns:           p.signStats.totalCalls,
		SuccessfulSigns:      p.signStats.successfulCalls,
		FailedSigns:          p.signStats.failedCalls,
		SignSuccessRate:      rate(p.signStats.successfulCalls, p.signStats.totalCalls),
		AvgSignDuration:      avgDuration(p.signStats.totalDuration, p.signStats.totalCalls),
		TotalBroadcasts:      p.broadcastStats.totalCalls,
		SuccessfulBroadcasts: p.broadcastStats.successfulCalls,
		FailedBroadcasts:     p.broadcastStats.failedCalls,
		BroadcastSuccessRate: rate(p.broadcastStats.successfulCalls, p.broadcastStats.totalCalls),
		AvgBroadcastDuration: avgDuration(p.broadcastStats.totalDuration, p.broadcastStats.totalCalls),
	}
}

func rate(success, total int64) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(success) / float64(total)
}

func avgDuration(total time.Duration, count int64) time.Duration {
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// GetRPCMetrics returns aggregated metrics for a specific RPC method.
func (p *PrometheusMetrics) GetRPCMetrics(method string) *MethodMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats, exists := p.rpcMetrics[method]
	if !exists {
		return nil
	}

	return &MethodMetrics{
		Method:             method,
		TotalCalls:         stats.totalCalls,
		SuccessfulCalls:    stats.successfulCalls,
		FailedCalls:        stats.failedCalls,
		SuccessRate:        rate(stats.successfulCalls, stats.totalCalls),
		AvgDuration:        avgDuration(stats.totalDuration, stats.totalCalls),
		MinDuration:        stats.minDuration,
		MaxDuration:        stats.maxDuration,
		LastSuccessfulCall: stats.lastSuccessfulCall,
		LastFailedCall:     stats.lastFailedCall,
	}
}

// GetHealthStatus checks if the chain adapter is healthy based on metrics.
//
// Degraded criteria:
//   - Success rate < 90%
//   - Average response time > 5 seconds
//   - No successful call in last 5 minutes
func (p *PrometheusMetrics) GetHealthStatus() HealthStatus {
	p.mu.RLock()
	status := p.healthStatusLocked()
	p.mu.RUnlock()

	healthValue := 0.0
	switch status.Status {
	case "OK":
		healthValue = 1.0
	case "Degraded":
		healthValue = 0.5
	}
	p.healthGauge.Set(healthValue)
	return status
}

func (p *PrometheusMetrics) healthStatusLocked() HealthStatus {
	status := HealthStatus{CheckedAt: time.Now()}

	if p.totalRPCCalls == 0 {
		status.Status = "OK"
		status.Message = "no RPC calls recorded yet"
		return status
	}

	successRate := rate(p.successfulRPCCalls, p.totalRPCCalls)
	var totalDuration time.Duration
	for _, stats := range p.rpcMetrics {
		totalDuration += stats.totalDuration
	}
	avg := avgDuration(totalDuration, p.totalRPCCalls)

	status.LowSuccessRate = successRate < 0.90
	status.HighLatency = avg > 5*time.Second
	status.NoRecentSuccess = !p.lastSuccessfulCall.IsZero() && time.Since(p.lastSuccessfulCall) > 5*time.Minute

	if status.LowSuccessRate || status.HighLatency || status.NoRecentSuccess {
		status.Status = "Degraded"
		var messages []string
		if status.LowSuccessRate {
			messages = append(messages, fmt.Sprintf("low success rate (%.1f%%)", successRate*100))
		}
		if status.HighLatency {
			messages = append(messages, fmt.Sprintf("high latency (%v)", avg))
		}
		if status.NoRecentSuccess {
			messages = append(messages, fmt.Sprintf("no recent success (%v ago)", time.Since(p.lastSuccessfulCall)))
		}
		status.Message = strings.Join(messages, ", ")
		return status
	}

	status.Status = "OK"
	status.Message = fmt.Sprintf("success rate: %.1f%%, avg latency: %v", successRate*100, avg)
	return status
}

// Export returns metrics in Prometheus text exposition format, encoded
// via github.com/prometheus/common/expfmt against this recorder's own
// registry — the same codec promhttp.Handler uses internally, so a
// scrape of this string is byte-identical to what a real /metrics
// endpoint backed by this registry would serve.
func (p *PrometheusMetrics) Export() string {
	p.GetHealthStatus() // refresh the health gauge before export

	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Sprintf("# error gathering metrics: %v\n", err)
	}

	var sb strings.Builder
	encoder := expfmt.NewEncoder(&sb, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Sprintf("# error encoding metrics: %v\n", err)
		}
	}
	return sb.String()
}

// Reset clears all recorded metrics.
func (p *PrometheusMetrics) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rpcMetrics = make(map[string]*methodStats)
	p.buildStats = operationStats{}
	p.signStats = operationStats{}
	p.broadcastStats = operationStats{}
	p.totalRPCCalls = 0
	p.successfulRPCCalls = 0
	p.failedRPCCalls = 0
	p.lastSuccessfulCall = time.Time{}

	p.rpcCallsTotal.Reset()
	p.rpcDuration.Reset()
	p.txOperationTotal.Reset()
	p.txOperationSecs.Reset()
	p.healthGauge.Set(0)
}

// Ensure PrometheusMetrics implements ChainMetrics
var _ ChainMetrics = (*PrometheusMetrics)(nil)
