package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// amountExponent scales 18-decimal base units into whole tokens.
const amountExponent = -18

// rayExponent scales ray fixed-point values into plain ratios.
const rayExponent = -27

type ProtocolMetrics struct {
	operations       *prometheus.CounterVec
	failures         *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	supply           *prometheus.GaugeVec
	reflectionFactor prometheus.Gauge
	interestIndex    prometheus.Gauge
	utilisation      prometheus.Gauge
	borrowRate       prometheus.Gauge
	liquidity        prometheus.Gauge
	totalBorrowed    prometheus.Gauge
	epochDsec        *prometheus.GaugeVec
}

var (
	protocolOnce     sync.Once
	protocolRegistry *ProtocolMetrics
)

// Protocol returns the lazily registered protocol metrics.
func Protocol() *ProtocolMetrics {
	protocolOnce.Do(func() {
		protocolRegistry = &ProtocolMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "levf",
				Subsystem: "protocol",
				Name:      "operations_total",
				Help:      "Operations dispatched segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "levf",
				Subsystem: "protocol",
				Name:      "failures_total",
				Help:      "Rejected operations segmented by operation and error kind.",
			}, []string{"op", "kind"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "levf",
				Subsystem: "protocol",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of dispatched operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
			supply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "levf",
				Subsystem: "token",
				Name:      "total_supply",
				Help:      "Total supply in whole tokens per asset.",
			}, []string{"asset"}),
			reflectionFactor: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "levf",
				Subsystem: "token",
				Name:      "reflection_factor",
				Help:      "Growth of included LFI balances from reflected fees, 1 at genesis.",
			}),
			interestIndex: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "levf",
				Subsystem: "farming",
				Name:      "interest_index",
				Help:      "Cumulative borrow index of the farming pool.",
			}),
			utilisation: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "levf",
				Subsystem: "farming",
				Name:      "utilisation_ratio",
				Help:      "Borrowed over supplied collateral.",
			}),
			borrowRate: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "levf",
				Subsystem: "farming",
				Name:      "borrow_rate_ratio",
				Help:      "Current annual borrow rate.",
			}),
			liquidity: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "levf",
				Subsystem: "treasury",
				Name:      "liquidity",
				Help:      "Underlying held by the treasury pool in whole tokens.",
			}),
			totalBorrowed: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "levf",
				Subsystem: "farming",
				Name:      "total_borrowed",
				Help:      "Outstanding farming debt including interest in whole tokens.",
			}),
			epochDsec: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "levf",
				Subsystem: "dsec",
				Name:      "epoch_total",
				Help:      "Settled dsec per epoch in whole token seconds.",
			}, []string{"epoch"}),
		}
		prometheus.MustRegister(
			protocolRegistry.operations,
			protocolRegistry.failures,
			protocolRegistry.latency,
			protocolRegistry.supply,
			protocolRegistry.reflectionFactor,
			protocolRegistry.interestIndex,
			protocolRegistry.utilisation,
			protocolRegistry.borrowRate,
			protocolRegistry.liquidity,
			protocolRegistry.totalBorrowed,
			protocolRegistry.epochDsec,
		)
	})
	return protocolRegistry
}

// ObserveOperation records the outcome of one dispatched operation. kind is
// empty on success.
func (m *ProtocolMetrics) ObserveOperation(op, kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	op = normalizeLabel(op)
	outcome := "ok"
	if kind != "" {
		outcome = "error"
		m.failures.WithLabelValues(op, kind).Inc()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetSupply records the total supply of asset.
func (m *ProtocolMetrics) SetSupply(asset string, amount *uint256.Int) {
	if m == nil {
		return
	}
	m.supply.WithLabelValues(strings.ToUpper(normalizeLabel(asset))).Set(scaled(amount, amountExponent))
}

// SetReflectionFactor records the LFI reflection factor expressed with 18
// decimals.
func (m *ProtocolMetrics) SetReflectionFactor(factor *uint256.Int) {
	if m == nil {
		return
	}
	m.reflectionFactor.Set(scaled(factor, amountExponent))
}

// SetFarming records the farming pool index, utilisation and rate, all in ray,
// and the outstanding debt.
func (m *ProtocolMetrics) SetFarming(index, utilisation, rate, borrowed *uint256.Int) {
	if m == nil {
		return
	}
	m.interestIndex.Set(scaled(index, rayExponent))
	m.utilisation.Set(scaled(utilisation, rayExponent))
	m.borrowRate.Set(scaled(rate, rayExponent))
	m.totalBorrowed.Set(scaled(borrowed, amountExponent))
}

// SetTreasuryLiquidity records the treasury balance of the underlying.
func (m *ProtocolMetrics) SetTreasuryLiquidity(amount *uint256.Int) {
	if m == nil {
		return
	}
	m.liquidity.Set(scaled(amount, amountExponent))
}

// SetEpochDsec records the settled dsec of an epoch.
func (m *ProtocolMetrics) SetEpochDsec(epoch string, total *uint256.Int) {
	if m == nil {
		return
	}
	m.epochDsec.WithLabelValues(normalizeLabel(epoch)).Set(scaled(total, amountExponent))
}

func scaled(value *uint256.Int, exp int32) float64 {
	if value == nil {
		return 0
	}
	return decimal.NewFromBigInt(value.ToBig(), exp).InexactFloat64()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
