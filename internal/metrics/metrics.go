// Package metrics holds the Prometheus collectors for pools, liquidity and swaps.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxdex/flux-core/internal/types"
)

const (
	namespace = "flux"
	subsystem = "dex"
)

// Metrics holds every collector, registered on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Liquidity metrics
	LiquidityAdded   *prometheus.CounterVec
	LiquidityRemoved *prometheus.CounterVec
	LPTokensMinted   *prometheus.CounterVec
	LPTokensBurned   *prometheus.CounterVec

	// Swap metrics
	SwapsTotal        *prometheus.CounterVec
	SwapVolume        *prometheus.CounterVec
	SwapFeesCollected *prometheus.CounterVec
	SwapPriceImpact   prometheus.Histogram

	// Pool state
	PoolReserves  *prometheus.GaugeVec
	LPTokenSupply *prometheus.GaugeVec
	PoolFeeBps    *prometheus.GaugeVec
	PoolsTotal    prometheus.Gauge

	// Rejections and range management
	RequestsRejected  *prometheus.CounterVec
	RebalancesApplied *prometheus.CounterVec
	CyclesTotal       *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		LiquidityAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "liquidity_added_total",
			Help:      "Token amounts deposited into pools",
		}, []string{"pool", "side"}),
		LiquidityRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "liquidity_removed_total",
			Help:      "Token amounts withdrawn from pools",
		}, []string{"pool", "side"}),
		LPTokensMinted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lp_tokens_minted_total",
			Help:      "LP tokens minted",
		}, []string{"pool"}),
		LPTokensBurned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lp_tokens_burned_total",
			Help:      "LP tokens burned",
		}, []string{"pool"}),

		SwapsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "swaps_total",
			Help:      "Total number of swaps executed",
		}, []string{"pool", "direction"}),
		SwapVolume: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "swap_volume_total",
			Help:      "Total swap input volume in base units",
		}, []string{"pool", "side"}),
		SwapFeesCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "swap_fees_collected_total",
			Help:      "Total swap fees collected in base units",
		}, []string{"pool", "side"}),
		SwapPriceImpact: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "swap_price_impact_bps",
			Help:      "Price impact of executed swaps in basis points",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		}),

		PoolReserves: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool_reserves",
			Help:      "Current pool reserves",
		}, []string{"pool", "side"}),
		LPTokenSupply: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "lp_token_supply",
			Help:      "Outstanding LP tokens",
		}, []string{"pool"}),
		PoolFeeBps: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool_fee_bps",
			Help:      "Current effective swap fee",
		}, []string{"pool"}),
		PoolsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pools_total",
			Help:      "Number of initialized pools",
		}),

		RequestsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_rejected_total",
			Help:      "Rejected requests by operation and error kind",
		}, []string{"operation", "kind"}),
		RebalancesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rebalances_applied_total",
			Help:      "Position ranges moved by the range manager",
		}, []string{"pool"}),
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alm",
			Name:      "cycles_total",
			Help:      "Completed range and fee management cycles",
		}, []string{"status"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alm",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of range and fee management cycles",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObservePool refreshes the gauges for one pool.
func (m *Metrics) ObservePool(p types.Pool) {
	if m == nil {
		return
	}
	id := p.Address.String()
	m.PoolReserves.WithLabelValues(id, string(types.SideA)).Set(float64(p.TokenAReserve))
	m.PoolReserves.WithLabelValues(id, string(types.SideB)).Set(float64(p.TokenBReserve))
	m.LPTokenSupply.WithLabelValues(id).Set(float64(p.LPSupply))
	m.PoolFeeBps.WithLabelValues(id).Set(float64(p.CurrentFeeBps))
}

func (m *Metrics) RecordLiquidityAdded(e types.LiquidityAdded) {
	if m == nil {
		return
	}
	id := e.Pool.String()
	m.LiquidityAdded.WithLabelValues(id, string(types.SideA)).Add(float64(e.AmountA))
	m.LiquidityAdded.WithLabelValues(id, string(types.SideB)).Add(float64(e.AmountB))
	m.LPTokensMinted.WithLabelValues(id).Add(float64(e.LPTokensMinted))
}

func (m *Metrics) RecordLiquidityRemoved(e types.LiquidityRemoved) {
	if m == nil {
		return
	}
	id := e.Pool.String()
	m.LiquidityRemoved.WithLabelValues(id, string(types.SideA)).Add(float64(e.AmountA))
	m.LiquidityRemoved.WithLabelValues(id, string(types.SideB)).Add(float64(e.AmountB))
	m.LPTokensBurned.WithLabelValues(id).Add(float64(e.LPTokensBurned))
}

func (m *Metrics) RecordSwap(e types.Swapped) {
	if m == nil {
		return
	}
	id := e.Pool.String()
	direction, side := "b_to_a", types.SideB
	if e.AToB {
		direction, side = "a_to_b", types.SideA
	}
	m.SwapsTotal.WithLabelValues(id, direction).Inc()
	m.SwapVolume.WithLabelValues(id, string(side)).Add(float64(e.AmountIn))
	m.SwapFeesCollected.WithLabelValues(id, string(side)).Add(float64(e.FeeAmount))
	m.SwapPriceImpact.Observe(float64(e.PriceImpact))
}

func (m *Metrics) RecordRejection(operation, kind string) {
	if m == nil {
		return
	}
	m.RequestsRejected.WithLabelValues(operation, kind).Inc()
}

func (m *Metrics) RecordRebalance(pool string, applied int) {
	if m == nil || applied == 0 {
		return
	}
	m.RebalancesApplied.WithLabelValues(pool).Add(float64(applied))
}

func (m *Metrics) RecordCycle(status string, seconds float64) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(status).Inc()
	m.CycleDuration.Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
