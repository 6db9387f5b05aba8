// Package metrics exposes Prometheus instrumentation for settlements, the
// ledger and the simulation.
package metrics

import (
	"net/http"

	"community-energy/internal/ledger"
	"community-energy/internal/market"
	"community-energy/internal/simulation"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "community_energy"

type Metrics struct {
	registry *prometheus.Registry

	settlements   prometheus.Counter
	transfers     *prometheus.CounterVec
	energy        *prometheus.CounterVec
	blocks        prometheus.Counter
	ledgerHeight  prometheus.Gauge
	ticks         prometheus.Counter
	trades        *prometheus.CounterVec
	poolStored    prometheus.Gauge
	tickImbalance prometheus.Gauge
}

// New registers every collector on a fresh registry, along with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		settlements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "settlements_total",
			Help: "Settlement rounds executed.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transfers_total",
			Help: "Transfers recorded by settlement rounds, by phase.",
		}, []string{"phase"}),
		energy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transferred_kwh_total",
			Help: "Energy moved by settlement rounds, by phase.",
		}, []string{"phase"}),
		blocks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ledger_blocks_committed_total",
			Help: "Blocks committed since start.",
		}),
		ledgerHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ledger_height",
			Help: "Index of the latest block.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "simulation_ticks_total",
			Help: "Simulation ticks completed.",
		}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "simulation_trades_total",
			Help: "Simulated trade attempts, by outcome.",
		}, []string{"outcome"}),
		poolStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "pool_stored_kwh",
			Help: "Energy held by the community pool after the last tick.",
		}),
		tickImbalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "simulation_tick_imbalance_kwh",
			Help: "Unexplained energy of the last tick; zero up to rounding.",
		}),
	}
	m.registry.MustRegister(
		m.settlements, m.transfers, m.energy,
		m.blocks, m.ledgerHeight,
		m.ticks, m.trades, m.poolStored, m.tickImbalance,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSettlement counts one settled round. A nil receiver is a no-op.
func (m *Metrics) ObserveSettlement(res *market.Result) {
	if m == nil || res == nil {
		return
	}
	m.settlements.Inc()
	for _, t := range res.Transfers {
		m.transfers.WithLabelValues(string(t.Phase)).Inc()
		m.energy.WithLabelValues(string(t.Phase)).Add(t.Amount)
	}
}

// ObserveTick records one simulation tick.
func (m *Metrics) ObserveTick(r *simulation.TickReport) {
	if m == nil || r == nil {
		return
	}
	m.ticks.Inc()
	m.trades.WithLabelValues("ok").Add(float64(r.Trades))
	m.trades.WithLabelValues("failed").Add(float64(r.FailedTrades))
	m.poolStored.Set(r.PoolLevel)
	m.tickImbalance.Set(r.Imbalance())
}

// CommitHook tracks committed blocks; register it with Ledger.OnCommit.
func (m *Metrics) CommitHook() ledger.CommitHook {
	return func(b ledger.Block) {
		m.blocks.Inc()
		m.ledgerHeight.Set(float64(b.Index))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
