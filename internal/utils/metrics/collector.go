// internal/utils/metrics/collector.go
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
	"github.com/rovshanmuradov/launchpad/internal/types"
)

const namespace = "launchpad"

// Collector управляет набором метрик платформы. Он же commit hook ledger.
type Collector struct {
	registry *prometheus.Registry

	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	trades       *prometheus.CounterVec
	volume       *prometheus.CounterVec
	lifecycle    *prometheus.CounterVec
	reserves     *prometheus.GaugeVec
	tasks        *prometheus.CounterVec
}

var _ ledger.CommitHook = (*Collector)(nil)

// NewCollector создает коллектор со своим реестром
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Ledger transactions by outcome",
			},
			[]string{"status", "name"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Ledger transaction duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"name"},
		),
		trades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Trades on the curve and on pairs",
			},
			[]string{"venue", "side"},
		),
		volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_input_volume",
				Help:      "Trade input in whole token units",
			},
			[]string{"venue", "side"},
		),
		lifecycle: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_events_total",
				Help:      "Launch, graduation and pair creation events",
			},
			[]string{"event"},
		),
		reserves: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pair_reserve",
				Help:      "Current pair reserves in whole token units",
			},
			[]string{"pair", "leg"},
		),
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Runner tasks by operation and outcome",
			},
			[]string{"operation", "status"},
		),
	}
	c.registry.MustRegister(
		c.transactions, c.duration, c.trades, c.volume, c.lifecycle, c.reserves, c.tasks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.transactions.Reset()
	c.duration.Reset()
	c.trades.Reset()
	c.volume.Reset()
	c.lifecycle.Reset()
	c.reserves.Reset()
	c.tasks.Reset()
}

// OnReceipt implements ledger.CommitHook.
func (c *Collector) OnReceipt(_ context.Context, r *ledger.Receipt) {
	c.transactions.WithLabelValues(string(r.Status), r.Name).Inc()
	c.duration.WithLabelValues(r.Name).Observe(r.Duration.Seconds())
	if r.Status != ledger.StatusCommitted {
		return
	}
	for _, ev := range r.Events {
		switch e := ev.(type) {
		case *events.TradeEvent:
			venue := "pair"
			if e.Type() == events.CurveTraded {
				venue = "curve"
			}
			side := "sell"
			if e.IsBuy {
				side = "buy"
			}
			c.trades.WithLabelValues(venue, side).Inc()
			c.volume.WithLabelValues(venue, side).Add(types.ToFloat(e.AmountIn))
		case *events.LaunchEvent, *events.PairEvent:
			c.lifecycle.WithLabelValues(string(ev.Type())).Inc()
		case *events.ReservesEvent:
			pair := e.Pair.String()
			c.reserves.WithLabelValues(pair, "a").Set(types.ToFloat(e.ReserveA))
			c.reserves.WithLabelValues(pair, "b").Set(types.ToFloat(e.ReserveB))
		}
	}
}
