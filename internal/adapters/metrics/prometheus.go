// Package metrics exporta la actividad del pool como métricas Prometheus.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

const namespace = "polyamm"

// Prometheus implementa ports.EventSink. Usa su propio registry para que
// varios pools (o tests) no choquen en el registry global.
type Prometheus struct {
	registry *prometheus.Registry

	events        *prometheus.CounterVec
	trades        *prometheus.CounterVec
	volume        *prometheus.CounterVec
	fees          *prometheus.CounterVec
	reserves      *prometheus.GaugeVec
	poolLiquidity prometheus.Gauge
	poolShares    prometheus.Gauge
	tradePriceBps *prometheus.HistogramVec
}

// NewPrometheus crea y registra los collectors.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Events published by the pool, by type.",
		}, []string{"type"}),
		trades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Settled trades by market, side and outcome.",
		}, []string{"market", "side", "outcome"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trade_volume_total",
			Help:      "Outcome units traded by market.",
		}, []string{"market"}),
		fees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fees_total",
			Help:      "Fees collected, split by recipient.",
		}, []string{"recipient"}),
		reserves: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_reserve",
			Help:      "Current market reserve by outcome.",
		}, []string{"market", "outcome"}),
		poolLiquidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_liquidity",
			Help:      "Total LP liquidity in the pool.",
		}),
		poolShares: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_shares",
			Help:      "Total LP shares outstanding.",
		}),
		tradePriceBps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trade_price_bps",
			Help:      "Execution price of settled trades in basis points.",
			Buckets:   prometheus.LinearBuckets(0, 1000, 11),
		}, []string{"amm_model"}),
	}
	p.registry.MustRegister(
		p.events, p.trades, p.volume, p.fees, p.reserves,
		p.poolLiquidity, p.poolShares, p.tradePriceBps,
	)
	return p
}

// Publish implementa ports.EventSink.
func (p *Prometheus) Publish(_ context.Context, ev domain.Event) error {
	p.events.WithLabelValues(string(ev.Type)).Inc()

	switch ev.Type {
	case domain.EventTradeExecuted:
		p.trades.WithLabelValues(ev.MarketID, domain.Side(ev.IsBuy), ev.Outcome.String()).Inc()
		p.volume.WithLabelValues(ev.MarketID).Add(float64(ev.Amount))
		p.tradePriceBps.WithLabelValues(ev.AMMModel.String()).Observe(float64(ev.Price))
		p.setReserves(ev)
	case domain.EventFeesDistributed:
		p.fees.WithLabelValues("treasury").Add(float64(ev.TreasuryFee))
		p.fees.WithLabelValues("lp").Add(float64(ev.LPFee))
		p.setPool(ev)
	case domain.EventMarketLiquidityUpdated, domain.EventMarketModelUpdated, domain.EventCountersReset:
		p.setReserves(ev)
	case domain.EventLiquidityAdded, domain.EventLiquidityRemoved, domain.EventPoolConfigUpdated:
		p.setPool(ev)
	}
	return nil
}

func (p *Prometheus) setReserves(ev domain.Event) {
	p.reserves.WithLabelValues(ev.MarketID, domain.OutcomeYes.String()).Set(float64(ev.YesReserve))
	p.reserves.WithLabelValues(ev.MarketID, domain.OutcomeNo.String()).Set(float64(ev.NoReserve))
}

func (p *Prometheus) setPool(ev domain.Event) {
	p.poolLiquidity.Set(float64(ev.TotalLiquidity))
	p.poolShares.Set(float64(ev.TotalShares))
}

// Registry expone el registry (tests y exportadores adicionales).
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler sirve /metrics con el registry propio.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
