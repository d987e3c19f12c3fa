package metrics_test

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polyamm/internal/adapters/metrics"
	"github.com/alejandrodnm/polyamm/internal/domain"
)

func publishTrade(t *testing.T, p *metrics.Prometheus) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, p.Publish(ctx, domain.Event{
		Type:       domain.EventTradeExecuted,
		MarketID:   "m1",
		IsBuy:      true,
		Outcome:    domain.OutcomeYes,
		Amount:     10_000,
		Price:      5232,
		YesReserve: 90_000,
		NoReserve:  105_232,
		AMMModel:   domain.ModelLMSR,
	}))
	require.NoError(t, p.Publish(ctx, domain.Event{
		Type:           domain.EventFeesDistributed,
		MarketID:       "m1",
		Fee:            52,
		TreasuryFee:    10,
		LPFee:          42,
		TotalLiquidity: 10_042,
		TotalShares:    10_000,
	}))
}

func TestPrometheus_Trade(t *testing.T) {
	p := metrics.NewPrometheus()
	publishTrade(t, p)
	publishTrade(t, p)

	assert.Equal(t, 2.0, gather(t, p, "polyamm_trades_total", map[string]string{"market": "m1", "side": "BUY", "outcome": "YES"}))
	assert.Equal(t, 20_000.0, gather(t, p, "polyamm_trade_volume_total", map[string]string{"market": "m1"}))
	assert.Equal(t, 20.0, gather(t, p, "polyamm_fees_total", map[string]string{"recipient": "treasury"}))
	assert.Equal(t, 84.0, gather(t, p, "polyamm_fees_total", map[string]string{"recipient": "lp"}))
	assert.Equal(t, 90_000.0, gather(t, p, "polyamm_market_reserve", map[string]string{"market": "m1", "outcome": "YES"}))
	assert.Equal(t, 10_042.0, gather(t, p, "polyamm_pool_liquidity", nil))
	assert.Equal(t, 2, testutil.CollectAndCount(p.Registry(), "polyamm_events_total"))
}

func TestPrometheus_LiquidityEvents(t *testing.T) {
	p := metrics.NewPrometheus()
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, domain.Event{Type: domain.EventLiquidityAdded, TotalLiquidity: 1500, TotalShares: 1500}))
	require.NoError(t, p.Publish(ctx, domain.Event{Type: domain.EventMarketLiquidityUpdated, MarketID: "m2", YesReserve: 501, NoReserve: 500}))

	assert.Equal(t, 1500.0, gather(t, p, "polyamm_pool_shares", nil))
	assert.Equal(t, 500.0, gather(t, p, "polyamm_market_reserve", map[string]string{"market": "m2", "outcome": "NO"}))
	assert.Equal(t, 0, testutil.CollectAndCount(p.Registry(), "polyamm_trades_total"))
}

// gather busca la serie con esas labels y devuelve su valor.
func gather(t *testing.T, p *metrics.Prometheus, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := p.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metric
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestPrometheus_Handler(t *testing.T) {
	p := metrics.NewPrometheus()
	publishTrade(t, p)

	srv := httptest.NewServer(p.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `polyamm_events_total{type="TradeExecuted"} 1`)
	assert.Contains(t, string(body), `polyamm_trade_price_bps_bucket{amm_model="LMSR",le="6000"} 1`)
}
