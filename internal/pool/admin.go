package pool

import (
	"context"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

// UpdatePoolConfig reemplaza la config del pool. Requiere RoleAdmin.
// Los mercados existentes conservan su modelo; el nuevo AMMModel solo aplica
// a mercados creados después.
func (p *Pool) UpdatePoolConfig(ctx context.Context, c domain.Capability, cfg domain.PoolConfig) error {
	const op = "pool.UpdatePoolConfig"
	if err := domain.Require(op, c, domain.RoleAdmin); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.cfg = cfg
	p.fees.UpdateConfig(cfg)
	ev := domain.Event{
		Type:           domain.EventPoolConfigUpdated,
		Account:        c.Principal(),
		AMMModel:       cfg.AMMModel,
		TotalLiquidity: p.totals.liquidity,
		TotalShares:    p.totals.shares,
	}
	p.stamps.stamp(p.now(), &ev)
	p.mu.Unlock()

	p.log.Info("pool config updated",
		"by", c.Principal(),
		"amm_model", cfg.AMMModel,
		"fee_bps", cfg.FeeBps,
		"dynamic_fees", cfg.DynamicFeesEnabled,
		"max_slippage_bps", cfg.MaxSlippageBps,
	)
	p.publish(ctx, ev)
	return nil
}

// SetMarketAMMModel cambia el modelo de pricing de un mercado. Requiere RoleAdmin.
func (p *Pool) SetMarketAMMModel(ctx context.Context, c domain.Capability, marketID string, model domain.AMMModel) error {
	const op = "pool.SetMarketAMMModel"
	if err := domain.Require(op, c, domain.RoleAdmin); err != nil {
		return err
	}
	if !model.Valid() {
		return domain.ValidationError(op, "unknown amm model", uint64(model))
	}
	if cfg, _ := p.snapshot(); model.UsesLMSR() && cfg.SubsidyFactor == 0 {
		return domain.ValidationError(op, "pool has no subsidy_factor for "+model.String(), 0)
	}

	slot := p.slot(marketID)
	if slot == nil {
		return domain.StateError(op, "market "+marketID+" not found", 0)
	}
	slot.mu.Lock()
	if !slot.ready {
		slot.mu.Unlock()
		return domain.StateError(op, "market "+marketID+" not found", 0)
	}
	prev := slot.state.AMMModel
	slot.state.AMMModel = model
	ev := marketEvent(domain.EventMarketModelUpdated, slot.state, c.Principal(), 0)
	slot.stamps.stamp(p.now(), &ev)
	slot.mu.Unlock()

	p.log.Info("market amm model updated",
		"by", c.Principal(),
		"market_id", marketID,
		"from", prev,
		"to", model,
	)
	p.publish(ctx, ev)
	return nil
}

// ResetDailyCounters pone a cero volume24h y fees24h. Con marketID vacío
// reinicia todos los mercados. Requiere RoleOperator (o admin). Pensado para un
// scheduler externo; el pool además reinicia cada ventana al vencer.
func (p *Pool) ResetDailyCounters(ctx context.Context, c domain.Capability, marketID string) error {
	const op = "pool.ResetDailyCounters"
	if err := domain.Require(op, c, domain.RoleOperator, domain.RoleAdmin); err != nil {
		return err
	}

	ids := []string{marketID}
	if marketID == "" {
		ids = p.Markets()
	}

	now := p.now()
	var events []domain.Event
	for _, id := range ids {
		slot := p.slot(id)
		if slot == nil {
			return domain.StateError(op, "market "+id+" not found", 0)
		}
		slot.mu.Lock()
		if !slot.ready {
			slot.mu.Unlock()
			return domain.StateError(op, "market "+id+" not found", 0)
		}
		slot.state.Volume24h = 0
		slot.state.Fees24h = 0
		slot.state.WindowStart = now
		ev := marketEvent(domain.EventCountersReset, slot.state, c.Principal(), 0)
		slot.stamps.stamp(now, &ev)
		events = append(events, ev)
		slot.mu.Unlock()
	}

	p.log.Info("daily counters reset", "by", c.Principal(), "markets", len(events))
	p.publish(ctx, events...)
	return nil
}
