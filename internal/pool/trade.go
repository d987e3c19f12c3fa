package pool

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/fees"
	"github.com/alejandrodnm/polyamm/internal/pricing"
)

// GetPrice devuelve el precio de operar amount del lado outcome. Con amount 0
// es el precio marginal actual. No cambia estado.
func (p *Pool) GetPrice(marketID string, isBuy bool, outcome domain.Outcome, amount uint64) (uint64, error) {
	slot := p.slot(marketID)
	if slot == nil {
		return 0, domain.StateError("pool.GetPrice", "NoLiquidity", 0)
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.ready {
		return 0, domain.StateError("pool.GetPrice", "NoLiquidity", 0)
	}

	cfg, _ := p.snapshot()
	return pricing.Price(cfg, slot.state, isBuy, outcome, amount)
}

// Quote calcula precio, coste y fee de un trade sin mover colateral ni reservas.
func (p *Pool) Quote(marketID string, isBuy bool, outcome domain.Outcome, amount uint64) (domain.TradeResult, error) {
	slot := p.slot(marketID)
	if slot == nil {
		return domain.TradeResult{}, domain.StateError("pool.Quote", "NoLiquidity", 0)
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.ready {
		return domain.TradeResult{}, domain.StateError("pool.Quote", "NoLiquidity", 0)
	}

	req := domain.TradeRequest{MarketID: marketID, IsBuy: isBuy, Outcome: outcome, Amount: amount}
	if isBuy {
		req.MaxPrice = domain.Precision
	}
	cfg, fe := p.snapshot()
	res, _, err := evaluate(cfg, &fe, slot.state, req, p.now())
	return res, err
}

// Trade ejecuta un buy o sell contra las reservas del mercado:
// precio → slippage → fee → custody → commit → eventos.
// Si cualquier paso falla no queda ningún cambio visible.
func (p *Pool) Trade(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, error) {
	res, events, err := p.trade(ctx, req)
	if err != nil {
		p.log.Info("trade aborted",
			"market_id", req.MarketID,
			"trader", req.Trader,
			"side", domain.Side(req.IsBuy),
			"outcome", req.Outcome,
			"amount", req.Amount,
			"err", err,
		)
		return domain.TradeResult{}, err
	}
	p.log.Info("trade settled",
		"trade_id", res.TradeID,
		"market_id", res.MarketID,
		"side", domain.Side(res.IsBuy),
		"outcome", res.Outcome,
		"amount", res.Amount,
		"price", res.Price,
		"fee", res.Fee,
		"settlement", res.Settlement(),
	)
	p.publish(ctx, events...)
	return res, nil
}

func (p *Pool) trade(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, []domain.Event, error) {
	const op = "pool.Trade"
	if req.Trader == "" {
		return domain.TradeResult{}, nil, domain.ValidationError(op, "trader is required", 0)
	}
	if req.Amount == 0 {
		return domain.TradeResult{}, nil, domain.ValidationError(op, "amount must be positive", 0)
	}

	slot := p.slot(req.MarketID)
	if slot == nil {
		return domain.TradeResult{}, nil, domain.StateError(op, "NoLiquidity", 0)
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.ready {
		return domain.TradeResult{}, nil, domain.StateError(op, "NoLiquidity", 0)
	}

	// quoted → validated
	cfg, fe := p.snapshot()
	now := p.now()
	res, next, err := evaluate(cfg, &fe, slot.state, req, now)
	if err != nil {
		return domain.TradeResult{}, nil, err
	}
	res.TradeID = req.RequestID
	if res.TradeID == "" {
		res.TradeID = uuid.New().String()
	}

	// validated → settled | aborted
	if err := p.execute(ctx, op, settlementPlan(cfg, req.Trader, res)); err != nil {
		return domain.TradeResult{}, nil, err
	}

	slot.state = next
	res.Market = next

	p.mu.Lock()
	p.totals.volume = saturatingAdd(p.totals.volume, res.Amount)
	p.totals.fees = saturatingAdd(p.totals.fees, res.Fee)
	p.totals.liquidity = saturatingAdd(p.totals.liquidity, res.LPFee)
	poolLiquidity, poolShares := p.totals.liquidity, p.totals.shares
	p.mu.Unlock()

	traded := marketEvent(domain.EventTradeExecuted, next, req.Trader, res.Amount)
	traded.TradeID = res.TradeID
	traded.IsBuy = res.IsBuy
	traded.Outcome = res.Outcome
	traded.Price = res.Price
	traded.Cost = res.Settlement()
	traded.Fee = res.Fee

	distributed := domain.Event{
		Type:           domain.EventFeesDistributed,
		Account:        cfg.TreasuryAccount,
		MarketID:       res.MarketID,
		TradeID:        res.TradeID,
		Fee:            res.Fee,
		TreasuryFee:    res.TreasuryFee,
		LPFee:          res.LPFee,
		TotalLiquidity: poolLiquidity,
		TotalShares:    poolShares,
	}
	slot.stamps.stamp(now, &traded, &distributed)
	return res, []domain.Event{traded, distributed}, nil
}

// evaluate es el núcleo puro de un trade: calcula precio, fee y las reservas
// resultantes sin tocar el estado. Devuelve el mercado tal como quedaría.
func evaluate(cfg domain.PoolConfig, fe *fees.Engine, m domain.MarketReserve, req domain.TradeRequest, now time.Time) (domain.TradeResult, domain.MarketReserve, error) {
	const op = "pool.Trade"
	if m.TotalLiquidity == 0 {
		return domain.TradeResult{}, m, domain.StateError(op, "NoLiquidity", 0)
	}
	m = rollWindow(m, now)

	price, err := pricing.Price(cfg, m, req.IsBuy, req.Outcome, req.Amount)
	if err != nil {
		return domain.TradeResult{}, m, err
	}
	if req.IsBuy && price > req.MaxPrice {
		return domain.TradeResult{}, m, domain.SlippageError(op, "price above max price", price)
	}
	if !req.IsBuy && price < req.MaxPrice {
		return domain.TradeResult{}, m, domain.SlippageError(op, "price below min price", price)
	}

	probe, err := pricing.Probe(cfg, m, req.Outcome)
	if err != nil {
		return domain.TradeResult{}, m, err
	}
	impact := pricing.PriceImpactBps(probe, price)
	if cfg.MaxSlippageBps > 0 && impact > cfg.MaxSlippageBps {
		return domain.TradeResult{}, m, domain.SlippageError(op, "price impact above max_slippage_bps", impact)
	}

	cost, err := domain.MulDiv(req.Amount, price, domain.Precision)
	if err != nil {
		return domain.TradeResult{}, m, err
	}
	feeBps := fe.EffectiveFeeBps(m.Volume24h)
	fee, err := fe.CalculateFee(cost, m.Volume24h)
	if err != nil {
		return domain.TradeResult{}, m, err
	}
	fee = min(fee, cost)
	treasury, lp := fees.Split(fee)

	res := domain.TradeResult{
		MarketID:       m.MarketID,
		IsBuy:          req.IsBuy,
		Outcome:        req.Outcome,
		Amount:         req.Amount,
		Price:          price,
		ProbePrice:     probe,
		PriceImpactBps: impact,
		Cost:           cost,
		Fee:            fee,
		FeeBps:         feeBps,
		TreasuryFee:    treasury,
		LPFee:          lp,
	}
	if req.IsBuy {
		if res.TotalCost, err = domain.Add(cost, fee); err != nil {
			return domain.TradeResult{}, m, err
		}
	} else {
		res.Proceeds = cost - fee
	}

	next, err := applyReserves(m, req.IsBuy, req.Outcome, req.Amount, cost)
	if err != nil {
		return domain.TradeResult{}, m, err
	}
	if next.Volume24h, err = domain.Add(next.Volume24h, req.Amount); err != nil {
		return domain.TradeResult{}, m, err
	}
	if next.Fees24h, err = domain.Add(next.Fees24h, fee); err != nil {
		return domain.TradeResult{}, m, err
	}
	next.LastUpdate = now
	res.Market = next
	return res, next, nil
}

// applyReserves aplica los deltas exactos de un trade. Buy del lado o: reserve(o)
// baja amount y la opuesta sube cost. Sell: al revés. Ninguna reserva puede
// quedar negativa.
func applyReserves(m domain.MarketReserve, isBuy bool, o domain.Outcome, amount, cost uint64) (domain.MarketReserve, error) {
	const op = "pool.Trade"
	side := m.Reserve(o)
	other := m.Reserve(o.Opposite())

	if isBuy {
		if amount > side {
			return m, domain.StateError(op, o.String()+" reserve would go negative", amount)
		}
		newOther, err := domain.Add(other, cost)
		if err != nil {
			return m, err
		}
		return m.WithReserves(o, side-amount, newOther), nil
	}

	if cost > other {
		return m, domain.StateError(op, o.Opposite().String()+" reserve would go negative", cost)
	}
	newSide, err := domain.Add(side, amount)
	if err != nil {
		return m, err
	}
	return m.WithReserves(o, newSide, other-cost), nil
}

func saturatingAdd(a, b uint64) uint64 {
	sum, err := domain.Add(a, b)
	if err != nil {
		return ^uint64(0)
	}
	return sum
}
