package pool

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/pricing"
)

// AddLiquidity deposita amount de colateral del provider y emite shares.
// El primer depósito fija 1 share = 1 unidad; los siguientes reciben
// amount * totalShares / totalLiquidity.
func (p *Pool) AddLiquidity(ctx context.Context, provider string, amount uint64) (uint64, error) {
	shares, ev, err := p.addLiquidity(ctx, provider, amount)
	if err != nil {
		p.log.Debug("add liquidity rejected", "provider", provider, "amount", amount, "err", err)
		return 0, err
	}
	p.log.Info("liquidity added",
		"provider", provider,
		"amount", amount,
		"shares", shares,
		"total_liquidity", ev.TotalLiquidity,
	)
	p.publish(ctx, ev)
	return shares, nil
}

func (p *Pool) addLiquidity(ctx context.Context, provider string, amount uint64) (uint64, domain.Event, error) {
	const op = "pool.AddLiquidity"
	if provider == "" {
		return 0, domain.Event{}, domain.ValidationError(op, "provider is required", 0)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if amount == 0 || amount < p.cfg.MinLiquidity {
		return 0, domain.Event{}, domain.ValidationError(op, "amount below min_liquidity", amount)
	}

	shares := amount
	if p.totals.shares > 0 && p.totals.liquidity > 0 {
		var err error
		shares, err = domain.MulDiv(amount, p.totals.shares, p.totals.liquidity)
		if err != nil {
			return 0, domain.Event{}, err
		}
	}
	if shares == 0 {
		return 0, domain.Event{}, domain.ValidationError(op, "amount mints zero shares", amount)
	}

	newLiquidity, err := domain.Add(p.totals.liquidity, amount)
	if err != nil {
		return 0, domain.Event{}, err
	}
	newShares, err := domain.Add(p.totals.shares, shares)
	if err != nil {
		return 0, domain.Event{}, err
	}

	pos := p.positions[provider]
	next := domain.LPPosition{Provider: provider}
	if pos != nil {
		next = *pos
	}
	if next.ContributedLiquidity, err = domain.Add(next.ContributedLiquidity, amount); err != nil {
		return 0, domain.Event{}, err
	}
	if next.ShareBalance, err = domain.Add(next.ShareBalance, shares); err != nil {
		return 0, domain.Event{}, err
	}
	now := p.now()
	next.DepositTime = now
	if next.LastClaimTime.IsZero() {
		next.LastClaimTime = now
	}

	// custody antes de mutar: si falla no hay nada que deshacer
	if err := p.custody.Debit(ctx, provider, amount); err != nil {
		return 0, domain.Event{}, domain.TransferError(op, amount, err)
	}

	p.totals.liquidity = newLiquidity
	p.totals.shares = newShares
	p.positions[provider] = &next

	ev := domain.Event{
		Type:           domain.EventLiquidityAdded,
		Account:        provider,
		Amount:         amount,
		Shares:         shares,
		TotalLiquidity: newLiquidity,
		TotalShares:    newShares,
	}
	p.stamps.stamp(now, &ev)
	return shares, ev, nil
}

// RemoveLiquidity quema shares y paga su parte de la liquidez más los fees acumulados.
// Falla con StateError si shares es 0, si el saldo no alcanza o si no pasaron
// 24h desde el último depósito.
func (p *Pool) RemoveLiquidity(ctx context.Context, provider string, shares uint64) (uint64, error) {
	amount, ev, err := p.removeLiquidity(ctx, provider, shares)
	if err != nil {
		p.log.Debug("remove liquidity rejected", "provider", provider, "shares", shares, "err", err)
		return 0, err
	}
	p.log.Info("liquidity removed",
		"provider", provider,
		"shares", shares,
		"amount", amount,
		"total_liquidity", ev.TotalLiquidity,
	)
	p.publish(ctx, ev)
	return amount, nil
}

func (p *Pool) removeLiquidity(ctx context.Context, provider string, shares uint64) (uint64, domain.Event, error) {
	const op = "pool.RemoveLiquidity"
	if shares == 0 {
		return 0, domain.Event{}, domain.StateError(op, "zero shares", 0)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[provider]
	if !ok || pos.ShareBalance < shares {
		return 0, domain.Event{}, domain.StateError(op, "insufficient shares", shares)
	}
	now := p.now()
	if !pos.Unlocked(now) {
		remaining := pos.UnlockTime().Sub(now)
		return 0, domain.Event{}, domain.StateError(op, "lock period not elapsed, "+remaining.Round(time.Second).String()+" remaining", shares)
	}
	base, err := pricing.LPShareValue(shares, p.totals.shares, p.totals.liquidity)
	if err != nil {
		return 0, domain.Event{}, err
	}
	amount, err := domain.Add(base, pos.AccruedFees)
	if err != nil {
		return 0, domain.Event{}, err
	}
	contributed, err := domain.MulDiv(pos.ContributedLiquidity, shares, pos.ShareBalance)
	if err != nil {
		return 0, domain.Event{}, err
	}

	if amount > 0 {
		if err := p.custody.Credit(ctx, provider, amount); err != nil {
			return 0, domain.Event{}, domain.TransferError(op, amount, err)
		}
	}

	p.totals.shares -= shares
	p.totals.liquidity = domain.SubFloor(p.totals.liquidity, base)
	pos.ShareBalance -= shares
	pos.ContributedLiquidity = domain.SubFloor(pos.ContributedLiquidity, contributed)
	pos.AccruedFees = 0
	pos.LastClaimTime = now

	ev := domain.Event{
		Type:           domain.EventLiquidityRemoved,
		Account:        provider,
		Amount:         amount,
		Shares:         shares,
		TotalLiquidity: p.totals.liquidity,
		TotalShares:    p.totals.shares,
	}
	p.stamps.stamp(now, &ev)
	return amount, ev, nil
}
