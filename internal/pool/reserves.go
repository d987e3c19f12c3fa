package pool

import (
	"context"
	"time"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/pricing"
)

// AddMarketLiquidity inyecta amount en las reservas del mercado, mitad YES y
// mitad NO (el resto de la división va a YES). El mercado se crea en la primera
// llamada con el modelo por defecto del pool.
func (p *Pool) AddMarketLiquidity(ctx context.Context, provider, marketID string, amount uint64) error {
	ev, err := p.addMarketLiquidity(ctx, provider, marketID, amount)
	if err != nil {
		p.log.Debug("add market liquidity rejected",
			"provider", provider,
			"market_id", marketID,
			"amount", amount,
			"err", err,
		)
		return err
	}
	p.log.Info("market liquidity updated",
		"market_id", marketID,
		"provider", provider,
		"amount", amount,
		"yes_reserve", ev.YesReserve,
		"no_reserve", ev.NoReserve,
	)
	p.publish(ctx, ev)
	return nil
}

func (p *Pool) addMarketLiquidity(ctx context.Context, provider, marketID string, amount uint64) (domain.Event, error) {
	const op = "pool.AddMarketLiquidity"
	if amount == 0 {
		return domain.Event{}, domain.ValidationError(op, "amount must be positive", 0)
	}
	if marketID == "" || provider == "" {
		return domain.Event{}, domain.ValidationError(op, "market id and provider are required", 0)
	}

	slot := p.slotOrCreate(marketID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	cfg, _ := p.snapshot()
	now := p.now()

	next := slot.state
	if !slot.ready {
		next = domain.MarketReserve{
			MarketID:    marketID,
			AMMModel:    cfg.AMMModel,
			WindowStart: now,
		}
	}
	next = rollWindow(next, now)

	half := amount / 2
	var err error
	if next.YesReserve, err = domain.Add(next.YesReserve, amount-half); err != nil {
		return domain.Event{}, err
	}
	if next.NoReserve, err = domain.Add(next.NoReserve, half); err != nil {
		return domain.Event{}, err
	}
	if next.TotalLiquidity, err = domain.Add(next.TotalLiquidity, amount); err != nil {
		return domain.Event{}, err
	}
	contributed, err := domain.Add(slot.contributions[provider], amount)
	if err != nil {
		return domain.Event{}, err
	}
	next.LastUpdate = now
	entry := blendEntry(cfg, next, slot.entryPrices[provider], amount, contributed)

	if err := p.custody.Debit(ctx, provider, amount); err != nil {
		return domain.Event{}, domain.TransferError(op, amount, err)
	}

	slot.state = next
	slot.ready = true
	slot.contributions[provider] = contributed
	slot.entryPrices[provider] = entry

	ev := marketEvent(domain.EventMarketLiquidityUpdated, next, provider, amount)
	slot.stamps.stamp(now, &ev)
	return ev, nil
}

// blendEntry mueve el precio YES de entrada hacia el precio tras este aporte,
// en proporción amount/total. Si el modelo no puede dar precio (p. ej. una
// exponencial LMSR que desborda) la entrada no cambia.
func blendEntry(cfg domain.PoolConfig, next domain.MarketReserve, entry, amount, total uint64) uint64 {
	yes, err := pricing.Probe(cfg, next, domain.OutcomeYes)
	if err != nil {
		return entry
	}
	if amount == total || entry == 0 {
		return yes
	}
	if yes >= entry {
		step, _ := domain.MulDiv(yes-entry, amount, total)
		return entry + step
	}
	step, _ := domain.MulDiv(entry-yes, amount, total)
	return entry - step
}

// rollWindow reinicia volume24h/fees24h si la ventana de 24h terminó.
func rollWindow(m domain.MarketReserve, now time.Time) domain.MarketReserve {
	if m.WindowStart.IsZero() {
		m.WindowStart = now
		return m
	}
	if m.WindowExpired(now) {
		m.Volume24h = 0
		m.Fees24h = 0
		m.WindowStart = now
	}
	return m
}

func marketEvent(t domain.EventType, m domain.MarketReserve, account string, amount uint64) domain.Event {
	return domain.Event{
		Type:           t,
		Account:        account,
		MarketID:       m.MarketID,
		Amount:         amount,
		YesReserve:     m.YesReserve,
		NoReserve:      m.NoReserve,
		TotalLiquidity: m.TotalLiquidity,
		AMMModel:       m.AMMModel,
	}
}
