// Package pool es el ledger de un pool de liquidez de mercados de predicción:
// shares de LPs, reservas por mercado, ejecución de trades y reparto de fees.
//
// Locks: cada mercado tiene su propio mutex; los totales del pool (liquidez,
// shares, posiciones, config) tienen otro. El orden es siempre mercado → pool,
// así dos trades en mercados distintos solo se serializan en el commit de totales.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/fees"
	"github.com/alejandrodnm/polyamm/internal/ports"
	"github.com/alejandrodnm/polyamm/internal/pricing"
)

// Option configura un Pool en New.
type Option func(*Pool)

// WithClock reemplaza time.Now (tests del lock de 24h).
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithLogger usa l en vez de slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithEventSink publica las notificaciones en sink.
func WithEventSink(sink ports.EventSink) Option {
	return func(p *Pool) { p.sink = sink }
}

// Pool es una instancia independiente: no hay estado global.
type Pool struct {
	custody ports.Custody
	sink    ports.EventSink
	log     *slog.Logger
	now     func() time.Time

	mu        sync.Mutex // protege todo lo de abajo hasta marketsMu
	cfg       domain.PoolConfig
	fees      *fees.Engine
	totals    totals
	positions map[string]*domain.LPPosition
	stamps    stamper

	marketsMu sync.RWMutex
	markets   map[string]*marketSlot
}

type totals struct {
	liquidity uint64
	shares    uint64
	volume    uint64
	fees      uint64
}

// marketSlot guarda un mercado y su lock. ready es false hasta el primer
// AddMarketLiquidity que llega a commit.
type marketSlot struct {
	mu            sync.Mutex
	ready         bool
	state         domain.MarketReserve
	contributions map[string]uint64
	entryPrices   map[string]uint64 // precio YES medio de entrada por provider
	stamps        stamper
}

// stamper asigna ID y un OccurredAt estrictamente creciente a los eventos de un
// mismo dueño (un mercado o el pool). Se llama con el lock del dueño tomado:
// el orden de OccurredAt es el orden de commit aunque la publicación, que va
// fuera del lock, llegue desordenada al sink.
type stamper struct {
	last time.Time
}

func (s *stamper) stamp(now time.Time, events ...*domain.Event) {
	at := now.UTC()
	if !at.After(s.last) {
		at = s.last.Add(time.Nanosecond)
	}
	s.last = at
	for _, ev := range events {
		ev.ID = uuid.New().String()
		ev.OccurredAt = at
	}
}

// New crea un pool con la config dada. custody es obligatorio.
func New(cfg domain.PoolConfig, custody ports.Custody, opts ...Option) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pool.New: %w", err)
	}
	if custody == nil {
		return nil, fmt.Errorf("pool.New: custody is required")
	}
	p := &Pool{
		custody:   custody,
		log:       slog.Default(),
		now:       time.Now,
		cfg:       cfg,
		fees:      fees.New(cfg),
		positions: make(map[string]*domain.LPPosition),
		markets:   make(map[string]*marketSlot),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "pool")
	return p, nil
}

// Config devuelve la config vigente.
func (p *Pool) Config() domain.PoolConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// GetPoolStats devuelve los totales del pool.
func (p *Pool) GetPoolStats() domain.PoolStats {
	p.mu.Lock()
	stats := domain.PoolStats{
		TotalLiquidity: p.totals.liquidity,
		TotalShares:    p.totals.shares,
		TotalVolume:    p.totals.volume,
		TotalFees:      p.totals.fees,
		Providers:      len(p.positions),
	}
	p.mu.Unlock()

	stats.Markets = len(p.Markets())
	return stats
}

// GetLPPosition devuelve la posición del provider o StateError si nunca depositó.
func (p *Pool) GetLPPosition(provider string) (domain.LPPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[provider]
	if !ok {
		return domain.LPPosition{}, domain.StateError("pool.GetLPPosition", "no position for "+provider, 0)
	}
	return *pos, nil
}

// GetMarketLiquidity devuelve una copia del estado del mercado.
func (p *Pool) GetMarketLiquidity(marketID string) (domain.MarketReserve, error) {
	slot := p.slot(marketID)
	if slot == nil {
		return domain.MarketReserve{}, domain.StateError("pool.GetMarketLiquidity", "market "+marketID+" not found", 0)
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if !slot.ready {
		return domain.MarketReserve{}, domain.StateError("pool.GetMarketLiquidity", "market "+marketID+" not found", 0)
	}
	return slot.state, nil
}

// GetMarketContribution devuelve cuánto aportó provider a las reservas del mercado.
func (p *Pool) GetMarketContribution(marketID, provider string) uint64 {
	slot := p.slot(marketID)
	if slot == nil {
		return 0
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.contributions[provider]
}

// GetMarketPosition devuelve la posición de provider en las reservas del
// mercado y su impermanent loss frente a haber mantenido YES y NO al precio de
// entrada.
func (p *Pool) GetMarketPosition(marketID, provider string) (domain.MarketPosition, error) {
	const op = "pool.GetMarketPosition"
	slot := p.slot(marketID)
	if slot == nil {
		return domain.MarketPosition{}, domain.StateError(op, "market "+marketID+" not found", 0)
	}
	cfg, _ := p.snapshot()

	slot.mu.Lock()
	defer slot.mu.Unlock()
	contributed := slot.contributions[provider]
	if !slot.ready || contributed == 0 {
		return domain.MarketPosition{}, domain.StateError(op, "no position for "+provider+" in "+marketID, 0)
	}
	yes, err := pricing.Probe(cfg, slot.state, domain.OutcomeYes)
	if err != nil {
		return domain.MarketPosition{}, err
	}
	entry := slot.entryPrices[provider]
	if entry == 0 {
		return domain.MarketPosition{}, domain.StateError(op, "entry price unknown for "+provider+" in "+marketID, 0)
	}
	il, err := positionLoss(entry, yes)
	if err != nil {
		return domain.MarketPosition{}, err
	}
	return domain.MarketPosition{
		MarketID:           marketID,
		Provider:           provider,
		Contributed:        contributed,
		EntryYesPrice:      entry,
		YesPrice:           yes,
		ImpermanentLossBps: il,
	}, nil
}

// MarketProviders devuelve, ordenados, los providers con aporte en el mercado.
func (p *Pool) MarketProviders(marketID string) []string {
	slot := p.slot(marketID)
	if slot == nil {
		return nil
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	out := make([]string, 0, len(slot.contributions))
	for who, amount := range slot.contributions {
		if amount > 0 {
			out = append(out, who)
		}
	}
	sort.Strings(out)
	return out
}

// positionLoss compara el par (YES, NO) de entrada con el actual. Los precios
// se acotan a [1, Precision-1]: un lado a precio cero no tiene ratio.
func positionLoss(entryYes, yes uint64) (uint64, error) {
	entryYes = openUnit(entryYes)
	yes = openUnit(yes)
	return pricing.ImpermanentLossBps(
		[]uint64{entryYes, domain.Precision - entryYes},
		[]uint64{yes, domain.Precision - yes},
	)
}

func openUnit(p uint64) uint64 {
	switch {
	case p < 1:
		return 1
	case p > domain.Precision-1:
		return domain.Precision - 1
	}
	return p
}

// Markets devuelve los IDs de mercados inicializados, ordenados.
func (p *Pool) Markets() []string {
	p.marketsMu.RLock()
	slots := make(map[string]*marketSlot, len(p.markets))
	for id, s := range p.markets {
		slots[id] = s
	}
	p.marketsMu.RUnlock()

	ids := make([]string, 0, len(slots))
	for id, s := range slots {
		s.mu.Lock()
		ready := s.ready
		s.mu.Unlock()
		if ready {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// --- helpers internos ---

// snapshot copia la config y la política de fees bajo el lock del pool.
func (p *Pool) snapshot() (domain.PoolConfig, fees.Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg, *p.fees
}

func (p *Pool) slot(marketID string) *marketSlot {
	p.marketsMu.RLock()
	defer p.marketsMu.RUnlock()
	return p.markets[marketID]
}

func (p *Pool) slotOrCreate(marketID string) *marketSlot {
	if s := p.slot(marketID); s != nil {
		return s
	}
	p.marketsMu.Lock()
	defer p.marketsMu.Unlock()
	if s, ok := p.markets[marketID]; ok {
		return s
	}
	s := &marketSlot{contributions: make(map[string]uint64), entryPrices: make(map[string]uint64)}
	p.markets[marketID] = s
	return s
}

// publish entrega al sink eventos ya sellados con stamp.
// Se llama fuera de los locks y después del commit.
func (p *Pool) publish(ctx context.Context, events ...domain.Event) {
	for _, ev := range events {
		p.log.Debug("event",
			"type", ev.Type,
			"market_id", ev.MarketID,
			"account", ev.Account,
			"amount", ev.Amount,
		)
		if p.sink == nil {
			continue
		}
		if err := p.sink.Publish(ctx, ev); err != nil {
			p.log.Warn("event sink error", "type", ev.Type, "id", ev.ID, "err", err)
		}
	}
}
