// Package simulator siembra un pool con LPs y mercados y le lanza trades
// aleatorios reproducibles (misma semilla, mismo resultado con un worker).
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

// Engine es la parte del pool que usa el simulador.
type Engine interface {
	AddLiquidity(ctx context.Context, provider string, amount uint64) (uint64, error)
	AddMarketLiquidity(ctx context.Context, provider, marketID string, amount uint64) error
	Trade(ctx context.Context, req domain.TradeRequest) (domain.TradeResult, error)
}

// Funder acredita saldo inicial. Solo existe con custody en memoria.
type Funder interface {
	Fund(account string, amount uint64)
}

// Config describe el escenario.
type Config struct {
	Seed            int64
	Trades          int
	Workers         int
	Markets         []string
	MarketLiquidity uint64
	Providers       []string
	ProviderDeposit uint64
	Traders         []string
	TraderBalance   uint64
	MaxTradeAmount  uint64
	// BuyRatio es la probabilidad de que un trade sea compra (0..1).
	BuyRatio float64
}

// Report resume una corrida.
type Report struct {
	Attempted int
	Settled   int
	Rejected  map[domain.ErrorKind]int
	Volume    uint64
	Fees      uint64
	Elapsed   time.Duration
}

// Simulator orquesta el seed y la ráfaga de trades.
type Simulator struct {
	cfg    Config
	engine Engine
	funder Funder
	log    *slog.Logger
}

// New crea un Simulator. funder puede ser nil (custody remota ya fondeada).
func New(cfg Config, engine Engine, funder Funder, log *slog.Logger) (*Simulator, error) {
	if len(cfg.Markets) == 0 || len(cfg.Traders) == 0 {
		return nil, fmt.Errorf("simulator.New: markets and traders are required")
	}
	if cfg.MaxTradeAmount == 0 {
		return nil, fmt.Errorf("simulator.New: max trade amount must be positive")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BuyRatio <= 0 || cfg.BuyRatio > 1 {
		cfg.BuyRatio = 0.6
	}
	if log == nil {
		log = slog.Default()
	}
	return &Simulator{cfg: cfg, engine: engine, funder: funder, log: log.With("component", "simulator")}, nil
}

// Seed fondea las cuentas, deposita la liquidez de los LPs y abre los mercados.
// La liquidez de cada mercado la aporta el primer provider.
func (s *Simulator) Seed(ctx context.Context) error {
	if len(s.cfg.Providers) == 0 {
		return fmt.Errorf("simulator.Seed: at least one provider is required")
	}
	if s.funder != nil {
		marketFunds := s.cfg.MarketLiquidity * uint64(len(s.cfg.Markets))
		for i, p := range s.cfg.Providers {
			amount := s.cfg.ProviderDeposit
			if i == 0 {
				amount += marketFunds
			}
			s.funder.Fund(p, amount)
		}
		for _, t := range s.cfg.Traders {
			s.funder.Fund(t, s.cfg.TraderBalance)
		}
	}

	for _, p := range s.cfg.Providers {
		if s.cfg.ProviderDeposit == 0 {
			break
		}
		if _, err := s.engine.AddLiquidity(ctx, p, s.cfg.ProviderDeposit); err != nil {
			return fmt.Errorf("simulator.Seed: deposit %s: %w", p, err)
		}
	}
	for _, m := range s.cfg.Markets {
		if err := s.engine.AddMarketLiquidity(ctx, s.cfg.Providers[0], m, s.cfg.MarketLiquidity); err != nil {
			return fmt.Errorf("simulator.Seed: market %s: %w", m, err)
		}
	}

	s.log.Info("pool seeded",
		"providers", len(s.cfg.Providers),
		"markets", len(s.cfg.Markets),
		"traders", len(s.cfg.Traders),
	)
	return nil
}

// Run lanza cfg.Trades trades repartidos entre cfg.Workers goroutines.
// Los rechazos del pool (slippage, reservas, fondos) se cuentan, no abortan.
// Solo un ctx cancelado corta la corrida.
func (s *Simulator) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	rep := Report{Rejected: make(map[domain.ErrorKind]int)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < s.cfg.Workers; w++ {
		n := s.cfg.Trades / s.cfg.Workers
		if w < s.cfg.Trades%s.cfg.Workers {
			n++
		}
		rng := rand.New(rand.NewPCG(uint64(s.cfg.Seed), uint64(w)))

		g.Go(func() error {
			for i := 0; i < n; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := s.engine.Trade(ctx, s.randomTrade(rng))

				mu.Lock()
				rep.Attempted++
				if err != nil {
					rep.Rejected[domain.KindOf(err)]++
				} else {
					rep.Settled++
					rep.Volume += res.Amount
					rep.Fees += res.Fee
				}
				mu.Unlock()
			}
			return nil
		})
	}
	err := g.Wait()
	rep.Elapsed = time.Since(start)

	s.log.Info("simulation finished",
		"attempted", rep.Attempted,
		"settled", rep.Settled,
		"rejected", rep.Attempted-rep.Settled,
		"volume", rep.Volume,
		"fees", rep.Fees,
		"elapsed", rep.Elapsed.Round(time.Millisecond),
	)
	if err != nil {
		return rep, fmt.Errorf("simulator.Run: %w", err)
	}
	return rep, nil
}

func (s *Simulator) randomTrade(rng *rand.Rand) domain.TradeRequest {
	req := domain.TradeRequest{
		Trader:   s.cfg.Traders[rng.IntN(len(s.cfg.Traders))],
		MarketID: s.cfg.Markets[rng.IntN(len(s.cfg.Markets))],
		IsBuy:    rng.Float64() < s.cfg.BuyRatio,
		Outcome:  domain.Outcome(rng.IntN(2)),
		Amount:   1 + rng.Uint64N(s.cfg.MaxTradeAmount),
	}
	if req.IsBuy {
		req.MaxPrice = domain.Precision
	}
	return req
}
