package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/polyamm/config"
	"github.com/alejandrodnm/polyamm/internal/access"
	"github.com/alejandrodnm/polyamm/internal/adapters/custody"
	"github.com/alejandrodnm/polyamm/internal/adapters/metrics"
	"github.com/alejandrodnm/polyamm/internal/adapters/notify"
	"github.com/alejandrodnm/polyamm/internal/adapters/storage"
	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/pool"
	"github.com/alejandrodnm/polyamm/internal/ports"
)

// app agrupa el pool y sus adapters ya conectados.
type app struct {
	pool    *pool.Pool
	memory  *custody.Memory // nil con custody remota
	journal ports.Journal   // nil sin storage.dsn
	metrics *metrics.Prometheus
	console *notify.Console
	policy  *access.Policy
}

type appOptions struct {
	echoEvents bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{
		metrics: metrics.NewPrometheus(),
		console: notify.NewConsole(),
		policy:  access.New(cfg.Access),
	}

	var cust ports.Custody
	if cfg.Custody.URL != "" {
		client, err := custody.NewHTTPClient(custody.HTTPConfig{
			BaseURL:    cfg.Custody.URL,
			APIKey:     cfg.Custody.APIKey,
			Secret:     cfg.Custody.Secret,
			RatePerSec: cfg.Custody.RatePerSec,
			Burst:      cfg.Custody.Burst,
			Timeout:    cfg.CustodyTimeout(),
		})
		if err != nil {
			return nil, err
		}
		cust = client
		slog.Info("using remote custody", "url", cfg.Custody.URL)
	} else {
		a.memory = custody.NewMemory(cfg.Custody.PoolAccount)
		cust = a.memory
	}

	sinks := []ports.EventSink{a.metrics}
	if cfg.Storage.DSN != "" {
		j, err := storage.Open(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("open journal %q: %w", cfg.Storage.DSN, err)
		}
		a.journal = j
		sinks = append(sinks, j)
	}
	if opts.echoEvents {
		sinks = append(sinks, a.console)
	}

	p, err := pool.New(cfg.Pool, cust,
		pool.WithLogger(slog.Default()),
		pool.WithEventSink(notify.NewMulti(sinks...)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pool = p
	return a, nil
}

// Close cierra el journal si hay uno.
func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			slog.Warn("journal close error", "err", err)
		}
	}
}

// marketRows arma la tabla de mercados con los precios marginales actuales.
func (a *app) marketRows() []notify.MarketRow {
	var rows []notify.MarketRow
	for _, id := range a.pool.Markets() {
		m, err := a.pool.GetMarketLiquidity(id)
		if err != nil {
			continue
		}
		yes, _ := a.pool.GetPrice(id, true, domain.OutcomeYes, 0)
		no, _ := a.pool.GetPrice(id, true, domain.OutcomeNo, 0)
		rows = append(rows, notify.MarketRow{Market: m, YesPrice: yes, NoPrice: no})
	}
	return rows
}

// positionRows junta la posición de cada provider en cada mercado.
func (a *app) positionRows() []domain.MarketPosition {
	var rows []domain.MarketPosition
	for _, id := range a.pool.Markets() {
		for _, who := range a.pool.MarketProviders(id) {
			pos, err := a.pool.GetMarketPosition(id, who)
			if err != nil {
				slog.Debug("market position unavailable", "market_id", id, "provider", who, "err", err)
				continue
			}
			rows = append(rows, pos)
		}
	}
	return rows
}

// serveMetrics expone /metrics hasta que ctx se cancele.
func serveMetrics(ctx context.Context, addr string, h http.Handler) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
