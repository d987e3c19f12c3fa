// Package storage guarda el journal de eventos del pool en SQLite o Postgres.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/ports"
)

// DefaultEventLimit se usa cuando Events recibe limit <= 0.
const DefaultEventLimit = 100

// Open elige el backend según el DSN: postgres:// o postgresql:// abren
// Postgres; cualquier otra cosa es una ruta SQLite (":memory:" incluido).
func Open(ctx context.Context, dsn string) (ports.Journal, error) {
	switch {
	case dsn == "":
		return nil, fmt.Errorf("storage.Open: empty dsn")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewPostgresJournal(ctx, dsn)
	default:
		return NewSQLiteJournal(strings.TrimPrefix(dsn, "sqlite://"))
	}
}

// eventColumns es el orden de columnas compartido por ambos backends.
const eventColumns = `id, type, occurred_at, account, market_id, trade_id,
	is_buy, outcome, amount, shares, price, cost, fee, treasury_fee, lp_fee,
	yes_reserve, no_reserve, total_liquidity, total_shares, amm_model`

// row es lo que tienen en común *sql.Rows y pgx.Rows.
type row interface {
	Scan(dest ...any) error
}

func eventArgs(ev domain.Event) []any {
	return []any{
		ev.ID,
		string(ev.Type),
		ev.OccurredAt.UTC().UnixNano(),
		ev.Account,
		ev.MarketID,
		ev.TradeID,
		ev.IsBuy,
		ev.Outcome.String(),
		ev.Amount,
		ev.Shares,
		ev.Price,
		ev.Cost,
		ev.Fee,
		ev.TreasuryFee,
		ev.LPFee,
		ev.YesReserve,
		ev.NoReserve,
		ev.TotalLiquidity,
		ev.TotalShares,
		ev.AMMModel.String(),
	}
}

func scanEvent(r row) (domain.Event, error) {
	var (
		ev               domain.Event
		typ, outcome, mm string
		occurredAt       int64
	)
	if err := r.Scan(
		&ev.ID, &typ, &occurredAt, &ev.Account, &ev.MarketID, &ev.TradeID,
		&ev.IsBuy, &outcome, &ev.Amount, &ev.Shares, &ev.Price, &ev.Cost, &ev.Fee,
		&ev.TreasuryFee, &ev.LPFee, &ev.YesReserve, &ev.NoReserve,
		&ev.TotalLiquidity, &ev.TotalShares, &mm,
	); err != nil {
		return domain.Event{}, err
	}
	ev.Type = domain.EventType(typ)
	ev.OccurredAt = time.Unix(0, occurredAt).UTC()
	ev.Outcome, _ = domain.ParseOutcome(outcome)
	ev.AMMModel, _ = domain.ParseAMMModel(mm)
	return ev, nil
}

func scanSnapshot(r row) (domain.MarketReserve, error) {
	var (
		m          domain.MarketReserve
		mm         string
		lastUpdate int64
	)
	if err := r.Scan(&m.MarketID, &mm, &m.YesReserve, &m.NoReserve, &m.TotalLiquidity, &lastUpdate); err != nil {
		return domain.MarketReserve{}, err
	}
	m.AMMModel, _ = domain.ParseAMMModel(mm)
	m.LastUpdate = time.Unix(0, lastUpdate).UTC()
	return m, nil
}

// touchesReserves indica si el evento trae el estado de un mercado.
func touchesReserves(ev domain.Event) bool {
	if ev.MarketID == "" {
		return false
	}
	switch ev.Type {
	case domain.EventMarketLiquidityUpdated, domain.EventTradeExecuted,
		domain.EventMarketModelUpdated, domain.EventCountersReset:
		return true
	}
	return false
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultEventLimit
	}
	return limit
}
