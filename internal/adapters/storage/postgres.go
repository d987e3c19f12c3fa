package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS amm_events (
    id              TEXT PRIMARY KEY,
    type            TEXT    NOT NULL,
    occurred_at     BIGINT  NOT NULL,
    account         TEXT    NOT NULL DEFAULT '',
    market_id       TEXT    NOT NULL DEFAULT '',
    trade_id        TEXT    NOT NULL DEFAULT '',
    is_buy          BOOLEAN NOT NULL DEFAULT false,
    outcome         TEXT    NOT NULL DEFAULT '',
    amount          BIGINT  NOT NULL DEFAULT 0,
    shares          BIGINT  NOT NULL DEFAULT 0,
    price           BIGINT  NOT NULL DEFAULT 0,
    cost            BIGINT  NOT NULL DEFAULT 0,
    fee             BIGINT  NOT NULL DEFAULT 0,
    treasury_fee    BIGINT  NOT NULL DEFAULT 0,
    lp_fee          BIGINT  NOT NULL DEFAULT 0,
    yes_reserve     BIGINT  NOT NULL DEFAULT 0,
    no_reserve      BIGINT  NOT NULL DEFAULT 0,
    total_liquidity BIGINT  NOT NULL DEFAULT 0,
    total_shares    BIGINT  NOT NULL DEFAULT 0,
    amm_model       TEXT    NOT NULL DEFAULT '',
    seq             BIGSERIAL
);

CREATE TABLE IF NOT EXISTS amm_markets (
    market_id       TEXT PRIMARY KEY,
    amm_model       TEXT   NOT NULL,
    yes_reserve     BIGINT NOT NULL DEFAULT 0,
    no_reserve      BIGINT NOT NULL DEFAULT 0,
    total_liquidity BIGINT NOT NULL DEFAULT 0,
    last_update     BIGINT NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_amm_events_market ON amm_events(market_id, occurred_at DESC);
`

// PostgresJournal implementa ports.Journal sobre un pgxpool compartido.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal conecta y aplica el schema.
func NewPostgresJournal(ctx context.Context, dsn string) (*PostgresJournal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("storage.NewPostgresJournal: pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresJournal: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresJournal: apply schema: %w", err)
	}
	return &PostgresJournal{pool: pool}, nil
}

// Publish implementa ports.EventSink. El insert del evento y el upsert del
// mercado van en un único batch.
func (j *PostgresJournal) Publish(ctx context.Context, ev domain.Event) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO amm_events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO NOTHING
	`, eventArgs(ev)...)

	if touchesReserves(ev) {
		batch.Queue(`
			INSERT INTO amm_markets (market_id, amm_model, yes_reserve, no_reserve, total_liquidity, last_update, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, now())
			ON CONFLICT (market_id)
			DO UPDATE SET
				amm_model = EXCLUDED.amm_model,
				yes_reserve = EXCLUDED.yes_reserve,
				no_reserve = EXCLUDED.no_reserve,
				total_liquidity = EXCLUDED.total_liquidity,
				last_update = EXCLUDED.last_update,
				updated_at = now()
			WHERE EXCLUDED.last_update >= amm_markets.last_update
		`,
			ev.MarketID,
			ev.AMMModel.String(),
			ev.YesReserve,
			ev.NoReserve,
			ev.TotalLiquidity,
			ev.OccurredAt.UTC().UnixNano(),
		)
	}

	br := j.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("storage.PostgresJournal.Publish: %s: %w", ev.ID, err)
		}
	}
	return nil
}

// Events implementa ports.Journal.
func (j *PostgresJournal) Events(ctx context.Context, marketID string, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM amm_events`
	args := []any{}
	if marketID != "" {
		query += ` WHERE market_id = $1`
		args = append(args, marketID)
	}
	query += fmt.Sprintf(` ORDER BY occurred_at DESC, seq DESC LIMIT $%d`, len(args)+1)
	args = append(args, limitOrDefault(limit))

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.PostgresJournal.Events: query: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.PostgresJournal.Events: scan row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Snapshots implementa ports.Journal.
func (j *PostgresJournal) Snapshots(ctx context.Context) ([]domain.MarketReserve, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT market_id, amm_model, yes_reserve, no_reserve, total_liquidity, last_update
		FROM amm_markets
		ORDER BY market_id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.PostgresJournal.Snapshots: query: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketReserve
	for rows.Next() {
		m, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.PostgresJournal.Snapshots: scan row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close implementa ports.Journal.
func (j *PostgresJournal) Close() error {
	if j.pool != nil {
		j.pool.Close()
	}
	return nil
}
