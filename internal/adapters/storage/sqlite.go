package storage

// sqlite.go: journal local, sin CGo.
//
//   - `events`: una fila por evento, append-only. Las cantidades son INTEGER:
//     database/sql no acepta uint64 > MaxInt64 y el insert falla.
//   - `markets`: una fila por mercado (UPSERT) con las últimas reservas.
//   - Prune al arrancar: eventos con más de 90 días.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
    id              TEXT PRIMARY KEY,
    type            TEXT    NOT NULL,
    occurred_at     INTEGER NOT NULL,
    account         TEXT    NOT NULL DEFAULT '',
    market_id       TEXT    NOT NULL DEFAULT '',
    trade_id        TEXT    NOT NULL DEFAULT '',
    is_buy          INTEGER NOT NULL DEFAULT 0,
    outcome         TEXT    NOT NULL DEFAULT '',
    amount          INTEGER NOT NULL DEFAULT 0,
    shares          INTEGER NOT NULL DEFAULT 0,
    price           INTEGER NOT NULL DEFAULT 0,
    cost            INTEGER NOT NULL DEFAULT 0,
    fee             INTEGER NOT NULL DEFAULT 0,
    treasury_fee    INTEGER NOT NULL DEFAULT 0,
    lp_fee          INTEGER NOT NULL DEFAULT 0,
    yes_reserve     INTEGER NOT NULL DEFAULT 0,
    no_reserve      INTEGER NOT NULL DEFAULT 0,
    total_liquidity INTEGER NOT NULL DEFAULT 0,
    total_shares    INTEGER NOT NULL DEFAULT 0,
    amm_model       TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS markets (
    market_id       TEXT PRIMARY KEY,
    amm_model       TEXT    NOT NULL,
    yes_reserve     INTEGER NOT NULL DEFAULT 0,
    no_reserve      INTEGER NOT NULL DEFAULT 0,
    total_liquidity INTEGER NOT NULL DEFAULT 0,
    last_update     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_at     ON events(occurred_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_market ON events(market_id, occurred_at DESC);
`

const retentionEvents = 90 * 24 * time.Hour

// SQLiteJournal implementa ports.Journal usando SQLite (pure Go, sin CGo).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteJournal: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteJournal: apply schema: %w", err)
	}

	j := &SQLiteJournal{db: db}
	j.pruneOld(context.Background())
	return j, nil
}

// Publish implementa ports.EventSink: inserta el evento y, si trae reservas,
// actualiza la fila del mercado en la misma transacción.
func (j *SQLiteJournal) Publish(ctx context.Context, ev domain.Event) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SQLiteJournal.Publish: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		eventArgs(ev)...,
	); err != nil {
		return fmt.Errorf("storage.SQLiteJournal.Publish: insert %s: %w", ev.ID, err)
	}

	if touchesReserves(ev) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO markets (market_id, amm_model, yes_reserve, no_reserve, total_liquidity, last_update)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(market_id) DO UPDATE SET
				amm_model       = excluded.amm_model,
				yes_reserve     = excluded.yes_reserve,
				no_reserve      = excluded.no_reserve,
				total_liquidity = excluded.total_liquidity,
				last_update     = excluded.last_update
			WHERE excluded.last_update >= markets.last_update
		`,
			ev.MarketID,
			ev.AMMModel.String(),
			ev.YesReserve,
			ev.NoReserve,
			ev.TotalLiquidity,
			ev.OccurredAt.UTC().UnixNano(),
		); err != nil {
			return fmt.Errorf("storage.SQLiteJournal.Publish: upsert market %s: %w", ev.MarketID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SQLiteJournal.Publish: commit: %w", err)
	}
	return nil
}

// Events implementa ports.Journal.
func (j *SQLiteJournal) Events(ctx context.Context, marketID string, limit int) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events`
	args := []any{}
	if marketID != "" {
		query += ` WHERE market_id = ?`
		args = append(args, marketID)
	}
	query += ` ORDER BY occurred_at DESC, rowid DESC LIMIT ?`
	args = append(args, limitOrDefault(limit))

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.SQLiteJournal.Events: query: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.SQLiteJournal.Events: scan row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Snapshots implementa ports.Journal.
func (j *SQLiteJournal) Snapshots(ctx context.Context) ([]domain.MarketReserve, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT market_id, amm_model, yes_reserve, no_reserve, total_liquidity, last_update
		FROM markets
		ORDER BY market_id
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.SQLiteJournal.Snapshots: query: %w", err)
	}
	defer rows.Close()

	var out []domain.MarketReserve
	for rows.Next() {
		m, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("storage.SQLiteJournal.Snapshots: scan row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// pruneOld elimina eventos antiguos para mantener la DB ligera.
func (j *SQLiteJournal) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionEvents).UnixNano()
	j.db.ExecContext(ctx, `DELETE FROM events WHERE occurred_at < ?`, cutoff) //nolint:errcheck
}
