package ports

import (
	"context"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

// Journal persiste los eventos del pool para auditoría.
type Journal interface {
	EventSink

	// Events devuelve los últimos limit eventos, del más reciente al más antiguo.
	// Con marketID vacío devuelve eventos de todos los mercados.
	Events(ctx context.Context, marketID string, limit int) ([]domain.Event, error)

	// Snapshots devuelve el último estado conocido de cada mercado, por ID.
	Snapshots(ctx context.Context) ([]domain.MarketReserve, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
