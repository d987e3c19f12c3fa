package ports

import (
	"context"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

// EventSink recibe las notificaciones del pool (UI, indexers, métricas).
// Se llama después del commit: un error aquí se loguea y no deshace la operación.
type EventSink interface {
	Publish(ctx context.Context, event domain.Event) error
}
