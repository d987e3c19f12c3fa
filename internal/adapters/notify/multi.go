package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/ports"
)

// Multi reparte cada evento a varios sinks. Un sink que falla no impide
// que los demás reciban el evento.
type Multi struct {
	sinks []ports.EventSink
}

// NewMulti ignora los sinks nil.
func NewMulti(sinks ...ports.EventSink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Publish implementa ports.EventSink.
func (m *Multi) Publish(ctx context.Context, ev domain.Event) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("notify.Multi: sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Len devuelve cuántos sinks reciben eventos.
func (m *Multi) Len() int { return len(m.sinks) }
