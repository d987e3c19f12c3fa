// Package analytics deriva métricas del histórico de eventos del pool.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/holiman/uint256"

	"github.com/alejandrodnm/polyamm/internal/domain"
	"github.com/alejandrodnm/polyamm/internal/ports"
)

// Sample es un precio observado en un instante.
type Sample struct {
	Price uint64
	At    time.Time
}

// TWAP es la media de precios ponderada por tiempo dentro de la ventana que
// termina en la muestra más reciente. Cada muestra pesa el tiempo hasta la
// siguiente; la última no pesa. Si ninguna muestra acumula peso (todas en el
// mismo instante o una sola) devuelve el último precio.
func TWAP(samples []Sample, window time.Duration) (uint64, error) {
	const op = "analytics.TWAP"
	if len(samples) == 0 {
		return 0, domain.ValidationError(op, "no price samples", 0)
	}
	if window <= 0 {
		return 0, domain.ValidationError(op, "window must be positive", 0)
	}
	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	last := sorted[len(sorted)-1]
	start := last.At.Add(-window)

	var sum, weight, w, term uint256.Int
	for i := 0; i < len(sorted)-1; i++ {
		from, to := sorted[i].At, sorted[i+1].At
		if !to.After(start) {
			continue
		}
		if from.Before(start) {
			from = start
		}
		w.SetUint64(uint64(to.Sub(from)))
		term.SetUint64(sorted[i].Price)
		term.Mul(&term, &w)
		sum.Add(&sum, &term)
		weight.Add(&weight, &w)
	}
	if weight.IsZero() {
		return last.Price, nil
	}
	sum.Div(&sum, &weight)
	return sum.Uint64(), nil
}

// TradeSamples extrae de events el precio del lado o en cada TradeExecuted del
// mercado, del más antiguo al más reciente. Un trade del lado opuesto a precio
// p cuenta como Precision - p para o.
func TradeSamples(events []domain.Event, marketID string, o domain.Outcome) []Sample {
	var out []Sample
	for _, ev := range events {
		if ev.Type != domain.EventTradeExecuted || ev.MarketID != marketID {
			continue
		}
		price := domain.Clamp(ev.Price)
		if ev.Outcome != o {
			price = domain.Precision - price
		}
		out = append(out, Sample{Price: price, At: ev.OccurredAt})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// JournalTWAP calcula el TWAP del lado o de un mercado sobre los últimos limit
// eventos del journal. Devuelve también cuántos trades del lado se leyeron.
func JournalTWAP(ctx context.Context, j ports.Journal, marketID string, o domain.Outcome, window time.Duration, limit int) (uint64, int, error) {
	events, err := j.Events(ctx, marketID, limit)
	if err != nil {
		return 0, 0, err
	}
	samples := TradeSamples(events, marketID, o)
	twap, err := TWAP(samples, window)
	if err != nil {
		return 0, 0, err
	}
	return twap, len(samples), nil
}
