// Package fees calcula el fee de cada trade y su reparto treasury / LPs.
package fees

import "github.com/alejandrodnm/polyamm/internal/domain"

const (
	// DynamicVolumeStep: cada 100k de volume24h descuenta 1 bp.
	DynamicVolumeStep uint64 = 100_000
	// MaxDynamicDiscountBps es el descuento máximo por volumen.
	MaxDynamicDiscountBps uint64 = 10
	// MinFeeBps es el piso del fee dinámico.
	MinFeeBps uint64 = 1
)

// Engine aplica la política de fees de un PoolConfig.
// No es seguro para uso concurrente; el pool lo protege con su lock.
type Engine struct {
	feeBps  uint64
	dynamic bool
}

// New crea un Engine con la política del config.
func New(cfg domain.PoolConfig) *Engine {
	e := &Engine{}
	e.UpdateConfig(cfg)
	return e
}

// UpdateConfig recarga la política tras un cambio administrativo.
func (e *Engine) UpdateConfig(cfg domain.PoolConfig) {
	e.feeBps = cfg.FeeBps
	e.dynamic = cfg.DynamicFeesEnabled
}

// EffectiveFeeBps devuelve el fee en bps que aplica con el volumen dado.
// Con fees dinámicos: max(base - min(volume24h/100k, 10), 1).
func (e *Engine) EffectiveFeeBps(volume24h uint64) uint64 {
	if !e.dynamic {
		return e.feeBps
	}
	reduction := min(volume24h/DynamicVolumeStep, MaxDynamicDiscountBps)
	if e.feeBps <= reduction {
		return MinFeeBps
	}
	return max(e.feeBps-reduction, MinFeeBps)
}

// CalculateFee devuelve amount * feeBps / Precision (floor).
func (e *Engine) CalculateFee(amount, volume24h uint64) (uint64, error) {
	return domain.MulDiv(amount, e.EffectiveFeeBps(volume24h), domain.Precision)
}

// Split reparte el fee: 20% treasury, el resto queda en el pool para los LPs.
func Split(fee uint64) (treasury, lp uint64) {
	// el resultado es <= fee, MulDiv no puede fallar
	treasury, _ = domain.MulDiv(fee, domain.TreasuryShareBps, domain.Precision)
	return treasury, fee - treasury
}
