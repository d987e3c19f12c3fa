// Package pricing convierte las reservas de un mercado en precios.
//
// Todos los precios son probabilidades en punto fijo, en [0, domain.Precision].
// Con amount == 0 cada modelo devuelve el precio marginal actual (lectura, sin
// cambiar estado). Las funciones son puras: no mutan el MarketReserve recibido.
package pricing

import (
	"fmt"

	"github.com/alejandrodnm/polyamm/internal/domain"
)

// Price despacha al modelo configurado en el mercado.
func Price(cfg domain.PoolConfig, m domain.MarketReserve, isBuy bool, o domain.Outcome, amount uint64) (uint64, error) {
	if m.TotalLiquidity == 0 {
		return 0, domain.StateError("pricing.Price", "NoLiquidity", 0)
	}
	return priceWith(m.AMMModel, cfg, m, isBuy, o, amount)
}

// Probe devuelve el precio marginal actual del lado o (amount = 0).
func Probe(cfg domain.PoolConfig, m domain.MarketReserve, o domain.Outcome) (uint64, error) {
	return Price(cfg, m, true, o, 0)
}

func priceWith(model domain.AMMModel, cfg domain.PoolConfig, m domain.MarketReserve, isBuy bool, o domain.Outcome, amount uint64) (uint64, error) {
	switch model {
	case domain.ModelLMSR:
		return LMSR(cfg.SubsidyFactor, m, isBuy, o, amount)
	case domain.ModelPMAMM:
		return PMAMM(m, isBuy, o, amount)
	case domain.ModelL2AMM:
		return L2AMM(m, isBuy, o, amount)
	case domain.ModelHybrid:
		return Hybrid(cfg, m, isBuy, o, amount)
	}
	return 0, domain.ValidationError("pricing.Price", fmt.Sprintf("unknown amm model %s", model), uint64(model))
}

// PriceImpactBps devuelve |exec - probe| / probe en bps, con tope en Precision.
// Un probe de 0 cuenta como impacto total.
func PriceImpactBps(probe, exec uint64) uint64 {
	if probe == 0 {
		return domain.Precision
	}
	diff := exec - probe
	if exec < probe {
		diff = probe - exec
	}
	impact, err := domain.MulDiv(diff, domain.Precision, probe)
	if err != nil {
		return domain.Precision
	}
	return domain.Clamp(impact)
}

// midPrice es la probabilidad implícita en las reservas: other / (yes + no).
func midPrice(m domain.MarketReserve, o domain.Outcome) (uint64, error) {
	total, err := domain.Add(m.YesReserve, m.NoReserve)
	if err != nil {
		return 0, err
	}
	if total == 0 {
		return 0, domain.ArithmeticError("pricing.midPrice", "both reserves are zero", 0)
	}
	return domain.MulDiv(m.Reserve(o.Opposite()), domain.Precision, total)
}
