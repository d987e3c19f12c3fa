package pricing

import "github.com/alejandrodnm/polyamm/internal/domain"

const (
	hybridDeepLiquidity = 100_000 // por encima, LMSR pesa 40% en vez de 20%
	hybridPMAMMWeight   = 40
)

// Weights es el reparto del modelo Hybrid, en porcentaje (suma 100).
type Weights struct {
	LMSR  uint64
	PMAMM uint64
	L2AMM uint64
}

// HybridWeights devuelve los pesos según la liquidez total del mercado.
func HybridWeights(totalLiquidity uint64) Weights {
	lmsr := uint64(20)
	if totalLiquidity > hybridDeepLiquidity {
		lmsr = 40
	}
	return Weights{
		LMSR:  lmsr,
		PMAMM: hybridPMAMMWeight,
		L2AMM: 100 - lmsr - hybridPMAMMWeight,
	}
}

// Hybrid es la media ponderada de LMSR, PM-AMM y L2-AMM, dividida (floor) por 100.
func Hybrid(cfg domain.PoolConfig, m domain.MarketReserve, isBuy bool, o domain.Outcome, amount uint64) (uint64, error) {
	w := HybridWeights(m.TotalLiquidity)

	lmsr, err := LMSR(cfg.SubsidyFactor, m, isBuy, o, amount)
	if err != nil {
		return 0, err
	}
	pm, err := PMAMM(m, isBuy, o, amount)
	if err != nil {
		return 0, err
	}
	l2, err := L2AMM(m, isBuy, o, amount)
	if err != nil {
		return 0, err
	}

	// cada precio <= Precision, así que la suma cabe holgada en uint64
	sum := lmsr*w.LMSR + pm*w.PMAMM + l2*w.L2AMM
	return domain.Clamp(sum / 100), nil
}
