package pricing

import "github.com/alejandrodnm/polyamm/internal/domain"

// ImpermanentLossBps compara mantener los activos con haberlos aportado a un
// pool de pesos iguales. initial y current son los precios de cada activo al
// entrar y ahora, en la escala de Precision. El resultado es la pérdida en bps
// de Precision; cero si no hay pérdida.
//
//	r_i = current_i / initial_i
//	il  = 2 * prod(sqrt(r_i)) / (1 + media(r_i))
func ImpermanentLossBps(initial, current []uint64) (uint64, error) {
	const op = "pricing.ImpermanentLossBps"
	if len(initial) == 0 || len(initial) != len(current) {
		return 0, domain.ValidationError(op, "price vectors must be non-empty and of equal length", uint64(len(current)))
	}
	geo := uint64(domain.Precision)
	var sum uint64
	for i := range initial {
		if initial[i] == 0 {
			return 0, domain.ArithmeticError(op, "initial price is zero", 0)
		}
		ratio, err := domain.MulDiv(current[i], domain.Precision, initial[i])
		if err != nil {
			return 0, err
		}
		scaled, err := domain.Mul(ratio, domain.Precision)
		if err != nil {
			return 0, err
		}
		if geo, err = domain.MulDiv(geo, domain.Sqrt(scaled), domain.Precision); err != nil {
			return 0, err
		}
		if sum, err = domain.Add(sum, ratio); err != nil {
			return 0, err
		}
	}
	den, err := domain.Add(domain.Precision, sum/uint64(len(initial)))
	if err != nil {
		return 0, err
	}
	held, err := domain.MulDiv(geo, 2*domain.Precision, den)
	if err != nil {
		return 0, err
	}
	if held >= domain.Precision {
		return 0, nil
	}
	return domain.Precision - held, nil
}

// LPShareValue es el colateral que respalda shares de un total totalShares
// sobre un pool de valor poolValue. Redondea hacia abajo.
func LPShareValue(shares, totalShares, poolValue uint64) (uint64, error) {
	if totalShares == 0 {
		return 0, domain.ArithmeticError("pricing.LPShareValue", "pool has no shares", shares)
	}
	return domain.MulDiv(shares, poolValue, totalShares)
}
