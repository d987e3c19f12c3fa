package pricing

import "github.com/alejandrodnm/polyamm/internal/domain"

// LMSR evalúa price = e^(q1/b) / (e^(q1/b) + e^(q2/b)) con q1 = reserva del lado
// consultado después del trade (+amount en buy, -amount en sell) y q2 = reserva opuesta.
//
// e^x se aproxima con Taylor de tercer orden: 1 + x + x²/2 + x³/6.
func LMSR(b uint64, m domain.MarketReserve, isBuy bool, o domain.Outcome, amount uint64) (uint64, error) {
	const op = "pricing.LMSR"
	if b == 0 {
		return 0, domain.ArithmeticError(op, "subsidy factor is zero", 0)
	}

	q1 := m.Reserve(o)
	q2 := m.Reserve(o.Opposite())
	if amount > 0 {
		if isBuy {
			var err error
			if q1, err = domain.Add(q1, amount); err != nil {
				return 0, err
			}
		} else {
			q1 = domain.SubFloor(q1, amount)
		}
	}

	e1, err := ExpTaylor(q1, b)
	if err != nil {
		return 0, err
	}
	e2, err := ExpTaylor(q2, b)
	if err != nil {
		return 0, err
	}
	sum, err := domain.Add(e1, e2)
	if err != nil {
		return 0, err
	}
	p, err := domain.MulDiv(e1, domain.Precision, sum)
	if err != nil {
		return 0, err
	}
	return domain.Clamp(p), nil
}

// ExpTaylor devuelve e^(q/b) escalado por Precision.
func ExpTaylor(q, b uint64) (uint64, error) {
	x, err := domain.MulDiv(q, domain.Precision, b)
	if err != nil {
		return 0, err
	}
	x2, err := domain.MulDiv(x, x, domain.Precision)
	if err != nil {
		return 0, err
	}
	x3, err := domain.MulDiv(x2, x, domain.Precision)
	if err != nil {
		return 0, err
	}

	e := domain.Precision
	for _, term := range []uint64{x, x2 / 2, x3 / 6} {
		if e, err = domain.Add(e, term); err != nil {
			return 0, err
		}
	}
	return e, nil
}
