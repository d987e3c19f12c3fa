package pricing

// cpmm.go: modelos de producto constante (PM-AMM y L2-AMM).

import "github.com/alejandrodnm/polyamm/internal/domain"

const (
	l2FeeNumerator   = 997
	l2FeeDenominator = 1000
)

// PMAMM mantiene k = yes * no. Un buy de amount del lado o reduce reserve(o) en
// amount y sube la reserva opuesta a k / reserve(o)'. El precio es el delta de la
// reserva opuesta por unidad operada. k / reserve(o)' redondea hacia arriba en
// los dos sentidos, así un buy seguido del sell inverso nunca devuelve más de lo
// que costó.
func PMAMM(m domain.MarketReserve, isBuy bool, o domain.Outcome, amount uint64) (uint64, error) {
	const op = "pricing.PMAMM"
	if amount == 0 {
		return midPrice(m, o)
	}

	side := m.Reserve(o)
	other := m.Reserve(o.Opposite())

	if isBuy {
		if amount >= side {
			return 0, domain.StateError(op, "amount exhausts "+o.String()+" reserve", amount)
		}
		newSide := side - amount
		newOther, err := domain.MulDivCeil(side, other, newSide)
		if err != nil {
			return 0, err
		}
		return perUnit(newOther-other, amount)
	}

	newSide, err := domain.Add(side, amount)
	if err != nil {
		return 0, err
	}
	newOther, err := domain.MulDivCeil(side, other, newSide)
	if err != nil {
		return 0, err
	}
	return perUnit(domain.SubFloor(other, newOther), amount)
}

// L2AMM es un swap estilo Uniswap con fee implícito de 0.3% sobre la entrada.
// Los dos lados son simétricos: con side = reserve(o) y other = la opuesta,
// buy = out(amount, other, side) / amount y sell = P - out(amount, side, other) / amount.
// En el sell out y el cociente redondean hacia arriba para que el precio de
// venta redondee hacia abajo.
func L2AMM(m domain.MarketReserve, isBuy bool, o domain.Outcome, amount uint64) (uint64, error) {
	if amount == 0 {
		return midPrice(m, o)
	}

	side := m.Reserve(o)
	other := m.Reserve(o.Opposite())

	if isBuy {
		out, err := l2Output(amount, other, side, domain.MulDiv)
		if err != nil {
			return 0, err
		}
		return perUnit(out, amount)
	}

	out, err := l2Output(amount, side, other, domain.MulDivCeil)
	if err != nil {
		return 0, err
	}
	raw, err := domain.MulDivCeil(out, domain.Precision, amount)
	if err != nil {
		return 0, err
	}
	return domain.Precision - domain.Clamp(raw), nil
}

// L2Output = amount·997·rOut / (rIn·1000 + amount·997), redondeado hacia abajo.
func L2Output(amount, rIn, rOut uint64) (uint64, error) {
	return l2Output(amount, rIn, rOut, domain.MulDiv)
}

func l2Output(amount, rIn, rOut uint64, div func(a, b, c uint64) (uint64, error)) (uint64, error) {
	in, err := domain.Mul(amount, l2FeeNumerator)
	if err != nil {
		return 0, err
	}
	scaledIn, err := domain.Mul(rIn, l2FeeDenominator)
	if err != nil {
		return 0, err
	}
	den, err := domain.Add(scaledIn, in)
	if err != nil {
		return 0, err
	}
	return div(in, rOut, den)
}

func perUnit(delta, amount uint64) (uint64, error) {
	p, err := domain.MulDiv(delta, domain.Precision, amount)
	if err != nil {
		return 0, err
	}
	return domain.Clamp(p), nil
}
