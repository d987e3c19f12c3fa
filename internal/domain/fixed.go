package domain

// fixed.go: aritmética de punto fijo sobre uint64.
//
// Los productos intermedios se calculan en 256 bits (holiman/uint256) para que
// a*b/c no desborde aunque a*b no quepa en 64 bits. Las divisiones redondean
// hacia abajo salvo MulDivCeil. Un resultado que no cabe en uint64 es
// ArithmeticError.

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// MulDiv devuelve floor(a*b/c).
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ArithmeticError("domain.MulDiv", "division by zero", a)
	}
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		return lo / c, nil
	}
	var x, y uint256.Int
	x.SetUint64(a)
	y.SetUint64(b)
	x.Mul(&x, &y)
	y.SetUint64(c)
	x.Div(&x, &y)
	if !x.IsUint64() {
		return 0, ArithmeticError("domain.MulDiv", "result overflows uint64", a)
	}
	return x.Uint64(), nil
}

// MulDivCeil devuelve ceil(a*b/c). Se usa donde redondear hacia abajo
// favorecería al trader frente al pool.
func MulDivCeil(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ArithmeticError("domain.MulDivCeil", "division by zero", a)
	}
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		q := lo / c
		if lo%c != 0 {
			q++
		}
		return q, nil
	}
	var x, y, r uint256.Int
	x.SetUint64(a)
	y.SetUint64(b)
	x.Mul(&x, &y)
	y.SetUint64(c)
	x.DivMod(&x, &y, &r)
	if !r.IsZero() {
		x.AddUint64(&x, 1)
	}
	if !x.IsUint64() {
		return 0, ArithmeticError("domain.MulDivCeil", "result overflows uint64", a)
	}
	return x.Uint64(), nil
}

// Sqrt devuelve floor(sqrt(x)).
func Sqrt(x uint64) uint64 {
	var z uint256.Int
	z.SetUint64(x)
	return z.Sqrt(&z).Uint64()
}

// Mul devuelve a*b o ArithmeticError si desborda.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ArithmeticError("domain.Mul", "multiplication overflows uint64", a)
	}
	return lo, nil
}

// Add devuelve a+b o ArithmeticError si desborda.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ArithmeticError("domain.Add", "addition overflows uint64", a)
	}
	return sum, nil
}

// SubFloor devuelve a-b saturando en 0.
func SubFloor(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// Clamp limita p a [0, Precision].
func Clamp(p uint64) uint64 {
	if p > Precision {
		return Precision
	}
	return p
}
