// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package fixedpoint implements the deterministic micro-unit fixed-point
// arithmetic used throughout the consensus engine. Every quantity that
// feeds a consensus decision — stake shares, uptime ratios, AI scores,
// fee adjustments — is represented as a Fixed instead of a float64 so
// that two honest nodes evaluating the same inputs always reach the same
// bits.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/zeebo/blake3"
)

// Scale is the number of micro-units per whole unit.
const Scale int64 = 1_000_000

// Fixed is a signed fixed-point number with Scale micro-units per unit.
// It is a named int64, not a struct, so arithmetic stays allocation-free
// on the hot consensus path.
type Fixed int64

var (
	// ErrOverflow is returned when an operation would overflow int64.
	ErrOverflow = errors.New("fixedpoint: overflow")
	// ErrDivideByZero is returned by DivFixed when the divisor is zero.
	ErrDivideByZero = errors.New("fixedpoint: divide by zero")
	// ErrInvalidDecimal is returned by FromDecimalString on malformed input.
	ErrInvalidDecimal = errors.New("fixedpoint: invalid decimal string")
)

// ToFixed converts an integer whole-unit quantity to Fixed.
func ToFixed(whole int64) (Fixed, error) {
	v := big.NewInt(whole)
	v.Mul(v, big.NewInt(Scale))
	if !v.IsInt64() {
		return 0, ErrOverflow
	}
	return Fixed(v.Int64()), nil
}

// Add returns a+b, erroring on overflow.
func (a Fixed) Add(b Fixed) (Fixed, error) {
	sum := int64(a) + int64(b)
	if (b > 0 && sum < int64(a)) || (b < 0 && sum > int64(a)) {
		return 0, ErrOverflow
	}
	return Fixed(sum), nil
}

// Sub returns a-b, erroring on overflow.
func (a Fixed) Sub(b Fixed) (Fixed, error) {
	diff := int64(a) - int64(b)
	if (b < 0 && diff < int64(a)) || (b > 0 && diff > int64(a)) {
		return 0, ErrOverflow
	}
	return Fixed(diff), nil
}

// MulFixed returns a*b in Fixed units (i.e. (a*b)/Scale), using a 128-bit
// intermediate so the multiply itself never overflows before rescaling.
func (a Fixed) MulFixed(b Fixed) (Fixed, error) {
	prod := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(int64(b)))
	prod.Quo(prod, big.NewInt(Scale))
	if !prod.IsInt64() {
		return 0, ErrOverflow
	}
	return Fixed(prod.Int64()), nil
}

// DivFixed returns a/b in Fixed units (i.e. (a*Scale)/b), using a 128-bit
// intermediate.
func (a Fixed) DivFixed(b Fixed) (Fixed, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	num := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(Scale))
	num.Quo(num, big.NewInt(int64(b)))
	if !num.IsInt64() {
		return 0, ErrOverflow
	}
	return Fixed(num.Int64()), nil
}

// ClampI64 clamps v to [lo, hi].
func ClampI64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp clamps a to [lo, hi].
func (a Fixed) Clamp(lo, hi Fixed) Fixed {
	return Fixed(ClampI64(int64(a), int64(lo), int64(hi)))
}

// Quantize rounds v down to the nearest multiple of step using mathematical
// floor division (rounds toward negative infinity for negative values),
// matching the IPPAN fixed-point reference behavior.
func Quantize(v, step int64) (int64, error) {
	if step <= 0 {
		return 0, fmt.Errorf("fixedpoint: quantize step must be positive, got %d", step)
	}
	remainder := v % step
	if remainder == 0 {
		return v, nil
	}
	if v > 0 {
		return v - remainder, nil
	}
	return v - (remainder + step), nil
}

// FromRatio builds a Fixed from numerator/denominator.
func FromRatio(num, den int64) (Fixed, error) {
	if den == 0 {
		return 0, ErrDivideByZero
	}
	n := new(big.Int).Mul(big.NewInt(num), big.NewInt(Scale))
	n.Quo(n, big.NewInt(den))
	if !n.IsInt64() {
		return 0, ErrOverflow
	}
	return Fixed(n.Int64()), nil
}

// FromDecimalString parses a base-10 decimal string ("123.456789") into a
// Fixed, rounding half-up at the 7th fractional digit. At most 18
// fractional digits are accepted.
func FromDecimalString(s string) (Fixed, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidDecimal
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return 0, ErrInvalidDecimal
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart = s[:idx]
		fracPart = s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return 0, ErrInvalidDecimal
		}
	}
	if len(fracPart) > 18 {
		return 0, ErrInvalidDecimal
	}
	for _, c := range fracPart {
		if c < '0' || c > '9' {
			return 0, ErrInvalidDecimal
		}
	}

	whole := new(big.Int)
	if _, ok := whole.SetString(intPart, 10); !ok {
		return 0, ErrInvalidDecimal
	}

	frac, err := parseFractionComponent(fracPart)
	if err != nil {
		return 0, err
	}

	total := new(big.Int).Mul(whole, big.NewInt(Scale))
	total.Add(total, big.NewInt(frac))
	if neg {
		total.Neg(total)
	}
	if !total.IsInt64() {
		return 0, ErrOverflow
	}
	return Fixed(total.Int64()), nil
}

// parseFractionComponent turns a (possibly long) fractional digit string
// into a micro-unit integer in [0, Scale), rounding half-up at digit 7 and
// propagating the carry.
func parseFractionComponent(frac string) (int64, error) {
	if frac == "" {
		return 0, nil
	}
	padded := frac
	for len(padded) < 7 {
		padded += "0"
	}
	kept := padded[:6]
	roundDigit := padded[6] - '0'

	v := new(big.Int)
	if _, ok := v.SetString(kept, 10); !ok {
		return 0, ErrInvalidDecimal
	}
	if roundDigit >= 5 {
		v.Add(v, big.NewInt(1))
	}
	if v.Cmp(big.NewInt(Scale)) >= 0 {
		// Carried past 999999 -> caller's whole part absorbs the overflow
		// by simply reporting Scale-bounded fraction; whole-unit carry is
		// not needed because FromDecimalString adds whole*Scale + frac,
		// and a frac of exactly Scale is equivalent to whole+1, frac=0.
		return Scale, nil
	}
	return v.Int64(), nil
}

// HashFixed returns the BLAKE3 digest of a single Fixed value, encoded as
// 8 little-endian bytes.
func HashFixed(f Fixed) [32]byte {
	var buf [8]byte
	putLE64(buf[:], int64(f))
	return blake3.Sum256(buf[:])
}

// HashFixedSlice returns the BLAKE3 digest of a slice of Fixed values,
// each encoded as 8 little-endian bytes, concatenated in order.
func HashFixedSlice(fs []Fixed) [32]byte {
	buf := make([]byte, 8*len(fs))
	for i, f := range fs {
		putLE64(buf[i*8:i*8+8], int64(f))
	}
	return blake3.Sum256(buf)
}

func putLE64(b []byte, v int64) {
	u := uint64(v)
	b[0] = byte(u)
	b[1] = byte(u >> 8)
	b[2] = byte(u >> 16)
	b[3] = byte(u >> 24)
	b[4] = byte(u >> 32)
	b[5] = byte(u >> 40)
	b[6] = byte(u >> 48)
	b[7] = byte(u >> 56)
}

// String renders the Fixed as "{int}.{6-digit fraction}".
func (a Fixed) String() string {
	v := int64(a)
	neg := v < 0
	if neg {
		v = -v
	}
	whole := v / Scale
	frac := v % Scale
	sign := ""
	if neg {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%06d", sign, whole, frac)
}
