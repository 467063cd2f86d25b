// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package fixedpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToFixed(t *testing.T) {
	f, err := ToFixed(99)
	require.NoError(t, err)
	require.Equal(t, Fixed(99_000_000), f)
}

func TestAddOverflow(t *testing.T) {
	_, err := Fixed(9_223_372_036_854_775_807).Add(1)
	require.ErrorIs(t, err, ErrOverflow)

	sum, err := Fixed(1_000_000).Add(Fixed(2_000_000))
	require.NoError(t, err)
	require.Equal(t, Fixed(3_000_000), sum)
}

func TestMulDivFixed(t *testing.T) {
	a, _ := ToFixed(3)
	b, _ := ToFixed(2)
	prod, err := a.MulFixed(b)
	require.NoError(t, err)
	require.Equal(t, Fixed(6_000_000), prod)

	quot, err := a.DivFixed(b)
	require.NoError(t, err)
	require.Equal(t, Fixed(1_500_000), quot)

	_, err = a.DivFixed(0)
	require.ErrorIs(t, err, ErrDivideByZero)
}

func TestQuantize(t *testing.T) {
	v, err := Quantize(105, 10)
	require.NoError(t, err)
	require.Equal(t, int64(100), v)

	v, err = Quantize(-105, 10)
	require.NoError(t, err)
	require.Equal(t, int64(-110), v)

	v, err = Quantize(100, 10)
	require.NoError(t, err)
	require.Equal(t, int64(100), v)
}

func TestFromDecimalStringRoundHalfUp(t *testing.T) {
	f, err := FromDecimalString("1.2345675")
	require.NoError(t, err)
	require.Equal(t, Fixed(1_234_568), f)

	f, err = FromDecimalString("0.1234564")
	require.NoError(t, err)
	require.Equal(t, Fixed(123_456), f)

	f, err = FromDecimalString("-2.5")
	require.NoError(t, err)
	require.Equal(t, Fixed(-2_500_000), f)

	_, err = FromDecimalString("abc")
	require.ErrorIs(t, err, ErrInvalidDecimal)
}

func TestFromRatio(t *testing.T) {
	f, err := FromRatio(1, 4)
	require.NoError(t, err)
	require.Equal(t, Fixed(250_000), f)
}

func TestHashFixedDeterministic(t *testing.T) {
	a := HashFixed(Fixed(42))
	b := HashFixed(Fixed(42))
	require.Equal(t, a, b)

	c := HashFixed(Fixed(43))
	require.NotEqual(t, a, c)
}

func TestHashFixedSliceDeterministic(t *testing.T) {
	a := HashFixedSlice([]Fixed{1, 2, 3})
	b := HashFixedSlice([]Fixed{1, 2, 3})
	require.Equal(t, a, b)
}

func TestString(t *testing.T) {
	f, _ := ToFixed(99)
	require.Equal(t, "99.000000", f.String())
}
