package fixedpoint

import (
	"encoding/json"
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"
	"pgregory.net/rapid"

	"github.com/fluxdex/flux-core/internal/dexerrors"
)

func TestFromUint64RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.Uint64().Draw(t, "n")
		got, err := FromUint64(n).ToUint64()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != n {
			t.Fatalf("round trip %d -> %d", n, got)
		}
	})
}

func TestMulDiv(t *testing.T) {
	two := FromUint64(2)
	half, err := FromRatio(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "0.500000000000000000", half.String())

	prod, err := two.Mul(half)
	require.NoError(t, err)
	assert.Equal(t, 0, prod.Cmp(One))

	q, err := One.Div(two)
	require.NoError(t, err)
	assert.Equal(t, 0, q.Cmp(half))

	third, err := FromRatio(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333333", third.String())
}

func TestMulUsesWideIntermediate(t *testing.T) {
	// the raw product exceeds 128 bits before it is rescaled
	big := FromUint64(math.MaxUint64)
	prod, err := big.Mul(One)
	require.NoError(t, err)
	assert.Equal(t, 0, prod.Cmp(big))

	_, err = big.Mul(big)
	require.ErrorIs(t, err, dexerrors.ErrOverflow)
}

func TestDivErrors(t *testing.T) {
	_, err := One.Div(Zero)
	require.ErrorIs(t, err, dexerrors.ErrDivisionByZero)

	_, err = New(uint128.Max).Div(New(uint128.From64(1)))
	require.ErrorIs(t, err, dexerrors.ErrOverflow)
}

func TestToUint64Overflow(t *testing.T) {
	_, err := New(uint128.Max).ToUint64()
	require.ErrorIs(t, err, dexerrors.ErrOverflow)
}

func TestAddSub(t *testing.T) {
	sum, err := One.Add(One)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Cmp(FromUint64(2)))

	_, err = New(uint128.Max).Add(One)
	require.ErrorIs(t, err, dexerrors.ErrOverflow)

	_, err = Zero.Sub(One)
	require.ErrorIs(t, err, dexerrors.ErrUnderflow)
}

func TestLegacyDecBridge(t *testing.T) {
	d := sdkmath.LegacyMustNewDecFromStr("1.25")
	f, err := FromLegacyDec(d)
	require.NoError(t, err)
	assert.True(t, f.ToLegacyDec().Equal(d))
	assert.InDelta(t, 1.25, f.Float64(), 1e-12)

	_, err = FromLegacyDec(sdkmath.LegacyNewDec(-1))
	require.ErrorIs(t, err, dexerrors.ErrInvalidCalculation)
}

func TestJSON(t *testing.T) {
	f, err := Parse("2.5")
	require.NoError(t, err)

	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `"2.500000000000000000"`, string(b))

	var back FixedPoint
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, 0, back.Cmp(f))
}
