/*

FixedPoint is an unsigned decimal with 18 fractional digits stored as a 128-bit
integer. Products and quotients are computed on 256-bit intermediates, so the
only way an operation fails is when the final result does not fit.

*/

package fixedpoint

import (
	"encoding/json"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/holiman/uint256"
	"lukechampine.com/uint128"

	"github.com/fluxdex/flux-core/internal/dexerrors"
)

// Decimals is the number of fractional digits carried by a FixedPoint.
const Decimals = 18

// ScaleUint64 is 10^18, the raw value of 1.0.
const ScaleUint64 uint64 = 1_000_000_000_000_000_000

var (
	// Scale is 10^18 as a 128-bit value.
	Scale = uint128.From64(ScaleUint64)

	scale256 = uint256.NewInt(ScaleUint64)

	// Zero is 0.0
	Zero = FixedPoint{}
	// One is 1.0
	One = FixedPoint{Value: Scale}
)

type FixedPoint struct {
	Value uint128.Uint128
}

// New wraps an already-scaled raw value.
func New(raw uint128.Uint128) FixedPoint {
	return FixedPoint{Value: raw}
}

// FromUint64 returns n as a FixedPoint. n·10^18 always fits in 128 bits.
func FromUint64(n uint64) FixedPoint {
	return FixedPoint{Value: uint128.From64(n).Mul64(ScaleUint64)}
}

// FromRatio returns num/den, truncated to 18 decimals.
func FromRatio(num, den uint64) (FixedPoint, error) {
	return FromUint64(num).Div(FromUint64(den))
}

// ToUint64 truncates the fractional part. The integer part must fit in 64 bits.
func (f FixedPoint) ToUint64() (uint64, error) {
	q := f.Value.Div64(ScaleUint64)
	if q.Hi != 0 {
		return 0, dexerrors.ErrOverflow.Wrapf("fixed point %s does not fit in 64 bits", f)
	}
	return q.Lo, nil
}

// Mul returns f·o rescaled by 10^18.
func (f FixedPoint) Mul(o FixedPoint) (FixedPoint, error) {
	a, b := to256(f.Value), to256(o.Value)
	prod, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return Zero, dexerrors.ErrOverflow.Wrap("fixed point product exceeds 256 bits")
	}
	prod.Div(prod, scale256)
	v, ok := from256(prod)
	if !ok {
		return Zero, dexerrors.ErrOverflow.Wrap("fixed point product exceeds 128 bits")
	}
	return FixedPoint{Value: v}, nil
}

// Div returns (f·10^18)/o.
func (f FixedPoint) Div(o FixedPoint) (FixedPoint, error) {
	if o.Value.IsZero() {
		return Zero, dexerrors.ErrDivisionByZero.Wrap("fixed point divisor is zero")
	}
	num := new(uint256.Int).Mul(to256(f.Value), scale256)
	num.Div(num, to256(o.Value))
	v, ok := from256(num)
	if !ok {
		return Zero, dexerrors.ErrOverflow.Wrap("fixed point quotient exceeds 128 bits")
	}
	return FixedPoint{Value: v}, nil
}

// Add returns f+o, failing on 128-bit overflow.
func (f FixedPoint) Add(o FixedPoint) (FixedPoint, error) {
	sum := f.Value.AddWrap(o.Value)
	if sum.Cmp(f.Value) < 0 {
		return Zero, dexerrors.ErrOverflow.Wrap("fixed point sum exceeds 128 bits")
	}
	return FixedPoint{Value: sum}, nil
}

// Sub returns f-o, failing when o > f.
func (f FixedPoint) Sub(o FixedPoint) (FixedPoint, error) {
	if f.Value.Cmp(o.Value) < 0 {
		return Zero, dexerrors.ErrUnderflow.Wrap("fixed point difference is negative")
	}
	return FixedPoint{Value: f.Value.Sub(o.Value)}, nil
}

func (f FixedPoint) Cmp(o FixedPoint) int { return f.Value.Cmp(o.Value) }

func (f FixedPoint) IsZero() bool { return f.Value.IsZero() }

// Uint256 returns the raw scaled value widened to 256 bits.
func (f FixedPoint) Uint256() *uint256.Int { return to256(f.Value) }

// ToLegacyDec converts to the cosmos 18-decimal type, which shares the scale.
func (f FixedPoint) ToLegacyDec() sdkmath.LegacyDec {
	return sdkmath.LegacyNewDecFromBigIntWithPrec(f.Value.Big(), Decimals)
}

// FromLegacyDec converts a non-negative cosmos decimal.
func FromLegacyDec(d sdkmath.LegacyDec) (FixedPoint, error) {
	if d.IsNil() || d.IsNegative() {
		return Zero, dexerrors.ErrInvalidCalculation.Wrap("fixed point cannot be negative")
	}
	raw := new(big.Int).Set(d.BigInt())
	if raw.BitLen() > 128 {
		return Zero, dexerrors.ErrOverflow.Wrap("decimal exceeds 128 bits")
	}
	return FixedPoint{Value: uint128.FromBig(raw)}, nil
}

// Parse reads a decimal string such as "1.25".
func Parse(s string) (FixedPoint, error) {
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return Zero, dexerrors.ErrInvalidCalculation.Wrapf("parse %q: %s", s, err)
	}
	return FromLegacyDec(d)
}

// Float64 is a lossy rendering for analytics and logs.
func (f FixedPoint) Float64() float64 {
	v, err := f.ToLegacyDec().Float64()
	if err != nil {
		return 0
	}
	return v
}

func (f FixedPoint) String() string {
	return f.ToLegacyDec().String()
}

func (f FixedPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

func (f *FixedPoint) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func to256(v uint128.Uint128) *uint256.Int {
	return &uint256.Int{v.Lo, v.Hi, 0, 0}
}

func from256(v *uint256.Int) (uint128.Uint128, bool) {
	if v[2] != 0 || v[3] != 0 {
		return uint128.Zero, false
	}
	return uint128.New(v[0], v[1]), true
}
