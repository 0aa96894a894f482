/*
This file contains conversions between on-ledger integer amounts, 18-decimal fixed
point values and the float64 values used by analytics and the HTTP API.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"

	"github.com/fluxdex/flux-core/internal/fixedpoint"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

func pow10(precision int) sdkmath.LegacyDec {
	factor := sdkmath.LegacyOneDec()
	for i := 0; i < precision; i++ {
		factor = factor.MulInt64(10)
	}
	return factor
}

// AmountToFloat64 converts a raw token amount to whole units given the mint's decimals.
func AmountToFloat64(amount uint64, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}

	decAmount := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(amount))
	resultFloat, err := decAmount.Quo(pow10(precision)).Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return resultFloat, nil
}

// Float64ToAmount converts whole units to a raw token amount, truncating below the
// mint's smallest unit.
func Float64ToAmount(amount float64, precision int) (uint64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return 0, ErrAmountNegative
	}
	if amount == 0 {
		return 0, nil
	}

	// Use string conversion to avoid floating point precision issues
	decAmount, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.*f", precision, amount))
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	result := decAmount.Mul(pow10(precision)).TruncateInt()
	if !result.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit in 64 bits", ErrConversionFailed, result)
	}
	return result.Uint64(), nil
}

// FixedToFloat64 renders a fixed point value as a finite float64.
func FixedToFloat64(f fixedpoint.FixedPoint) (float64, error) {
	v, err := f.ToLegacyDec().Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, v)
	}
	return v, nil
}

// Float64ToFixed converts a non-negative finite float to fixed point, keeping 18 decimals.
func Float64ToFixed(v float64) (fixedpoint.FixedPoint, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fixedpoint.Zero, fmt.Errorf("%w: value is %f", ErrNotFinite, v)
	}
	if v < 0 {
		return fixedpoint.Zero, ErrAmountNegative
	}
	d, err := sdkmath.LegacyNewDecFromStr(fmt.Sprintf("%.18f", v))
	if err != nil {
		return fixedpoint.Zero, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	return fixedpoint.FromLegacyDec(d)
}

// ToFloat is FixedToFloat64 for display paths that cannot act on an error.
func ToFloat(f fixedpoint.FixedPoint) float64 {
	v, err := FixedToFloat64(f)
	if err != nil {
		return 0
	}
	return v
}
