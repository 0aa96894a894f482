package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxdex/flux-core/internal/fixedpoint"
)

func TestAmountToFloat64(t *testing.T) {
	v, err := AmountToFloat64(1_500_000, 6)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 1e-12)

	v, err = AmountToFloat64(42, 0)
	require.NoError(t, err)
	assert.Equal(t, 42.0, v)

	_, err = AmountToFloat64(1, 19)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
}

func TestFloat64ToAmount(t *testing.T) {
	tests := []struct {
		name      string
		amount    float64
		precision int
		want      uint64
		wantErr   error
	}{
		{"whole units", 2, 6, 2_000_000, nil},
		{"fraction truncated", 1.2345678, 6, 1_234_567, nil},
		{"zero", 0, 9, 0, nil},
		{"negative", -1, 6, 0, ErrAmountNegative},
		{"nan", math.NaN(), 6, 0, ErrNotFinite},
		{"bad precision", 1, -1, 0, ErrInvalidPrecision},
		{"too large", 1e30, 0, 0, ErrConversionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Float64ToAmount(tt.amount, tt.precision)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFixedConversions(t *testing.T) {
	half, err := fixedpoint.FromRatio(1, 2)
	require.NoError(t, err)

	v, err := FixedToFloat64(half)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v)
	assert.Equal(t, 0.5, ToFloat(half))

	back, err := Float64ToFixed(0.5)
	require.NoError(t, err)
	assert.Equal(t, half, back)

	_, err = Float64ToFixed(-0.1)
	assert.ErrorIs(t, err, ErrAmountNegative)
	_, err = Float64ToFixed(math.Inf(1))
	assert.ErrorIs(t, err, ErrNotFinite)
}
