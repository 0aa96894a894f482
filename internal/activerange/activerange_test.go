package activerange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/fixedpoint"
)

func mustParse(t *testing.T, s string) fixedpoint.FixedPoint {
	t.Helper()
	f, err := fixedpoint.Parse(s)
	require.NoError(t, err)
	return f
}

func TestCalculateOptimalRange(t *testing.T) {
	tests := []struct {
		name       string
		price      string
		volatility uint16
		tier       uint8
		wantLower  string
		wantUpper  string
	}{
		{name: "conservative calm", price: "1", tier: TierConservative, wantLower: "0.833333333333333333", wantUpper: "1.200000000000000000"},
		{name: "aggressive calm", price: "1", tier: TierAggressive, wantLower: "0.666666666666666666", wantUpper: "1.500000000000000000"},
		{name: "balanced volatile", price: "1", volatility: 1000, tier: TierBalanced, wantLower: "0.357142857142857142", wantUpper: "2.800000000000000000"},
		{name: "scales with price", price: "10", tier: TierConservative, wantLower: "8.333333333333333333", wantUpper: "12.000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lower, upper, err := CalculateOptimalRange(mustParse(t, tt.price), tt.volatility, tt.tier)
			require.NoError(t, err)
			assert.Equal(t, tt.wantLower, lower.String())
			assert.Equal(t, tt.wantUpper, upper.String())
		})
	}
}

func TestCalculateOptimalRangeInvalidTier(t *testing.T) {
	for _, tier := range []uint8{0, 4, 255} {
		_, _, err := CalculateOptimalRange(fixedpoint.One, 0, tier)
		require.ErrorIs(t, err, dexerrors.ErrInvalidRiskProfile)
	}
}

func TestRangeWidensWithRiskAndVolatility(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		price := fixedpoint.FromUint64(rapid.Uint64Range(1, 1e9).Draw(t, "price"))
		vol := rapid.Uint16Range(0, 9_999).Draw(t, "vol")

		consLower, consUpper, err := CalculateOptimalRange(price, vol, TierConservative)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		aggLower, aggUpper, err := CalculateOptimalRange(price, vol, TierAggressive)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if consLower.Cmp(aggLower) < 0 || consUpper.Cmp(aggUpper) > 0 {
			t.Fatalf("conservative [%s, %s] not inside aggressive [%s, %s]", consLower, consUpper, aggLower, aggUpper)
		}
		if consLower.Cmp(price) > 0 || consUpper.Cmp(price) < 0 {
			t.Fatalf("range [%s, %s] does not contain %s", consLower, consUpper, price)
		}

		_, wider, err := CalculateOptimalRange(price, vol+1, TierConservative)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if wider.Cmp(consUpper) < 0 {
			t.Fatalf("higher volatility narrowed the range")
		}
	})
}

func TestShouldRebalance(t *testing.T) {
	lower := mustParse(t, "1")
	upper := mustParse(t, "2")

	tests := []struct {
		name      string
		price     string
		threshold uint16
		want      bool
	}{
		{name: "middle of range", price: "1.5", threshold: 500, want: false},
		{name: "on lower edge", price: "1.05", threshold: 500, want: true},
		{name: "just inside lower edge", price: "1.051", threshold: 500, want: false},
		{name: "near upper bound", price: "1.96", threshold: 500, want: true},
		{name: "below range", price: "0.5", threshold: 500, want: true},
		{name: "above range", price: "3", threshold: 500, want: true},
		{name: "zero threshold inside", price: "1.000000000000000001", threshold: 0, want: false},
		{name: "zero threshold at bound", price: "1", threshold: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldRebalance(mustParse(t, tt.price), lower, upper, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldRebalanceErrors(t *testing.T) {
	_, err := ShouldRebalance(fixedpoint.One, fixedpoint.FromUint64(2), fixedpoint.One, 500)
	require.ErrorIs(t, err, dexerrors.ErrInvalidPriceRange)

	_, err = ShouldRebalance(fixedpoint.One, fixedpoint.One, fixedpoint.FromUint64(2), 10_001)
	require.ErrorIs(t, err, dexerrors.ErrInvalidCalculation)
}
