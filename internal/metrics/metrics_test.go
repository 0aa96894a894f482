package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxdex/flux-core/internal/types"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetricsExposition(t *testing.T) {
	m := New()
	pool := solana.NewWallet().PublicKey()

	m.RecordLiquidityAdded(types.LiquidityAdded{Pool: pool, AmountA: 1000, AmountB: 2000, LPTokensMinted: 1414})
	m.RecordSwap(types.Swapped{Pool: pool, AToB: true, AmountIn: 100, FeeAmount: 1, PriceImpact: 10})
	m.ObservePool(types.Pool{Address: pool, TokenAReserve: 1100, TokenBReserve: 1820, LPSupply: 1414, CurrentFeeBps: 30})
	m.RecordRejection("add_liquidity", "slippage")

	body := scrape(t, m)
	assert.Contains(t, body, `flux_dex_liquidity_added_total{pool="`+pool.String()+`",side="B"} 2000`)
	assert.Contains(t, body, `flux_dex_swaps_total{direction="a_to_b",pool="`+pool.String()+`"} 1`)
	assert.Contains(t, body, `flux_dex_lp_token_supply{pool="`+pool.String()+`"} 1414`)
	assert.Contains(t, body, `flux_dex_requests_rejected_total{kind="slippage",operation="add_liquidity"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordSwap(types.Swapped{})
		m.ObservePool(types.Pool{})
		m.RecordRejection("swap", "validation")
	})
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordRejection("swap", "validation")
	assert.NotContains(t, scrape(t, b), `operation="swap"`)
}
