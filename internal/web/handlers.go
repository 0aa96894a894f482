package web

import (
	"net/http"
	"strconv"

	"github.com/fluxdex/flux-core/internal/activerange"
	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/types"
	"github.com/fluxdex/flux-core/internal/utils"
)

// queryLimit reads ?limit= and falls back to def when it is missing or out of range.
func queryLimit(r *http.Request, def, ceiling int) int {
	limit := def
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= ceiling {
			limit = parsed
		}
	}
	return limit
}

func (ws *WebServer) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := state.GetProtocolSummary(r.Context(), ws.store)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) handleGetParameters(w http.ResponseWriter, r *http.Request) {
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"parameters": ws.service.Parameters(),
	})
}

// handleGetCycles returns the most recent management cycles, newest first.
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 20, 100)
	cycles, err := ws.store.GetRecentCycles(r.Context(), limit)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	})
}

func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycles, err := ws.store.GetRecentCycles(r.Context(), 1)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	if len(cycles) == 0 {
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found", "", 0)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycles[0])
}

func (ws *WebServer) handleListPools(w http.ResponseWriter, r *http.Request) {
	pools, err := ws.service.ListPools(r.Context())
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pools": pools,
		"count": len(pools),
	})
}

func (ws *WebServer) handleInitializePool(w http.ResponseWriter, r *http.Request) {
	var req types.InitializePoolRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	pool, err := ws.service.InitializePool(r.Context(), req)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusCreated, pool)
}

// handleGetPool returns the pool with position statistics and its price.
func (ws *WebServer) handleGetPool(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	summary, err := state.GetPoolSummary(r.Context(), ws.store, pool)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, summary)
}

func (ws *WebServer) handleSetPoolFlags(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var req types.PoolFlagsRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	req.Pool = pool
	updated, err := ws.service.SetPoolFlags(r.Context(), req)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, updated)
}

func (ws *WebServer) handleListPositions(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	positions, err := ws.service.ListPositions(r.Context(), pool)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
	})
}

func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	owner, err := pathKey(r, "owner")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	pos, err := ws.service.GetPosition(r.Context(), owner, pool)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, pos)
}

func (ws *WebServer) handleConfigurePosition(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var req types.ConfigurePositionRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	req.Pool = pool
	pos, err := ws.service.ConfigurePosition(r.Context(), req)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, pos)
}

// handleQuote previews a swap. a_to_b defaults to true.
func (ws *WebServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	amountIn, err := strconv.ParseUint(q.Get("amount_in"), 10, 64)
	if err != nil {
		ws.writeError(w, r, dexerrors.ErrInvalidInputAmount.Wrapf("amount_in %q", q.Get("amount_in")))
		return
	}
	aToB := true
	if raw := q.Get("a_to_b"); raw != "" {
		if aToB, err = strconv.ParseBool(raw); err != nil {
			ws.writeError(w, r, dexerrors.ErrInvalidInputAmount.Wrapf("a_to_b %q", raw))
			return
		}
	}

	quote, err := ws.service.Quote(r.Context(), pool, aToB, amountIn)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, quote)
}

// handleRange suggests a price range around the current price for a risk profile.
func (ws *WebServer) handleRange(w http.ResponseWriter, r *http.Request) {
	addr, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	risk := types.RiskBalanced
	if raw := r.URL.Query().Get("risk"); raw != "" {
		if risk, err = types.ParseRiskProfile(raw); err != nil {
			ws.writeError(w, r, err)
			return
		}
	}

	pool, err := ws.service.GetPool(r.Context(), addr)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	price := pool.CurrentPrice()
	lower, upper, err := activerange.CalculateOptimalRange(price, pool.VolatilityScore, risk.Tier())
	if err != nil {
		ws.writeError(w, r, err)
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"pool":             pool.Address,
		"risk_profile":     risk,
		"volatility_score": pool.VolatilityScore,
		"price":            price,
		"lower":            lower,
		"upper":            upper,
		"price_approx":     utils.ToFloat(price),
	})
}

func (ws *WebServer) handleAddLiquidity(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var req types.AddLiquidityRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	req.Pool = pool
	res, err := ws.service.AddLiquidity(r.Context(), req)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleRemoveLiquidity(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var req types.RemoveLiquidityRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	req.Pool = pool
	res, err := ws.service.RemoveLiquidity(r.Context(), req)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleSwap(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	var req types.SwapRequest
	if err := decodeBody(w, r, &req); err != nil {
		ws.writeError(w, r, err)
		return
	}
	req.Pool = pool
	res, err := ws.service.Swap(r.Context(), req)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, res)
}

func (ws *WebServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	limit := queryLimit(r, 50, 1000)
	events, err := ws.service.ListEvents(r.Context(), pool, limit)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
		"limit":  limit,
	})
}

func (ws *WebServer) handleRecentPrices(w http.ResponseWriter, r *http.Request) {
	pool, err := pathKey(r, "pool")
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	limit := queryLimit(r, ws.service.Parameters().PriceHistoryWindow, 1000)
	prices, err := ws.service.RecentPrices(r.Context(), pool, limit)
	if err != nil {
		ws.writeError(w, r, err)
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"prices": prices,
		"count":  len(prices),
	})
}
