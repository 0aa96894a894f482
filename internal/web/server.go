package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/fluxdex/flux-core/internal/dexerrors"
	"github.com/fluxdex/flux-core/internal/liquidity"
	"github.com/fluxdex/flux-core/internal/logger"
	"github.com/fluxdex/flux-core/internal/metrics"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/vault"
)

// WebServer exposes the liquidity service over HTTP.
type WebServer struct {
	logger  zerolog.Logger
	router  *mux.Router
	port    string
	server  *http.Server
	service *liquidity.Service
	store   state.Store
	ledger  *vault.MemoryLedger
	metrics *metrics.Metrics
	started time.Time
}

// Config holds the dependencies for creating a new WebServer
type Config struct {
	Port    string
	Service *liquidity.Service
	Store   state.Store
	Metrics *metrics.Metrics    // optional, /metrics is not served without it
	Ledger  *vault.MemoryLedger // optional, enables the /api/sim routes
}

// NewWebServer creates a new web server instance
func NewWebServer(cfg Config) (*WebServer, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("liquidity service cannot be nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	ws := &WebServer{
		logger:  logger.GetForComponent("web_server"),
		router:  mux.NewRouter(),
		port:    port,
		service: cfg.Service,
		store:   cfg.Store,
		ledger:  cfg.Ledger,
		metrics: cfg.Metrics,
		started: time.Now(),
	}
	ws.setupRoutes()
	return ws, nil
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if ws.metrics != nil {
		ws.router.Handle("/metrics", ws.metrics.Handler()).Methods("GET")
	}

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/summary", ws.handleGetSummary).Methods("GET")
	api.HandleFunc("/parameters", ws.handleGetParameters).Methods("GET")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")

	api.HandleFunc("/pools", ws.handleListPools).Methods("GET")
	api.HandleFunc("/pools", ws.handleInitializePool).Methods("POST")
	api.HandleFunc("/pools/{pool}", ws.handleGetPool).Methods("GET")
	api.HandleFunc("/pools/{pool}/flags", ws.handleSetPoolFlags).Methods("POST")
	api.HandleFunc("/pools/{pool}/positions", ws.handleListPositions).Methods("GET")
	api.HandleFunc("/pools/{pool}/positions", ws.handleConfigurePosition).Methods("POST")
	api.HandleFunc("/pools/{pool}/positions/{owner}", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/pools/{pool}/quote", ws.handleQuote).Methods("GET")
	api.HandleFunc("/pools/{pool}/range", ws.handleRange).Methods("GET")
	api.HandleFunc("/pools/{pool}/liquidity", ws.handleAddLiquidity).Methods("POST")
	api.HandleFunc("/pools/{pool}/withdraw", ws.handleRemoveLiquidity).Methods("POST")
	api.HandleFunc("/pools/{pool}/swap", ws.handleSwap).Methods("POST")
	api.HandleFunc("/pools/{pool}/events", ws.handleListEvents).Methods("GET")
	api.HandleFunc("/pools/{pool}/prices", ws.handleRecentPrices).Methods("GET")

	if ws.ledger != nil {
		sim := api.PathPrefix("/sim").Subrouter()
		sim.HandleFunc("/mints", ws.handleCreateMint).Methods("POST")
		sim.HandleFunc("/mints/{mint}", ws.handleGetMint).Methods("GET")
		sim.HandleFunc("/accounts", ws.handleCreateAccount).Methods("POST")
		sim.HandleFunc("/accounts/{owner}", ws.handleListAccounts).Methods("GET")
		sim.HandleFunc("/faucet", ws.handleFaucet).Methods("POST")
	}

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the router, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (ws *WebServer) Start() error {
	ws.logger.Info().Str("port", ws.port).Msg("Starting web server")

	ws.server = &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones to finish.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	if ws.server == nil {
		return nil
	}
	ws.logger.Info().Msg("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// handleHealth reports process statistics plus store and cycle status.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	storeHealthy := ws.store.Ping(r.Context()) == nil

	cycleInfo := map[string]interface{}{
		"current_cycle":   0,
		"last_cycle_time": nil,
		"last_errors":     0,
	}
	if current, err := ws.store.GetCurrentCycleNumber(r.Context()); err == nil {
		cycleInfo["current_cycle"] = current
	}
	if cycles, err := ws.store.GetRecentCycles(r.Context(), 1); err == nil && len(cycles) > 0 {
		cycleInfo["last_cycle_time"] = cycles[0].Timestamp
		cycleInfo["last_errors"] = len(cycles[0].Errors)
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !storeHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":       "fluxd",
			"program_id": ws.service.Deriver().ProgramID.String(),
			"simulation": ws.ledger != nil,
		},
		"flux_status": map[string]interface{}{
			"store_healthy": storeHealthy,
			"cycle_info":    cycleInfo,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// pathKey parses a base58 identifier from the route variables.
func pathKey(r *http.Request, name string) (solana.PublicKey, error) {
	raw := mux.Vars(r)[name]
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, dexerrors.ErrInvalidAccount.Wrapf("%s %q: %v", name, raw, err)
	}
	return key, nil
}

// decodeBody reads a JSON request body into dst, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dexerrors.ErrInvalidInputAmount.Wrapf("malformed request body: %v", err)
	}
	return nil
}

// statusFor maps an error kind to the HTTP status returned to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, dexerrors.ErrAccountNotFound), errors.Is(err, dexerrors.ErrPositionNotFound):
		return http.StatusNotFound
	}
	switch dexerrors.Kind(err) {
	case dexerrors.KindValidation:
		return http.StatusBadRequest
	case dexerrors.KindState:
		return http.StatusConflict
	case dexerrors.KindSlippage, dexerrors.KindInsufficientResource, dexerrors.KindArithmetic:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it with the status its kind maps to.
func (ws *WebServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		ws.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
		ws.writeErrorResponse(w, status, "internal error", "", 0)
		return
	}
	ws.writeErrorResponse(w, status, err.Error(), string(dexerrors.Kind(err)), dexerrors.Code(err))
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		ws.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message, kind string, code uint32) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
	if kind != "" {
		response["kind"] = kind
		response["code"] = code
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		ws.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
