package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/fluxdex/flux-core/internal/alm"
	"github.com/fluxdex/flux-core/internal/config"
	"github.com/fluxdex/flux-core/internal/liquidity"
	"github.com/fluxdex/flux-core/internal/logger"
	"github.com/fluxdex/flux-core/internal/metrics"
	"github.com/fluxdex/flux-core/internal/state"
	"github.com/fluxdex/flux-core/internal/vault"
	"github.com/fluxdex/flux-core/internal/web"
)

const shutdownTimeout = 15 * time.Second

// main is the entry point for the flux daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := logger.Initialize(config.LogLevel, config.LogFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	log.Info().Str("mode", config.FluxMode).Msg("Flux core starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	// Load protocol parameters
	params, err := store.LoadActiveProtocolParameters(ctx, alm.DefaultParametersConfigName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active protocol parameters, using defaults and saving.")
		defaultParams := config.DefaultProtocolParameters
		if _, err := store.SaveProtocolParameters(ctx, defaultParams, alm.DefaultParametersConfigName, alm.DefaultParametersConfigVersion, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default protocol parameters.")
		}
		params = &defaultParams
	}
	log.Info().Msg("Protocol parameters loaded successfully.")

	// --- 2. Wire the service ---
	ledger := vault.NewMemoryLedger()
	m := metrics.New()

	service, err := liquidity.NewService(liquidity.Config{
		Store:      store,
		Tokens:     ledger,
		ProgramID:  config.ProgramID,
		Metrics:    m,
		Parameters: *params,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create liquidity service")
	}

	// --- 3. Start Web Server ---
	webServer, err := web.NewWebServer(web.Config{
		Port:    config.WebPort,
		Service: service,
		Store:   store,
		Metrics: m,
		Ledger:  ledger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting flux API")
		serverErr <- webServer.Start()
	}()

	// --- 4. Start the management loop ---
	if config.ALMInterval > 0 {
		manager, err := alm.NewManager(alm.Config{Service: service, Store: store, Metrics: m})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create liquidity manager")
		}
		go manager.RunLoop(ctx, config.ALMInterval)
	} else {
		log.Warn().Msg("ALM_INTERVAL is 0, automated fee and range management is disabled")
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("Web server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	log.Info().Msg("Flux core stopped")
}

// openStore returns the configured backend, creating the Postgres schema when needed.
func openStore() (state.Store, error) {
	if config.StoreBackend != config.StorePostgres {
		log.Info().Msg("Using in-memory store, state is lost on exit")
		return state.NewMemoryStore(), nil
	}

	db, err := state.OpenDB(config.DB.DSN())
	if err != nil {
		return nil, err
	}
	if err := state.EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return state.NewPostgresStore(db), nil
}
