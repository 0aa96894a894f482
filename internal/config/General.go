package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/fluxdex/flux-core/internal/state"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	ModeSimulation = "simulation"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ProgramID seeds every derived pool, vault and position identifier.
	ProgramID solana.PublicKey

	// FluxMode selects the token ledger. Only "simulation" is supported.
	FluxMode string

	// StoreBackend is "memory" or "postgres".
	StoreBackend string
	// DB holds the Postgres connection settings, read only for the postgres backend.
	DB state.DBConfig

	// WebPort is the HTTP listen port.
	WebPort string
	// ALMInterval is the period of the fee/range management cycle. Zero disables it.
	ALMInterval time.Duration

	// LogLevel is one of trace, debug, info, warn, error.
	LogLevel string
	// LogFile, when set, receives a JSON copy of every log line.
	LogFile string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// FLUX_MODE is required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	FluxMode, err = getEnv("FLUX_MODE")
	if err != nil {
		return err
	}
	if FluxMode != ModeSimulation {
		return errors.New("FLUX_MODE must be '" + ModeSimulation + "', got: " + FluxMode)
	}

	programID := getEnvOrDefault("FLUX_PROGRAM_ID", solana.SystemProgramID.String())
	ProgramID, err = solana.PublicKeyFromBase58(programID)
	if err != nil {
		return errors.New("environment variable FLUX_PROGRAM_ID must be a base58 public key, got: " + programID)
	}

	StoreBackend = getEnvOrDefault("STORE_BACKEND", StoreMemory)
	switch StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if err := loadDBConfig(); err != nil {
			return err
		}
	default:
		return errors.New("STORE_BACKEND must be 'memory' or 'postgres', got: " + StoreBackend)
	}

	WebPort = getEnvOrDefault("WEB_PORT", "8080")

	ALMInterval, err = getEnvAsDuration("ALM_INTERVAL", 10*time.Minute)
	if err != nil {
		return err
	}

	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFile = getEnvOrDefault("LOG_FILE", "")

	log.Debug().
		Str("ProgramID", ProgramID.String()).
		Str("StoreBackend", StoreBackend).
		Str("WebPort", WebPort).
		Dur("ALMInterval", ALMInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// loadDBConfig reads the DB_* variables. DB_USER and DB_NAME are required.
func loadDBConfig() error {
	var err error

	DB.Host = getEnvOrDefault("DB_HOST", "localhost")
	port, err := getEnvAsUint64OrDefault("DB_PORT", 5432)
	if err != nil {
		return err
	}
	DB.Port = int(port)

	DB.User, err = getEnv("DB_USER")
	if err != nil {
		return err
	}
	DB.Password = getEnvOrDefault("DB_PASSWORD", "")
	DB.DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}
	DB.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back to def when unset or empty.
func getEnvOrDefault(key, def string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return def
}

// getEnvAsUint64OrDefault retrieves an environment variable as a uint64. Returns error if set but invalid.
func getEnvAsUint64OrDefault(key string, def uint64) (uint64, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDuration retrieves an environment variable as a time.Duration such as "5m".
func getEnvAsDuration(key string, def time.Duration) (time.Duration, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value < 0 {
		return 0, errors.New("environment variable " + key + " must be a non-negative duration, got: " + valueStr)
	}
	return value, nil
}
