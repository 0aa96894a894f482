package config

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FLUX_MODE", ModeSimulation)
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ALM_INTERVAL", "")
	t.Setenv("WEB_PORT", "")
	t.Setenv("FLUX_PROGRAM_ID", "")

	require.NoError(t, LoadConfig())
	assert.Equal(t, StoreMemory, StoreBackend)
	assert.Equal(t, "8080", WebPort)
	assert.Equal(t, 10*time.Minute, ALMInterval)
	assert.Equal(t, solana.SystemProgramID, ProgramID)
}

func TestLoadConfigPostgres(t *testing.T) {
	t.Setenv("FLUX_MODE", ModeSimulation)
	t.Setenv("STORE_BACKEND", StorePostgres)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_USER", "flux")
	t.Setenv("DB_NAME", "fluxdex")
	t.Setenv("DB_SSLMODE", "")
	t.Setenv("ALM_INTERVAL", "90s")

	require.NoError(t, LoadConfig())
	assert.Equal(t, "db.internal", DB.Host)
	assert.Equal(t, 6543, DB.Port)
	assert.Equal(t, "disable", DB.SSLMode)
	assert.Equal(t, 90*time.Second, ALMInterval)
}

func TestLoadConfigRejections(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"live mode", map[string]string{"FLUX_MODE": "live"}},
		{"bad program id", map[string]string{"FLUX_MODE": ModeSimulation, "FLUX_PROGRAM_ID": "not-base58!"}},
		{"unknown backend", map[string]string{"FLUX_MODE": ModeSimulation, "STORE_BACKEND": "sqlite"}},
		{"bad interval", map[string]string{"FLUX_MODE": ModeSimulation, "STORE_BACKEND": StoreMemory, "ALM_INTERVAL": "soon"}},
		{"bad db port", map[string]string{"FLUX_MODE": ModeSimulation, "STORE_BACKEND": StorePostgres, "DB_USER": "u", "DB_NAME": "n", "DB_PORT": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"FLUX_PROGRAM_ID", "STORE_BACKEND", "ALM_INTERVAL", "DB_PORT"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Error(t, LoadConfig())
		})
	}
}

func TestDefaultProtocolParameters(t *testing.T) {
	p := DefaultProtocolParameters
	assert.Equal(t, uint16(500), p.DefaultRebalanceThresholdBps)
	assert.Equal(t, uint16(10), p.DefaultBatchSize)
	assert.GreaterOrEqual(t, p.PriceHistoryWindow, 2)
	assert.LessOrEqual(t, p.MaxPriceImpactBps, uint16(10_000))
}
