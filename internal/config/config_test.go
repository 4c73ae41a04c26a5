package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	models "github.com/AlcalaRs/Cirq/internal/models/xeb"
	"github.com/AlcalaRs/Cirq/internal/xeb"
)

var allKeys = []string{
	"PORT", "LOG_LEVEL", "XEB_SAMPLER", "XEB_NOISE", "XEB_SEED", "XEB_REPETITIONS", "XEB_BATCH_SIZE",
	"XEB_SAMPLER_WORKERS", "XEB_SIM_WORKERS", "XEB_MAX_RUNS", "XEB_RUN_TTL",
	"QISKIT_API_KEY", "QISKIT_BASE_URL", "QISKIT_BACKEND",
}

// clearEnv blanks every setting for the duration of the test
func clearEnv(t *testing.T) {
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Equal(t, models.SamplerSimulator, cfg.Sampler)
	assert.Equal(t, 0.01, cfg.Noise)
	assert.Equal(t, uint64(0), cfg.Seed)
	assert.Equal(t, xeb.DefaultRepetitions, cfg.Repetitions)
	assert.Equal(t, xeb.DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, xeb.DefaultSamplerWorkers, cfg.SamplerWorkers)
	assert.Equal(t, 0, cfg.SimulationWorkers)
	assert.Equal(t, 4, cfg.MaxActiveRuns)
	assert.Equal(t, xeb.DefaultRunTTL, cfg.RunTTL)
	assert.Equal(t, "ibmq_qasm_simulator", cfg.QiskitBackend)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("XEB_SAMPLER", "qiskit")
	t.Setenv("QISKIT_API_KEY", "secret")
	t.Setenv("XEB_NOISE", "0.05")
	t.Setenv("XEB_SEED", "1234")
	t.Setenv("XEB_REPETITIONS", "500")
	t.Setenv("XEB_SIM_WORKERS", "3")
	t.Setenv("XEB_RUN_TTL", "90m")

	cfg, err := Load(missingFile(t))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, models.SamplerQiskit, cfg.Sampler)
	assert.Equal(t, "secret", cfg.QiskitAPIKey)
	assert.Equal(t, 0.05, cfg.Noise)
	assert.Equal(t, uint64(1234), cfg.Seed)
	assert.Equal(t, 500, cfg.Repetitions)
	assert.Equal(t, 3, cfg.SimulationWorkers)
	assert.Equal(t, 90*time.Minute, cfg.RunTTL)
}

func TestLoadFromDotEnvFile(t *testing.T) {
	clearEnv(t)
	// Set by the file below, so it must be unset beforehand and afterwards.
	const key = "XEB_BATCH_SIZE"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=17\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 17, cfg.BatchSize)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad repetitions", "XEB_REPETITIONS", "many"},
		{"negative workers", "XEB_SAMPLER_WORKERS", "-1"},
		{"bad seed", "XEB_SEED", "-3"},
		{"noise above one", "XEB_NOISE", "1.5"},
		{"bad noise", "XEB_NOISE", "loud"},
		{"bad ttl", "XEB_RUN_TTL", "forever"},
		{"bad log level", "LOG_LEVEL", "chatty"},
		{"unknown sampler", "XEB_SAMPLER", "braket"},
		{"qiskit without key", "XEB_SAMPLER", "qiskit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(missingFile(t))
			assert.Error(t, err)
		})
	}
}
