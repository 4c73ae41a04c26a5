// Package config loads the API server settings from the environment, after
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	models "github.com/AlcalaRs/Cirq/internal/models/xeb"
	"github.com/AlcalaRs/Cirq/internal/xeb"
)

// Config holds every setting of the API server
type Config struct {
	Port     string
	LogLevel zapcore.Level

	Sampler           models.SamplerType
	Noise             float64
	Seed              uint64
	Repetitions       int
	BatchSize         int
	SamplerWorkers    int
	SimulationWorkers int
	MaxActiveRuns     int
	RunTTL            time.Duration

	QiskitAPIKey  string
	QiskitBaseURL string
	QiskitBackend string
}

// Load reads the given .env files, ".env" when none are named, then builds
// the configuration from the environment. Missing files are skipped;
// variables already set in the environment win over file values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		Sampler:       models.SamplerType(getenv("XEB_SAMPLER", string(models.SamplerSimulator))),
		QiskitAPIKey:  os.Getenv("QISKIT_API_KEY"),
		QiskitBaseURL: os.Getenv("QISKIT_BASE_URL"),
		QiskitBackend: getenv("QISKIT_BACKEND", "ibmq_qasm_simulator"),
	}

	var err error
	if cfg.LogLevel, err = zapcore.ParseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.Noise, err = parseFloat("XEB_NOISE", 0.01); err != nil {
		return nil, err
	}
	if cfg.Noise < 0 || cfg.Noise > 1 {
		return nil, fmt.Errorf("XEB_NOISE must be in [0, 1], got %v", cfg.Noise)
	}
	if cfg.Seed, err = parseUint("XEB_SEED", 0); err != nil {
		return nil, err
	}

	ints := []struct {
		name  string
		dst   *int
		value int
	}{
		{"XEB_REPETITIONS", &cfg.Repetitions, xeb.DefaultRepetitions},
		{"XEB_BATCH_SIZE", &cfg.BatchSize, xeb.DefaultBatchSize},
		{"XEB_SAMPLER_WORKERS", &cfg.SamplerWorkers, xeb.DefaultSamplerWorkers},
		{"XEB_SIM_WORKERS", &cfg.SimulationWorkers, 0},
		{"XEB_MAX_RUNS", &cfg.MaxActiveRuns, 4},
	}
	for _, v := range ints {
		if *v.dst, err = parseInt(v.name, v.value); err != nil {
			return nil, err
		}
		if *v.dst < 0 {
			return nil, fmt.Errorf("%s must not be negative, got %d", v.name, *v.dst)
		}
	}

	if cfg.RunTTL, err = parseDuration("XEB_RUN_TTL", xeb.DefaultRunTTL); err != nil {
		return nil, err
	}

	switch cfg.Sampler {
	case models.SamplerSimulator:
	case models.SamplerQiskit:
		if cfg.QiskitAPIKey == "" {
			return nil, errors.New("QISKIT_API_KEY is required when XEB_SAMPLER=qiskit")
		}
	default:
		return nil, fmt.Errorf("XEB_SAMPLER must be simulator or qiskit, got %q", cfg.Sampler)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseUint(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
