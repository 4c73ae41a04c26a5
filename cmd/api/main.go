package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/AlcalaRs/Cirq/internal/config"
	"github.com/AlcalaRs/Cirq/internal/handlers"
	models "github.com/AlcalaRs/Cirq/internal/models/xeb"
	"github.com/AlcalaRs/Cirq/internal/xeb"
	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sampler, err := newSampler(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to create sampler", zap.Error(err))
	}
	logger.Info("sampler ready", zap.String("sampler", sampler.Name()), zap.Bool("simulator", sampler.IsSimulator()))

	runs := xeb.NewRunManager(cfg.RunTTL, cfg.MaxActiveRuns)
	xebHandler := handlers.NewXEBHandler(sampler, runs, handlers.Settings{
		Repetitions:       cfg.Repetitions,
		BatchSize:         cfg.BatchSize,
		SamplerWorkers:    cfg.SamplerWorkers,
		SimulationWorkers: cfg.SimulationWorkers,
	})

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), handlers.LoggingMiddleware(logger))
	router.GET("/", handlers.HomeHandler)
	router.GET("/health", handlers.HealthHandler)
	xebHandler.RegisterRoutes(router)

	// Create server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go cleanupLoop(ctx, runs, time.Hour)

	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	runs.Shutdown()
}

// newSampler builds the sampler selected by the configuration
func newSampler(ctx context.Context, cfg *config.Config) (quantum.Sampler, error) {
	if cfg.Sampler == models.SamplerQiskit {
		client, err := quantum.NewQiskitClient(ctx, &quantum.QiskitConfig{
			APIKey:      cfg.QiskitAPIKey,
			BaseURL:     cfg.QiskitBaseURL,
			BackendName: cfg.QiskitBackend,
		})
		if err != nil {
			return nil, err
		}
		return quantum.NewQiskitSampler(client, 10*time.Minute), nil
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return quantum.NewSimulatorSampler(seed, cfg.Noise), nil
}

// cleanupLoop removes expired runs until ctx is done
func cleanupLoop(ctx context.Context, runs *xeb.RunManager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := runs.CleanupExpiredRuns(); n > 0 {
				zap.L().Info("expired runs removed", zap.Int("count", n))
			}
		}
	}
}
