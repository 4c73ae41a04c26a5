package xeb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	models "github.com/AlcalaRs/Cirq/internal/models/xeb"
)

// DefaultRunTTL is how long a finished run stays retrievable
const DefaultRunTTL = 24 * time.Hour

// ErrRunManagerClosed is returned by Submit after Shutdown
var ErrRunManagerClosed = errors.New("run manager is shut down")

// RunFunc executes one run. Its result is stored on the run and must not be
// modified afterwards.
type RunFunc func(ctx context.Context) (interface{}, error)

// RunManager executes benchmark and characterization runs in the background
// and keeps their status and results in memory
type RunManager struct {
	runs      map[uuid.UUID]*models.Run
	mutex     sync.RWMutex
	ttl       time.Duration
	maxActive int
	active    int
	closed    bool
	cancel    context.CancelFunc
	workers   *pool.ContextPool
}

// NewRunManager creates a run manager. Finished runs expire after ttl;
// maxActive bounds the number of runs pending or running at once, with 0
// meaning no bound.
func NewRunManager(ttl time.Duration, maxActive int) *RunManager {
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RunManager{
		runs:      make(map[uuid.UUID]*models.Run),
		ttl:       ttl,
		maxActive: maxActive,
		cancel:    cancel,
		workers:   pool.New().WithContext(ctx),
	}
}

// Submit registers a run and starts it in the background. It returns a
// snapshot of the pending run.
func (rm *RunManager) Submit(kind models.RunKind, sampler string, numCircuits int, cycleDepths []int, fn RunFunc) (*models.Run, error) {
	rm.mutex.Lock()
	if rm.closed {
		rm.mutex.Unlock()
		return nil, ErrRunManagerClosed
	}
	if rm.maxActive > 0 && rm.active >= rm.maxActive {
		rm.mutex.Unlock()
		return nil, models.ErrTooManyRuns
	}

	now := time.Now()
	run := &models.Run{
		RunID:       uuid.New(),
		Kind:        kind,
		Status:      models.RunPending,
		Sampler:     sampler,
		NumCircuits: numCircuits,
		CycleDepths: append([]int(nil), cycleDepths...),
		CreatedAt:   now,
		ExpiresAt:   now.Add(rm.ttl),
	}
	rm.runs[run.RunID] = run
	rm.active++
	snapshot := copyRun(run)

	// The pool is unbounded, so Go never blocks while the lock is held.
	rm.workers.Go(func(ctx context.Context) error {
		rm.execute(ctx, run.RunID, fn)
		return nil
	})
	rm.mutex.Unlock()

	zap.L().Info("run submitted",
		zap.String("run_id", run.RunID.String()), zap.String("kind", string(kind)), zap.String("sampler", sampler))
	return snapshot, nil
}

func (rm *RunManager) execute(ctx context.Context, runID uuid.UUID, fn RunFunc) {
	defer func() {
		rm.mutex.Lock()
		rm.active--
		rm.mutex.Unlock()
	}()

	rm.updateRunStatus(runID, models.RunRunning, nil, "")
	result, err := fn(ctx)
	if err != nil {
		zap.L().Warn("run failed", zap.String("run_id", runID.String()), zap.Error(err))
		rm.updateRunStatus(runID, models.RunFailed, nil, err.Error())
		return
	}
	zap.L().Info("run completed", zap.String("run_id", runID.String()))
	rm.updateRunStatus(runID, models.RunCompleted, result, "")
}

// updateRunStatus updates the status of a run
func (rm *RunManager) updateRunStatus(runID uuid.UUID, status models.RunStatus, result interface{}, message string) {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	run, exists := rm.runs[runID]
	if !exists {
		return
	}
	now := time.Now()
	run.Status = status
	run.Result = result
	run.Message = message

	if status == models.RunRunning {
		run.StartedAt = &now
	}
	if status.IsTerminal() {
		run.CompletedAt = &now
		run.ExpiresAt = now.Add(rm.ttl)
	}
}

// GetRun retrieves a snapshot of a run by ID
func (rm *RunManager) GetRun(runID uuid.UUID) (*models.Run, error) {
	rm.mutex.RLock()
	defer rm.mutex.RUnlock()

	run, exists := rm.runs[runID]
	if !exists {
		return nil, models.ErrRunNotFound
	}
	if run.Status.IsTerminal() && time.Now().After(run.ExpiresAt) {
		return nil, models.ErrRunExpired
	}
	return copyRun(run), nil
}

// CleanupExpiredRuns removes finished runs past their expiry and returns how
// many were removed. Runs still in progress are kept.
func (rm *RunManager) CleanupExpiredRuns() int {
	rm.mutex.Lock()
	defer rm.mutex.Unlock()

	now := time.Now()
	removed := 0
	for id, run := range rm.runs {
		if run.Status.IsTerminal() && now.After(run.ExpiresAt) {
			delete(rm.runs, id)
			removed++
		}
	}
	return removed
}

// Shutdown cancels runs in progress and waits for them to return. Later
// submissions fail with ErrRunManagerClosed.
func (rm *RunManager) Shutdown() {
	rm.mutex.Lock()
	if rm.closed {
		rm.mutex.Unlock()
		return
	}
	rm.closed = true
	rm.mutex.Unlock()

	rm.cancel()
	_ = rm.workers.Wait()
}

func copyRun(run *models.Run) *models.Run {
	c := *run
	c.CycleDepths = append([]int(nil), run.CycleDepths...)
	return &c
}
