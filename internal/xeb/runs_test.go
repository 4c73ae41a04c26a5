package xeb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/AlcalaRs/Cirq/internal/models/xeb"
)

func waitForTerminal(t *testing.T, rm *RunManager, id uuid.UUID) *models.Run {
	t.Helper()
	var run *models.Run
	require.Eventually(t, func() bool {
		r, err := rm.GetRun(id)
		if err != nil {
			return false
		}
		run = r
		return r.Status.IsTerminal()
	}, 5*time.Second, 5*time.Millisecond)
	return run
}

func TestRunManagerCompletesRun(t *testing.T) {
	rm := NewRunManager(time.Hour, 0)
	defer rm.Shutdown()

	release := make(chan struct{})
	run, err := rm.Submit(models.RunBenchmark, "fake", 3, []int{1, 2}, func(ctx context.Context) (interface{}, error) {
		<-release
		return []DepthFidelity{{CycleDepth: 1, Fidelity: 0.9}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.RunPending, run.Status)
	assert.Equal(t, 3, run.NumCircuits)
	assert.Equal(t, []int{1, 2}, run.CycleDepths)

	require.Eventually(t, func() bool {
		r, err := rm.GetRun(run.RunID)
		return err == nil && r.Status == models.RunRunning
	}, 5*time.Second, 5*time.Millisecond)
	close(release)

	done := waitForTerminal(t, rm, run.RunID)
	assert.Equal(t, models.RunCompleted, done.Status)
	assert.Equal(t, []DepthFidelity{{CycleDepth: 1, Fidelity: 0.9}}, done.Result)
	require.NotNil(t, done.StartedAt)
	require.NotNil(t, done.CompletedAt)
	assert.Empty(t, done.Message)
}

func TestRunManagerRecordsFailure(t *testing.T) {
	rm := NewRunManager(time.Hour, 0)
	defer rm.Shutdown()

	run, err := rm.Submit(models.RunCharacterize, "fake", 1, []int{1}, func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("sampler offline")
	})
	require.NoError(t, err)

	done := waitForTerminal(t, rm, run.RunID)
	assert.Equal(t, models.RunFailed, done.Status)
	assert.Equal(t, "sampler offline", done.Message)
	assert.Nil(t, done.Result)
}

func TestRunManagerGetRunErrors(t *testing.T) {
	rm := NewRunManager(time.Millisecond, 0)
	defer rm.Shutdown()

	_, err := rm.GetRun(uuid.New())
	assert.ErrorIs(t, err, models.ErrRunNotFound)

	run, err := rm.Submit(models.RunBenchmark, "fake", 1, []int{0}, func(ctx context.Context) (interface{}, error) {
		return "done", nil
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := rm.GetRun(run.RunID)
		return errors.Is(err, models.ErrRunExpired)
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, rm.CleanupExpiredRuns())
	_, err = rm.GetRun(run.RunID)
	assert.ErrorIs(t, err, models.ErrRunNotFound)
}

func TestRunManagerCleanupKeepsActiveRuns(t *testing.T) {
	rm := NewRunManager(time.Millisecond, 0)
	release := make(chan struct{})
	run, err := rm.Submit(models.RunBenchmark, "fake", 1, []int{0}, func(ctx context.Context) (interface{}, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 0, rm.CleanupExpiredRuns())
	_, err = rm.GetRun(run.RunID)
	assert.NoError(t, err)

	close(release)
	rm.Shutdown()
}

func TestRunManagerLimitsActiveRuns(t *testing.T) {
	rm := NewRunManager(time.Hour, 1)
	defer rm.Shutdown()

	release := make(chan struct{})
	first, err := rm.Submit(models.RunBenchmark, "fake", 1, []int{0}, func(ctx context.Context) (interface{}, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	_, err = rm.Submit(models.RunBenchmark, "fake", 1, []int{0}, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, models.ErrTooManyRuns)

	close(release)
	waitForTerminal(t, rm, first.RunID)
	require.Eventually(t, func() bool {
		_, err := rm.Submit(models.RunBenchmark, "fake", 1, []int{0}, func(ctx context.Context) (interface{}, error) {
			return nil, nil
		})
		return err == nil
	}, 5*time.Second, 5*time.Millisecond)
}

func TestRunManagerShutdownCancelsRuns(t *testing.T) {
	rm := NewRunManager(time.Hour, 0)
	run, err := rm.Submit(models.RunCharacterize, "fake", 1, []int{0}, func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)

	rm.Shutdown()

	done, err := rm.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunFailed, done.Status)
	assert.Equal(t, context.Canceled.Error(), done.Message)

	_, err = rm.Submit(models.RunBenchmark, "fake", 1, []int{0}, func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrRunManagerClosed)
}
