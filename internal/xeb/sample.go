package xeb

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

// Sampling defaults
const (
	DefaultRepetitions    = 10000
	DefaultBatchSize      = 9
	DefaultSamplerWorkers = 2
)

type sampleConfig struct {
	repetitions int
	batchSize   int
	workers     int
	progress    Reporter
}

// SampleOption configures SampleTwoQubitXEBCircuits
type SampleOption func(*sampleConfig)

// WithRepetitions sets the number of shots per (circuit, cycle depth)
func WithRepetitions(n int) SampleOption {
	return func(c *sampleConfig) { c.repetitions = n }
}

// WithBatchSize sets how many tasks go into one sampler call
func WithBatchSize(n int) SampleOption {
	return func(c *sampleConfig) { c.batchSize = n }
}

// WithSamplerWorkers bounds the number of sampler calls in flight
func WithSamplerWorkers(n int) SampleOption {
	return func(c *sampleConfig) { c.workers = n }
}

// WithProgress sets the progress reporter. The default reports nothing.
func WithProgress(r Reporter) SampleOption {
	return func(c *sampleConfig) { c.progress = r }
}

// sampleTask is one circuit truncated to a cycle depth with a terminal
// measurement appended
type sampleTask struct {
	key      TaskKey
	prepared quantum.Circuit
}

type sampledRecord struct {
	key   TaskKey
	probs []float64
}

// SampleTwoQubitXEBCircuits samples every circuit of the library at every
// cycle depth. A circuit sampled at depth d is truncated to 2d+1 moments and
// measured on both qubits. All circuits must act on the same two qubits.
//
// Tasks are grouped into batches, and batches run concurrently through
// sampler.RunBatch on a bounded pool. The first sampler error is returned;
// the sampler itself is responsible for bounding how long one call may
// block.
func SampleTwoQubitXEBCircuits(ctx context.Context, sampler quantum.Sampler, circuits []quantum.Circuit, cycleDepths []int, opts ...SampleOption) (SampledTable, error) {
	cfg := sampleConfig{
		repetitions: DefaultRepetitions,
		batchSize:   DefaultBatchSize,
		workers:     DefaultSamplerWorkers,
		progress:    NoProgress{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.repetitions <= 0 || cfg.batchSize <= 0 || cfg.workers <= 0 {
		return nil, fmt.Errorf("%w: repetitions, batch size and workers must be positive, got %d, %d and %d",
			quantum.ErrInvalidArgument, cfg.repetitions, cfg.batchSize, cfg.workers)
	}

	q0, q1, err := twoQubitsOf(circuits)
	if err != nil {
		return nil, err
	}

	tasks := make([]sampleTask, 0, len(cycleDepths)*len(circuits))
	seen := make(map[int]bool, len(cycleDepths))
	for _, depth := range cycleDepths {
		if depth < 0 {
			return nil, fmt.Errorf("%w: negative cycle depth %d", quantum.ErrInvalidArgument, depth)
		}
		if seen[depth] {
			continue
		}
		seen[depth] = true
		for i, circuit := range circuits {
			truncated, err := circuit.Truncate(2*depth + 1)
			if err != nil {
				return nil, fmt.Errorf("circuit %d at cycle depth %d: %w", i, depth, err)
			}
			tasks = append(tasks, sampleTask{
				key:      TaskKey{CircuitIndex: i, CycleDepth: depth},
				prepared: truncated.Append(quantum.MustMoment(quantum.Measure(MeasurementKey, q0, q1))),
			})
		}
	}

	samplingID := uuid.New()
	logger := zap.L().With(zap.String("sampling_id", samplingID.String()), zap.String("sampler", sampler.Name()))
	logger.Debug("sampling XEB circuits",
		zap.Int("tasks", len(tasks)), zap.Int("batch_size", cfg.batchSize), zap.Int("repetitions", cfg.repetitions))

	cfg.progress.Begin(len(tasks))
	defer cfg.progress.End()
	var progressMutex sync.Mutex

	p := pool.NewWithResults[[]sampledRecord]().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(cfg.workers)
	for start := 0; start < len(tasks); start += cfg.batchSize {
		batch := tasks[start:min(start+cfg.batchSize, len(tasks))]
		p.Go(func(ctx context.Context) ([]sampledRecord, error) {
			records, err := runSampleBatch(ctx, sampler, batch, cfg.repetitions)
			if err != nil {
				return nil, err
			}
			if ce := logger.Check(zap.DebugLevel, "batch sampled"); ce != nil {
				ce.Write(zap.Int("first_task", start), zap.Int("size", len(batch)),
					zap.String("first_circuit", batch[0].prepared.Fingerprint()))
			}

			progressMutex.Lock()
			cfg.progress.Advance(cfg.batchSize)
			progressMutex.Unlock()
			return records, nil
		})
	}

	batches, err := p.Wait()
	if err != nil {
		return nil, err
	}

	table := make(SampledTable, len(tasks))
	for _, records := range batches {
		for _, r := range records {
			table[r.key] = r.probs
		}
	}
	return table, nil
}

// runSampleBatch executes one batch with a single sampler call
func runSampleBatch(ctx context.Context, sampler quantum.Sampler, batch []sampleTask, repetitions int) ([]sampledRecord, error) {
	circuits := make([]quantum.Circuit, len(batch))
	for i, task := range batch {
		circuits[i] = task.prepared
	}

	results, err := sampler.RunBatch(ctx, circuits, repetitions)
	if err != nil {
		return nil, fmt.Errorf("sampler %s: %w", sampler.Name(), err)
	}
	if len(results) != len(batch) {
		return nil, fmt.Errorf("sampler %s returned %d results for %d circuits", sampler.Name(), len(results), len(batch))
	}

	records := make([]sampledRecord, len(batch))
	for i, task := range batch {
		outcomes, err := results[i].Values(MeasurementKey)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.key, err)
		}
		probs, err := bincount(outcomes, 4)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task.key, err)
		}
		records[i] = sampledRecord{key: task.key, probs: probs}
	}
	return records, nil
}

// bincount returns the relative frequency of each outcome in [0, size)
func bincount(outcomes []int, size int) ([]float64, error) {
	if len(outcomes) == 0 {
		return nil, fmt.Errorf("%w: no outcomes recorded", quantum.ErrInvalidArgument)
	}
	probs := make([]float64, size)
	for _, o := range outcomes {
		if o < 0 || o >= size {
			return nil, fmt.Errorf("%w: outcome %d outside [0, %d)", quantum.ErrInvalidArgument, o, size)
		}
		probs[o]++
	}
	for i := range probs {
		probs[i] /= float64(len(outcomes))
	}
	return probs, nil
}

// twoQubitsOf returns the two qubits shared by the circuit library
func twoQubitsOf(circuits []quantum.Circuit) (quantum.Qubit, quantum.Qubit, error) {
	seen := make(map[quantum.Qubit]bool)
	var qubits []quantum.Qubit
	for _, c := range circuits {
		for _, q := range c.AllQubits() {
			if !seen[q] {
				seen[q] = true
				qubits = append(qubits, q)
			}
		}
	}
	if len(qubits) != 2 {
		return 0, 0, fmt.Errorf("%w: circuits should each operate on the same two qubits, found %d qubits",
			quantum.ErrInvalidArgument, len(qubits))
	}
	if qubits[0] > qubits[1] {
		qubits[0], qubits[1] = qubits[1], qubits[0]
	}
	return qubits[0], qubits[1], nil
}
