package xeb

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

type simulateConfig struct {
	resolver     quantum.ParamResolver
	workers      int
	newSimulator func() quantum.StepSimulator
}

// SimulateOption configures SimulateTwoQubitXEBCircuits and
// BenchmarkTwoQubitXEBFidelities
type SimulateOption func(*simulateConfig)

// WithResolver binds the circuits' free symbols before simulation
func WithResolver(resolver quantum.ParamResolver) SimulateOption {
	return func(c *simulateConfig) { c.resolver = resolver }
}

// WithSimulationWorkers simulates circuits on a pool of n goroutines. With
// n = 0, the default, circuits are simulated one after another in library
// order.
func WithSimulationWorkers(n int) SimulateOption {
	return func(c *simulateConfig) { c.workers = n }
}

// WithSimulatorFactory sets how each task gets its simulator. Every task
// calls the factory once and owns the result. The default builds a
// quantum.Simulator with its own random seed.
func WithSimulatorFactory(factory func() quantum.StepSimulator) SimulateOption {
	return func(c *simulateConfig) { c.newSimulator = factory }
}

func newSimulateConfig(opts []SimulateOption) simulateConfig {
	cfg := simulateConfig{
		newSimulator: func() quantum.StepSimulator { return quantum.NewRandomSimulator() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// simulateTask carries everything one worker needs to simulate one circuit
type simulateTask struct {
	circuitIndex int
	circuit      quantum.Circuit
	cycleDepths  map[int]bool
	maxDepth     int
	resolver     quantum.ParamResolver
}

type pureRecord struct {
	key   TaskKey
	probs []float64
}

// SimulateTwoQubitXEBCircuits computes the exact outcome distribution of
// every circuit at every cycle depth. Cycle depth d is the state after moment
// 2d, so a circuit of L moments supports depths up to (L-1)/2.
func SimulateTwoQubitXEBCircuits(ctx context.Context, circuits []quantum.Circuit, cycleDepths []int, opts ...SimulateOption) (PureTable, error) {
	cfg := newSimulateConfig(opts)
	if cfg.workers < 0 {
		return nil, fmt.Errorf("%w: negative worker count %d", quantum.ErrInvalidArgument, cfg.workers)
	}

	depths := make(map[int]bool, len(cycleDepths))
	maxDepth := -1
	for _, d := range cycleDepths {
		if d < 0 {
			return nil, fmt.Errorf("%w: negative cycle depth %d", quantum.ErrInvalidArgument, d)
		}
		depths[d] = true
		maxDepth = max(maxDepth, d)
	}

	tasks := make([]simulateTask, len(circuits))
	for i, circuit := range circuits {
		if available := maxCycleDepth(circuit); maxDepth > available {
			return nil, fmt.Errorf("%w: circuit %d supports cycle depths up to %d, requested %d",
				quantum.ErrInvalidArgument, i, available, maxDepth)
		}
		tasks[i] = simulateTask{
			circuitIndex: i,
			circuit:      circuit,
			cycleDepths:  depths,
			maxDepth:     maxDepth,
			resolver:     cfg.resolver,
		}
	}

	var nested [][]pureRecord
	if cfg.workers > 0 {
		p := pool.NewWithResults[[]pureRecord]().
			WithContext(ctx).
			WithCancelOnError().
			WithFirstError().
			WithMaxGoroutines(cfg.workers)
		for _, task := range tasks {
			p.Go(func(ctx context.Context) ([]pureRecord, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return simulateCircuit(task, cfg.newSimulator())
			})
		}
		var err error
		if nested, err = p.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, task := range tasks {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			records, err := simulateCircuit(task, cfg.newSimulator())
			if err != nil {
				return nil, err
			}
			nested = append(nested, records)
		}
	}

	table := make(PureTable, len(circuits)*len(depths))
	for _, records := range nested {
		for _, r := range records {
			table[r.key] = r.probs
		}
	}
	zap.L().Debug("simulated XEB circuits", zap.Int("circuits", len(circuits)), zap.Int("rows", len(table)))
	return table, nil
}

// simulateCircuit steps through one circuit and records the distribution at
// every requested cycle depth
func simulateCircuit(task simulateTask, simulator quantum.StepSimulator) ([]pureRecord, error) {
	var records []pureRecord
	for step, err := range simulator.SimulateMomentSteps(task.circuit, task.resolver) {
		if err != nil {
			return nil, fmt.Errorf("circuit %d: %w", task.circuitIndex, err)
		}
		if step.Index%2 == 1 {
			continue
		}
		depth := step.Index / 2
		if depth > task.maxDepth {
			break
		}
		if !task.cycleDepths[depth] {
			continue
		}
		records = append(records, pureRecord{
			key:   TaskKey{CircuitIndex: task.circuitIndex, CycleDepth: depth},
			probs: step.Probabilities(),
		})
	}
	return records, nil
}

// maxCycleDepth is the deepest cycle a circuit can be simulated to, or -1
// for an empty circuit
func maxCycleDepth(c quantum.Circuit) int {
	if c.Len() == 0 {
		return -1
	}
	return (c.Len() - 1) / 2
}
