package quantum

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Sampler executes batches of circuits on hardware or a simulator
type Sampler interface {
	// Name returns the name of the backend
	Name() string

	// RunBatch runs every circuit for the given number of repetitions and
	// returns one result per circuit, in input order.
	RunBatch(ctx context.Context, circuits []Circuit, repetitions int) ([]Result, error)

	// IsSimulator returns true if this is a simulator, false for real hardware
	IsSimulator() bool
}

// Result holds the measurement outcomes of one circuit execution. Each
// outcome is an integer formed from the measured qubits, first qubit most
// significant.
type Result struct {
	Measurements map[string][]int
}

// Values returns the outcomes recorded under key
func (r Result) Values(key string) ([]int, error) {
	values, ok := r.Measurements[key]
	if !ok {
		return nil, fmt.Errorf("no measurement recorded under key %q", key)
	}
	return values, nil
}

// SimulatorSampler samples circuits from the state-vector simulator, with an
// optional global depolarizing noise model.
type SimulatorSampler struct {
	name           string
	simulator      *Simulator
	depolarization float64
	resolver       ParamResolver
	mutex          sync.Mutex
}

// NewSimulatorSampler creates a sampler. depolarization is the probability
// per moment that the state is replaced by the maximally mixed state, so a
// circuit with L unitary moments is sampled at fidelity (1-depolarization)^L.
func NewSimulatorSampler(seed uint64, depolarization float64) *SimulatorSampler {
	return &SimulatorSampler{
		name:           "QuantumSimulator",
		simulator:      NewSimulator(seed),
		depolarization: depolarization,
	}
}

// WithResolver sets the symbol values used when sampling parameterized
// circuits. It returns the sampler for chaining.
func (s *SimulatorSampler) WithResolver(resolver ParamResolver) *SimulatorSampler {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.resolver = resolver
	return s
}

// Name returns the name of the simulator backend
func (s *SimulatorSampler) Name() string {
	return s.name
}

// IsSimulator returns true since this is a simulator
func (s *SimulatorSampler) IsSimulator() bool {
	return true
}

// GetNoiseLevel returns the per-moment depolarization probability
func (s *SimulatorSampler) GetNoiseLevel() float64 {
	return s.depolarization
}

// RunBatch samples every circuit. It is safe for concurrent use.
func (s *SimulatorSampler) RunBatch(ctx context.Context, circuits []Circuit, repetitions int) ([]Result, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	results := make([]Result, len(circuits))
	for i, circuit := range circuits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fidelity := math.Pow(1-s.depolarization, float64(unitaryDepth(circuit)))
		result, err := s.simulator.sample(circuit, s.resolver, repetitions, fidelity)
		if err != nil {
			return nil, fmt.Errorf("circuit %d: %w", i, err)
		}
		results[i] = result
	}
	return results, nil
}

// unitaryDepth counts moments holding at least one non-measurement operation
func unitaryDepth(circuit Circuit) int {
	depth := 0
	for _, m := range circuit.moments {
		for _, op := range m.ops {
			if _, ok := op.Gate.(MeasureGate); !ok {
				depth++
				break
			}
		}
	}
	return depth
}
