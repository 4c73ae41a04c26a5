package fidelity

import (
	"fmt"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

type evalConfig struct {
	order      []quantum.Qubit
	amplitudes map[int]complex128
	estimator  Estimator
	simulator  quantum.StateVectorSimulator
}

// EvalOption configures XEBFidelity
type EvalOption func(*evalConfig)

// WithQubitOrder sets the qubit order used to form bitstrings, most
// significant qubit first. The default is ascending qubit order.
func WithQubitOrder(order ...quantum.Qubit) EvalOption {
	return func(c *evalConfig) {
		c.order = append([]quantum.Qubit(nil), order...)
	}
}

// WithAmplitudes supplies precomputed output amplitudes keyed by bitstring.
// Simulation is skipped when they are present.
func WithAmplitudes(amplitudes map[int]complex128) EvalOption {
	return func(c *evalConfig) {
		c.amplitudes = amplitudes
	}
}

// WithEstimator selects the estimator. The default is the linear estimator.
func WithEstimator(estimator Estimator) EvalOption {
	return func(c *evalConfig) {
		c.estimator = estimator
	}
}

// WithSimulator sets the simulator used to compute the ideal output state
func WithSimulator(simulator quantum.StateVectorSimulator) EvalOption {
	return func(c *evalConfig) {
		c.simulator = simulator
	}
}

// XEBFidelity estimates the fidelity of one circuit from the bitstrings its
// experimental executions produced. Each bitstring is an integer formed from
// the measured qubit values, most significant qubit first in the configured
// qubit order.
func XEBFidelity(circuit quantum.Circuit, bitstrings []int, opts ...EvalOption) (float64, error) {
	cfg := evalConfig{estimator: LinearXEBFidelityFromProbabilities}
	for _, opt := range opts {
		opt(&cfg)
	}

	numQubits := len(circuit.AllQubits())
	dim := 1 << numQubits
	if len(bitstrings) == 0 {
		return 0, fmt.Errorf("%w: no bitstrings to evaluate", quantum.ErrInvalidArgument)
	}
	for _, b := range bitstrings {
		if b < 0 || b >= dim {
			return 0, fmt.Errorf("%w: bitstring %d could not have been observed on %d qubits",
				quantum.ErrInvalidArgument, b, numQubits)
		}
	}

	probs := make([]float64, len(bitstrings))
	if cfg.amplitudes != nil {
		for i, b := range bitstrings {
			a, ok := cfg.amplitudes[b]
			if !ok {
				return 0, fmt.Errorf("%w: no amplitude for bitstring %d", quantum.ErrInvalidArgument, b)
			}
			probs[i] = real(a)*real(a) + imag(a)*imag(a)
		}
		return cfg.estimator(dim, probs), nil
	}

	simulator := cfg.simulator
	if simulator == nil {
		simulator = quantum.NewRandomSimulator()
	}
	state, err := simulator.FinalStateVector(circuit, cfg.order, nil)
	if err != nil {
		return 0, fmt.Errorf("simulating circuit: %w", err)
	}
	output := quantum.Probabilities(state)
	for i, b := range bitstrings {
		probs[i] = output[b]
	}
	return cfg.estimator(dim, probs), nil
}

// LinearXEBFidelity estimates fidelity with the linear estimator
func LinearXEBFidelity(circuit quantum.Circuit, bitstrings []int, opts ...EvalOption) (float64, error) {
	return XEBFidelity(circuit, bitstrings, append(opts[:len(opts):len(opts)], WithEstimator(LinearXEBFidelityFromProbabilities))...)
}

// LogXEBFidelity estimates fidelity with the logarithmic estimator
func LogXEBFidelity(circuit quantum.Circuit, bitstrings []int, opts ...EvalOption) (float64, error) {
	return XEBFidelity(circuit, bitstrings, append(opts[:len(opts):len(opts)], WithEstimator(LogXEBFidelityFromProbabilities))...)
}

// HOGScoreXEBFidelity estimates fidelity with the normalized HOG score
func HOGScoreXEBFidelity(circuit quantum.Circuit, bitstrings []int, opts ...EvalOption) (float64, error) {
	return XEBFidelity(circuit, bitstrings, append(opts[:len(opts):len(opts)], WithEstimator(HOGScoreXEBFidelityFromProbabilities))...)
}
