package xeb

import (
	"fmt"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

// OperationSpec is the wire form of one gate application
type OperationSpec struct {
	Gate   string    `json:"gate"`
	Params []float64 `json:"params,omitempty"`
	Qubits []int     `json:"qubits"`
}

// CircuitSpec is the wire form of a circuit: a list of moments, each a list
// of operations on disjoint qubits
type CircuitSpec struct {
	Moments [][]OperationSpec `json:"moments"`
}

// ToCircuit builds the circuit described by its wire form
func (c CircuitSpec) ToCircuit() (quantum.Circuit, error) {
	moments := make([]quantum.Moment, len(c.Moments))
	for i, ops := range c.Moments {
		built := make([]quantum.Operation, len(ops))
		for j, op := range ops {
			gate, err := quantum.ParseGate(op.Gate, op.Params)
			if err != nil {
				return quantum.Circuit{}, fmt.Errorf("moment %d operation %d: %w", i, j, err)
			}
			qubits := make([]quantum.Qubit, len(op.Qubits))
			for k, q := range op.Qubits {
				qubits[k] = quantum.Qubit(q)
			}
			built[j] = quantum.On(gate, qubits...)
		}
		m, err := quantum.NewMoment(built...)
		if err != nil {
			return quantum.Circuit{}, fmt.Errorf("moment %d: %w", i, err)
		}
		moments[i] = m
	}
	return quantum.NewCircuit(moments...), nil
}

// ToCircuits builds every circuit of a library
func ToCircuits(specs []CircuitSpec) ([]quantum.Circuit, error) {
	circuits := make([]quantum.Circuit, len(specs))
	for i, spec := range specs {
		c, err := spec.ToCircuit()
		if err != nil {
			return nil, fmt.Errorf("circuit %d: %w", i, err)
		}
		circuits[i] = c
	}
	return circuits, nil
}

// RandomCircuitsSpec asks the server to generate a random two-qubit circuit
// library instead of sending one
type RandomCircuitsSpec struct {
	Count    int    `json:"count"`
	MaxDepth int    `json:"max_cycle_depth"`
	Qubits   [2]int `json:"qubits"`
	Seed     uint64 `json:"seed"`
}

// EstimateRequest represents a request to score measured bitstrings against
// a single circuit
type EstimateRequest struct {
	Circuit    CircuitSpec `json:"circuit"`
	Bitstrings []int       `json:"bitstrings"`
	QubitOrder []int       `json:"qubit_order,omitempty"`
	Estimator  string      `json:"estimator,omitempty"`
}

// EstimateResponse represents the estimated fidelity of one circuit
type EstimateResponse struct {
	Estimator string `json:"estimator"`
	Fidelity  Number `json:"fidelity"`
	Samples   int    `json:"samples"`
}

// LeastSquaresRequest represents a least-squares fidelity fit. When Exact is
// set the fit runs on precomputed expectations (Measured, Exact, Uniform);
// otherwise on per-circuit probabilities (Dimension, Observed, All).
type LeastSquaresRequest struct {
	Measured []float64 `json:"measured,omitempty"`
	Exact    []float64 `json:"exact,omitempty"`
	Uniform  []float64 `json:"uniform,omitempty"`

	Dimension  int         `json:"dimension,omitempty"`
	Observed   [][]float64 `json:"observed,omitempty"`
	All        [][]float64 `json:"all,omitempty"`
	Observable string      `json:"observable,omitempty"`
	Normalize  *bool       `json:"normalize,omitempty"`
}

// UsesExpectations reports whether the request carries precomputed
// expectations
func (r *LeastSquaresRequest) UsesExpectations() bool {
	return len(r.Exact) > 0
}

// LeastSquaresResponse represents a fitted fidelity and its residuals
type LeastSquaresResponse struct {
	Fidelity  Number   `json:"fidelity"`
	Residuals []Number `json:"residuals"`
}

// BenchmarkRequest represents a request to sample and benchmark a circuit
// library
type BenchmarkRequest struct {
	Circuits    []CircuitSpec       `json:"circuits,omitempty"`
	Random      *RandomCircuitsSpec `json:"random,omitempty"`
	CycleDepths []int               `json:"cycle_depths"`
	Repetitions int                 `json:"repetitions,omitempty"`
	BatchSize   int                 `json:"batch_size,omitempty"`
}

// AngleOptions selects the PhasedFSim angles to fit and their start values
type AngleOptions struct {
	CharacterizeTheta bool `json:"characterize_theta"`
	CharacterizeZeta  bool `json:"characterize_zeta"`
	CharacterizeChi   bool `json:"characterize_chi"`
	CharacterizeGamma bool `json:"characterize_gamma"`
	CharacterizePhi   bool `json:"characterize_phi"`

	ThetaDefault *float64 `json:"theta_default,omitempty"`
	ZetaDefault  *float64 `json:"zeta_default,omitempty"`
	ChiDefault   *float64 `json:"chi_default,omitempty"`
	GammaDefault *float64 `json:"gamma_default,omitempty"`
	PhiDefault   *float64 `json:"phi_default,omitempty"`
}

// CharacterizeRequest represents a request to sample a circuit library and
// fit the angles of its two-qubit gates
type CharacterizeRequest struct {
	BenchmarkRequest
	Gate          string        `json:"gate,omitempty"`
	Angles        *AngleOptions `json:"angles,omitempty"`
	StepSize      float64       `json:"initial_simplex_step_size,omitempty"`
	XAtol         float64       `json:"xatol,omitempty"`
	FAtol         float64       `json:"fatol,omitempty"`
	MaxIterations int           `json:"max_iterations,omitempty"`
}

// Validate validates an estimate request
func (r *EstimateRequest) Validate() error {
	if len(r.Bitstrings) == 0 {
		return ErrNoBitstrings
	}

	// Set default estimator if not specified
	if r.Estimator == "" {
		r.Estimator = "linear"
	}

	switch r.Estimator {
	case "linear", "log", "hog":
		return nil
	default:
		return ErrUnknownEstimator
	}
}

// Validate validates a least-squares request
func (r *LeastSquaresRequest) Validate() error {
	if r.UsesExpectations() {
		return nil
	}
	if r.Observable == "" {
		r.Observable = "identity"
	}
	if r.Observable != "identity" && r.Observable != "log" {
		return ErrUnknownObservable
	}
	return nil
}

// Validate validates a benchmark request and fills in defaults
func (r *BenchmarkRequest) Validate(defaultRepetitions, defaultBatchSize int) error {
	switch {
	case len(r.Circuits) > 0 && r.Random != nil:
		return ErrCircuitSource
	case r.Random != nil:
		if r.Random.Count <= 0 || r.Random.MaxDepth <= 0 {
			return ErrInvalidRandom
		}
		if r.Random.Qubits == [2]int{} {
			r.Random.Qubits = [2]int{0, 1}
		}
	case len(r.Circuits) == 0:
		return ErrNoCircuits
	}

	if len(r.CycleDepths) == 0 {
		return ErrNoCycleDepths
	}
	for _, d := range r.CycleDepths {
		if d < 0 {
			return ErrNegativeDepth
		}
	}

	if r.Repetitions == 0 {
		r.Repetitions = defaultRepetitions
	}
	if r.Repetitions < 1 || r.Repetitions > 1000000 {
		return ErrInvalidRepetition
	}

	if r.BatchSize == 0 {
		r.BatchSize = defaultBatchSize
	}
	if r.BatchSize < 0 {
		return ErrInvalidBatchSize
	}

	return nil
}

// Validate validates a characterization request and fills in defaults
func (r *CharacterizeRequest) Validate(defaultRepetitions, defaultBatchSize int) error {
	if err := r.BenchmarkRequest.Validate(defaultRepetitions, defaultBatchSize); err != nil {
		return err
	}

	if r.Gate == "" {
		r.Gate = "sqrt_iswap"
	}
	if r.Gate != "sqrt_iswap" && r.Gate != "phased_fsim" {
		return ErrUnknownGateFamily
	}

	if a := r.Angles; a != nil {
		if !a.CharacterizeTheta && !a.CharacterizeZeta && !a.CharacterizeChi && !a.CharacterizeGamma && !a.CharacterizePhi {
			return ErrNoAngles
		}
	}
	return nil
}
