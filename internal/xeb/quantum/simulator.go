package quantum

import (
	"fmt"
	"iter"
	"math/rand/v2"
)

// MomentStep is the simulator state right after one moment has been applied
type MomentStep struct {
	// Index is the zero-based index of the moment just applied
	Index int

	state []complex128
}

// StateVector returns a copy of the normalized state vector
func (s MomentStep) StateVector() []complex128 {
	return append([]complex128(nil), s.state...)
}

// Probabilities returns the squared magnitudes of the state vector
func (s MomentStep) Probabilities() []float64 {
	return Probabilities(s.state)
}

// StepSimulator yields the state after every moment of a circuit. The
// sequence is lazy and ends after the last moment or the first error.
type StepSimulator interface {
	SimulateMomentSteps(circuit Circuit, resolver ParamResolver) iter.Seq2[MomentStep, error]
}

// StateVectorSimulator computes the final state of a circuit in a given
// qubit order.
type StateVectorSimulator interface {
	FinalStateVector(circuit Circuit, order []Qubit, resolver ParamResolver) ([]complex128, error)
}

// Simulator is a noiseless state-vector simulator. The random source is only
// used for sampling measurements, and is not safe for concurrent use.
type Simulator struct {
	rng *rand.Rand
}

// NewSimulator creates a simulator seeded with seed
func NewSimulator(seed uint64) *Simulator {
	return &Simulator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandomSimulator creates a simulator with its own random seed
func NewRandomSimulator() *Simulator {
	return NewSimulator(rand.Uint64())
}

// SimulateMomentSteps runs the circuit over its sorted qubits and yields the
// state after each moment. Measurements do not change the state.
func (s *Simulator) SimulateMomentSteps(circuit Circuit, resolver ParamResolver) iter.Seq2[MomentStep, error] {
	return func(yield func(MomentStep, error) bool) {
		order := circuit.AllQubits()
		state, index := initialState(order)
		for i, m := range circuit.moments {
			var err error
			state, err = applyMoment(state, len(order), index, m, resolver)
			if err != nil {
				yield(MomentStep{Index: i}, fmt.Errorf("moment %d: %w", i, err))
				return
			}
			if !yield(MomentStep{Index: i, state: state}, nil) {
				return
			}
		}
	}
}

// FinalStateVector returns the state after the whole circuit. order lists
// the qubits from most to least significant bit and must be a permutation of
// the circuit's qubits; nil means ascending order.
func (s *Simulator) FinalStateVector(circuit Circuit, order []Qubit, resolver ParamResolver) ([]complex128, error) {
	if order == nil {
		order = circuit.AllQubits()
	}
	if err := checkOrder(circuit, order); err != nil {
		return nil, err
	}
	state, index := initialState(order)
	for i, m := range circuit.moments {
		var err error
		if state, err = applyMoment(state, len(order), index, m, resolver); err != nil {
			return nil, fmt.Errorf("moment %d: %w", i, err)
		}
	}
	return state, nil
}

// Sample draws repetitions outcomes of every measurement in the circuit
// from the ideal output distribution.
func (s *Simulator) Sample(circuit Circuit, resolver ParamResolver, repetitions int) (Result, error) {
	return s.sample(circuit, resolver, repetitions, 1)
}

// sample mixes the ideal distribution with the uniform one: each shot comes
// from the ideal state with probability fidelity and is uniform otherwise.
func (s *Simulator) sample(circuit Circuit, resolver ParamResolver, repetitions int, fidelity float64) (Result, error) {
	if repetitions <= 0 {
		return Result{}, fmt.Errorf("%w: repetitions must be positive, got %d", ErrInvalidArgument, repetitions)
	}
	order := circuit.AllQubits()
	state, err := s.FinalStateVector(circuit, order, resolver)
	if err != nil {
		return Result{}, err
	}
	probs := Probabilities(state)
	cumulative := make([]float64, len(probs))
	total := 0.0
	for i, p := range probs {
		total += p
		cumulative[i] = total
	}

	position := make(map[Qubit]int, len(order))
	for i, q := range order {
		position[q] = i
	}
	n := len(order)

	result := Result{Measurements: make(map[string][]int)}
	var measures []Operation
	for _, m := range circuit.moments {
		for _, op := range m.ops {
			if mg, ok := op.Gate.(MeasureGate); ok {
				measures = append(measures, op)
				result.Measurements[mg.Key] = make([]int, 0, repetitions)
			}
		}
	}

	for r := 0; r < repetitions; r++ {
		var idx int
		if s.rng.Float64() < fidelity {
			idx = draw(cumulative, total*s.rng.Float64())
		} else {
			idx = s.rng.IntN(len(probs))
		}
		for _, op := range measures {
			key := op.Gate.(MeasureGate).Key
			outcome := 0
			for _, q := range op.Qubits {
				bit := (idx >> (n - 1 - position[q])) & 1
				outcome = outcome<<1 | bit
			}
			result.Measurements[key] = append(result.Measurements[key], outcome)
		}
	}
	return result, nil
}

// Probabilities returns |amplitude|^2 for every entry of a state vector
func Probabilities(state []complex128) []float64 {
	probs := make([]float64, len(state))
	for i, a := range state {
		probs[i] = real(a)*real(a) + imag(a)*imag(a)
	}
	return probs
}

func draw(cumulative []float64, u float64) int {
	lo, hi := 0, len(cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cumulative[mid] > u {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func checkOrder(circuit Circuit, order []Qubit) error {
	want := circuit.AllQubits()
	if len(order) != len(want) {
		return fmt.Errorf("%w: qubit order has %d qubits, circuit uses %d", ErrInvalidArgument, len(order), len(want))
	}
	seen := make(map[Qubit]bool, len(order))
	for _, q := range order {
		if seen[q] {
			return fmt.Errorf("%w: qubit %s repeated in qubit order", ErrInvalidArgument, q)
		}
		seen[q] = true
	}
	for _, q := range want {
		if !seen[q] {
			return fmt.Errorf("%w: qubit %s missing from qubit order", ErrInvalidArgument, q)
		}
	}
	return nil
}

func initialState(order []Qubit) ([]complex128, map[Qubit]int) {
	state := make([]complex128, 1<<len(order))
	state[0] = 1
	index := make(map[Qubit]int, len(order))
	for i, q := range order {
		index[q] = i
	}
	return state, index
}

func applyMoment(state []complex128, n int, index map[Qubit]int, m Moment, resolver ParamResolver) ([]complex128, error) {
	for _, op := range m.ops {
		if _, ok := op.Gate.(MeasureGate); ok {
			continue
		}
		matrix, err := op.Gate.Matrix(resolver)
		if err != nil {
			return nil, err
		}
		targets := make([]int, len(op.Qubits))
		for j, q := range op.Qubits {
			targets[j] = index[q]
		}
		state = applyMatrix(state, n, targets, matrix)
	}
	return state, nil
}

// applyMatrix applies a k-qubit unitary to the target positions of an
// n-qubit state, position 0 being the most significant bit. The input slice
// is left untouched.
func applyMatrix(state []complex128, n int, targets []int, matrix []complex128) []complex128 {
	k := len(targets)
	dim := 1 << k
	masks := make([]int, k)
	targetMask := 0
	for j, t := range targets {
		masks[j] = 1 << (n - 1 - t)
		targetMask |= masks[j]
	}
	out := make([]complex128, len(state))
	for idx := range state {
		row := 0
		for j := range targets {
			if idx&masks[j] != 0 {
				row |= 1 << (k - 1 - j)
			}
		}
		base := idx &^ targetMask
		var acc complex128
		for col := 0; col < dim; col++ {
			src := base
			for j := range targets {
				if col&(1<<(k-1-j)) != 0 {
					src |= masks[j]
				}
			}
			acc += matrix[row*dim+col] * state[src]
		}
		out[idx] = acc
	}
	return out
}
