package xeb

import (
	"encoding/json"
	"math"
)

// Number is a float64 that encodes NaN and infinities as JSON null. Fits
// over uniform distributions divide by zero, and the log estimator is -Inf
// when a sampled bitstring has zero ideal probability.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// Numbers converts a float64 slice
func Numbers(values []float64) []Number {
	out := make([]Number, len(values))
	for i, v := range values {
		out[i] = Number(v)
	}
	return out
}

// FidelityPoint is the fitted fidelity at one cycle depth
type FidelityPoint struct {
	CycleDepth int    `json:"cycle_depth"`
	Fidelity   Number `json:"fidelity"`
}

// BenchmarkResult is the result of a completed benchmark run
type BenchmarkResult struct {
	Fidelities []FidelityPoint `json:"fidelities"`
}

// CharacterizationResult is the result of a completed characterization run.
// Fidelities are re-estimated with the fitted angles.
type CharacterizationResult struct {
	OptimizationID  string            `json:"optimization_id"`
	Gate            string            `json:"gate"`
	Names           []string          `json:"names"`
	Params          map[string]Number `json:"params"`
	Loss            Number            `json:"loss"`
	Status          string            `json:"status"`
	Converged       bool              `json:"converged"`
	Iterations      int               `json:"iterations"`
	FuncEvaluations int               `json:"function_evaluations"`
	Fidelities      []FidelityPoint   `json:"fidelities"`
}
