package xeb

import (
	"context"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

// RowSummary holds the least-squares terms of one (circuit, cycle depth) row
type RowSummary struct {
	ExactExpectation    float64 `json:"e_u"`
	UniformExpectation  float64 `json:"u_u"`
	MeasuredExpectation float64 `json:"m_u"`
	X                   float64 `json:"x"`
	Y                   float64 `json:"y"`
	Numerator           float64 `json:"numerator"`
	Denominator         float64 `json:"denominator"`
}

// SummarizeRow computes the least-squares terms of one row, using the
// observable O(z) = p(z) on a Hilbert space of dimension len(pure):
//
//	e_u = Σ p², u_u = Σ p / D, m_u = Σ p·q
//
// where p are the exact and q the sampled probabilities.
func SummarizeRow(pure, sampled []float64) (RowSummary, error) {
	if len(pure) != len(sampled) {
		return RowSummary{}, fmt.Errorf("%w: %d exact probabilities but %d sampled",
			quantum.ErrInvalidArgument, len(pure), len(sampled))
	}
	if len(pure) == 0 {
		return RowSummary{}, fmt.Errorf("%w: empty probability vector", quantum.ErrInvalidArgument)
	}

	var s RowSummary
	s.ExactExpectation = floats.Dot(pure, pure)
	s.UniformExpectation = floats.Sum(pure) / float64(len(pure))
	s.MeasuredExpectation = floats.Dot(pure, sampled)
	s.X = s.ExactExpectation - s.UniformExpectation
	s.Y = s.MeasuredExpectation - s.UniformExpectation
	s.Numerator = s.X * s.Y
	s.Denominator = s.X * s.X
	return s, nil
}

// BenchmarkTwoQubitXEBFidelities simulates the circuit library, joins the
// exact distributions with the sampled ones and fits one fidelity per cycle
// depth by least squares over that depth's circuits. Every sampled row must
// have a simulated counterpart; simulated rows without samples are ignored.
// The result is sorted by cycle depth.
func BenchmarkTwoQubitXEBFidelities(ctx context.Context, sampled SampledTable, circuits []quantum.Circuit, cycleDepths []int, opts ...SimulateOption) ([]DepthFidelity, error) {
	pure, err := SimulateTwoQubitXEBCircuits(ctx, circuits, cycleDepths, opts...)
	if err != nil {
		return nil, err
	}

	type sums struct{ numerator, denominator float64 }
	byDepth := make(map[int]*sums)
	for _, key := range sampled.Keys() {
		pureProbs, ok := pure[key]
		if !ok {
			return nil, fmt.Errorf("%w: no simulated probabilities for sampled row %s", quantum.ErrInvalidArgument, key)
		}
		row, err := SummarizeRow(pureProbs, sampled[key])
		if err != nil {
			return nil, fmt.Errorf("row %s: %w", key, err)
		}
		s, ok := byDepth[key.CycleDepth]
		if !ok {
			s = &sums{}
			byDepth[key.CycleDepth] = s
		}
		s.numerator += row.Numerator
		s.denominator += row.Denominator
	}

	fidelities := make([]DepthFidelity, 0, len(byDepth))
	for depth, s := range byDepth {
		fidelities = append(fidelities, DepthFidelity{CycleDepth: depth, Fidelity: s.numerator / s.denominator})
	}
	sort.Slice(fidelities, func(i, j int) bool { return fidelities[i].CycleDepth < fidelities[j].CycleDepth })
	return fidelities, nil
}
