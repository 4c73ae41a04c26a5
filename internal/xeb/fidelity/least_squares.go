package fidelity

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

// LeastSquaresXEBFidelityFromExpectations fits the depolarizing model
//
//	ρ_U = f·|ψ_U⟩⟨ψ_U| + (1-f)·I/D
//
// to per-circuit expectations of a diagonal observable: measured holds the
// experimental estimates m_U, exact the ideal values e_U and uniform the
// values u_U on the maximally mixed state. The fit minimizes
// Σ_U (f(e_U-u_U) - (m_U-u_U))², giving
//
//	f = Σ(m-u)(e-u) / Σ(e-u)²
//
// It returns f and the per-circuit residuals f(e_U-u_U) - (m_U-u_U). When
// every e_U equals u_U the fit is undefined and f is NaN or ±Inf.
func LeastSquaresXEBFidelityFromExpectations(measured, exact, uniform []float64) (float64, []float64, error) {
	if len(measured) != len(exact) || len(exact) != len(uniform) {
		return 0, nil, fmt.Errorf("%w: measured, exact and uniform expectations must have the same length, got %d, %d and %d",
			quantum.ErrInvalidArgument, len(measured), len(exact), len(uniform))
	}

	x := make([]float64, len(exact))
	y := make([]float64, len(measured))
	floats.SubTo(x, exact, uniform)
	floats.SubTo(y, measured, uniform)

	f := floats.Dot(x, y) / floats.Dot(x, x)

	residuals := make([]float64, len(x))
	floats.ScaleTo(residuals, f, x)
	floats.Sub(residuals, y)
	return f, residuals, nil
}

type lsConfig struct {
	observable func(float64) float64
	normalize  bool
}

// LSOption configures LeastSquaresXEBFidelityFromProbabilities
type LSOption func(*lsConfig)

// WithObservable sets g, the function mapping a probability to the
// observable's eigenvalue. The default is the identity; math.Log is another
// common choice.
func WithObservable(g func(float64) float64) LSOption {
	return func(c *lsConfig) {
		c.observable = g
	}
}

// WithoutNormalization applies g to p(z) instead of D·p(z)
func WithoutNormalization() LSOption {
	return func(c *lsConfig) {
		c.normalize = false
	}
}

// LeastSquaresXEBFidelityFromProbabilities fits the fidelity using an
// observable whose eigenvalue on |z⟩ is g(D·p(z)). observed[U] holds the
// ideal probabilities of the bitstrings observed for circuit U and all[U]
// the ideal probabilities of every bitstring, in matching circuit order.
//
// For each circuit e_U = Σ_z p(z)·g(D·p(z)), u_U = Σ_z g(D·p(z))/D and m_U
// is the mean of g(D·p(z)) over the observed bitstrings.
func LeastSquaresXEBFidelityFromProbabilities(dim int, observed, all [][]float64, opts ...LSOption) (float64, []float64, error) {
	cfg := lsConfig{
		observable: func(p float64) float64 { return p },
		normalize:  true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(observed) != len(all) {
		return 0, nil, fmt.Errorf("%w: got observed probabilities for %d circuits and full distributions for %d",
			quantum.ErrInvalidArgument, len(observed), len(all))
	}
	for i, probs := range all {
		if len(probs) != dim {
			return 0, nil, fmt.Errorf("%w: circuit %d has %d probabilities, want %d",
				quantum.ErrInvalidArgument, i, len(probs), dim)
		}
		if len(observed[i]) == 0 {
			return 0, nil, fmt.Errorf("%w: circuit %d has no observed bitstrings", quantum.ErrInvalidArgument, i)
		}
	}

	prefactor := 1.0
	if cfg.normalize {
		prefactor = float64(dim)
	}
	apply := func(probs []float64) []float64 {
		out := make([]float64, len(probs))
		for i, p := range probs {
			out[i] = cfg.observable(prefactor * p)
		}
		return out
	}

	measured := make([]float64, len(all))
	exact := make([]float64, len(all))
	uniform := make([]float64, len(all))
	for i := range all {
		observable := apply(all[i])
		measured[i] = stat.Mean(apply(observed[i]), nil)
		exact[i] = floats.Dot(all[i], observable)
		uniform[i] = floats.Sum(observable) / float64(dim)
	}

	return LeastSquaresXEBFidelityFromExpectations(measured, exact, uniform)
}
