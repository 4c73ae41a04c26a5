// Package fidelity estimates how closely noisy executions of quantum circuits
// match their ideal output distributions.
//
// The estimators here assume the ideal output probabilities of the circuits
// follow the Porter-Thomas (exponential) distribution. None of them checks
// that assumption; a histogram of the ideal probabilities of observed
// bitstrings is the usual way to confirm it.
package fidelity

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EulerGamma is the Euler-Mascheroni constant
const EulerGamma = 0.57721566490153286060651209008240243104215933593992

// Estimator computes a fidelity estimate from the ideal probabilities of the
// bitstrings observed in an experiment on a Hilbert space of dimension dim.
type Estimator func(dim int, probs []float64) float64

// LinearXEBFidelityFromProbabilities is the linear XEB estimator D·mean(p) - 1.
//
// It is unbiased with variance (1 + 2f - f²)/M for M observations, and is the
// better choice when the fidelity is below about 0.32.
func LinearXEBFidelityFromProbabilities(dim int, probs []float64) float64 {
	return float64(dim)*stat.Mean(probs, nil) - 1
}

// LogXEBFidelityFromProbabilities is the logarithmic XEB estimator
// ln D + γ + mean(ln p).
//
// It is unbiased with variance (π²/6 - f²)/M, and is the better choice when
// the fidelity is above about 0.32.
func LogXEBFidelityFromProbabilities(dim int, probs []float64) float64 {
	logs := make([]float64, len(probs))
	for i, p := range probs {
		logs[i] = math.Log(p)
	}
	return math.Log(float64(dim)) + EulerGamma + stat.Mean(logs, nil)
}

// HOGScoreXEBFidelityFromProbabilities normalizes the heavy output generation
// score: (2·mean(p > ln2/D) - 1)/ln2.
//
// Its variance (1/ln²2 - f²)/M is never better than the logarithmic
// estimator's.
func HOGScoreXEBFidelityFromProbabilities(dim int, probs []float64) float64 {
	threshold := math.Ln2 / float64(dim)
	heavy := make([]float64, len(probs))
	for i, p := range probs {
		if p > threshold {
			heavy[i] = 1
		}
	}
	return (2*stat.Mean(heavy, nil) - 1) / math.Ln2
}
