package xeb

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

func TestInitialSimplexAndNames(t *testing.T) {
	o := NewSqrtISwapXEBOptions()
	simplex, names, err := o.InitialSimplexAndNames(0.1)
	require.NoError(t, err)

	assert.Equal(t, []string{ThetaSymbol, ZetaSymbol, ChiSymbol, GammaSymbol, PhiSymbol}, names)
	rows, cols := simplex.Dims()
	assert.Equal(t, 6, rows)
	assert.Equal(t, 5, cols)

	x0 := []float64{-math.Pi / 4, 0, 0, 0, 0}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			want := x0[j]
			if i > 0 && j == i-1 {
				want += 0.1
			}
			assert.InDelta(t, want, simplex.At(i, j), 1e-15, "vertex %d coordinate %d", i, j)
		}
	}
}

func TestInitialSimplexSubsetOfAngles(t *testing.T) {
	o := PhasedFSimOptions{CharacterizeZeta: true, CharacterizeGamma: true, ZetaDefault: 0.2, GammaDefault: -0.3}
	simplex, names, err := o.InitialSimplexAndNames(0.05)
	require.NoError(t, err)

	assert.Equal(t, []string{ZetaSymbol, GammaSymbol}, names)
	rows, cols := simplex.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.InDeltaSlice(t, []float64{0.2, -0.3}, []float64{simplex.At(0, 0), simplex.At(0, 1)}, 1e-15)
	assert.InDeltaSlice(t, []float64{0.25, -0.3}, []float64{simplex.At(1, 0), simplex.At(1, 1)}, 1e-15)
	assert.InDeltaSlice(t, []float64{0.2, -0.25}, []float64{simplex.At(2, 0), simplex.At(2, 1)}, 1e-15)
}

func TestInitialSimplexErrors(t *testing.T) {
	tests := []struct {
		name    string
		options PhasedFSimOptions
		step    float64
	}{
		{"no angles", PhasedFSimOptions{}, 0.1},
		{"zero step", DefaultPhasedFSimOptions(), 0},
		{"NaN step", DefaultPhasedFSimOptions(), math.NaN()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := tt.options.InitialSimplexAndNames(tt.step)
			assert.ErrorIs(t, err, quantum.ErrInvalidArgument)
		})
	}
}

func TestPhasedFSimOptionsGate(t *testing.T) {
	o := PhasedFSimOptions{CharacterizeTheta: true, CharacterizePhi: true, ZetaDefault: 0.1, ChiDefault: 0.2, GammaDefault: 0.3}
	g := o.Gate()

	assert.Equal(t, []string{ThetaSymbol, PhiSymbol}, g.Symbols())
	assert.Equal(t, quantum.Value(0.1), g.Zeta)
	assert.Equal(t, quantum.Value(0.2), g.Chi)
	assert.Equal(t, quantum.Value(0.3), g.Gamma)
}

func TestParameterizePhasedFSimCircuit(t *testing.T) {
	fixed := quantum.PhasedFSimGate{Theta: quantum.Value(0.3), Zeta: quantum.Value(0.1)}
	c := quantum.NewCircuit(
		quantum.MustMoment(quantum.On(quantum.HGate{}, 0)),
		quantum.MustMoment(quantum.On(quantum.SqrtISwap, 0, 1)),
		quantum.MustMoment(quantum.On(fixed, 0, 1)),
	)

	tests := []struct {
		name    string
		options CharacterizationOptions
		moment  int
	}{
		{"sqrt iswap", NewSqrtISwapXEBOptions(), 1},
		{"phased fsim", PhasedFSimXEBOptions{DefaultPhasedFSimOptions()}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ParameterizePhasedFSimCircuit(c, tt.options)
			require.Equal(t, c.Len(), out.Len())
			assert.Equal(t, []string{ChiSymbol, GammaSymbol, PhiSymbol, ThetaSymbol, ZetaSymbol}, out.Symbols())
			for i, m := range out.Moments() {
				op := m.Operations()[0]
				if i == tt.moment {
					assert.Equal(t, tt.options.Options().Gate(), op.Gate)
					assert.Equal(t, []quantum.Qubit{0, 1}, op.Qubits)
				} else {
					assert.Equal(t, c.Moments()[i].Operations()[0], op)
				}
			}
		})
	}
}

func TestParameterizedSqrtISwapAtDefaultsMatches(t *testing.T) {
	options := NewSqrtISwapXEBOptions()
	library := testLibrary()
	parameterized := make([]quantum.Circuit, len(library))
	for i, c := range library {
		parameterized[i] = ParameterizePhasedFSimCircuit(c, options)
	}

	depths := []int{0, 1, 2}
	want, err := SimulateTwoQubitXEBCircuits(context.Background(), library, depths)
	require.NoError(t, err)
	got, err := SimulateTwoQubitXEBCircuits(context.Background(), parameterized, depths, WithResolver(options.DefaultResolver()))
	require.NoError(t, err)

	for key, probs := range want {
		assert.InDeltaSlice(t, probs, got[key], 1e-12, key.String())
	}
}

func TestCharacterizePhasedFSimParametersWithXEB(t *testing.T) {
	depths := []int{1, 2}
	pure, err := SimulateTwoQubitXEBCircuits(context.Background(), testLibrary(), depths)
	require.NoError(t, err)

	options := SqrtISwapXEBOptions{PhasedFSimOptions{
		CharacterizeZeta:  true,
		CharacterizeGamma: true,
		ThetaDefault:      -math.Pi / 4,
	}}
	parameterized := make([]quantum.Circuit, 0, 3)
	for _, c := range testLibrary() {
		parameterized = append(parameterized, ParameterizePhasedFSimCircuit(c, options))
	}

	result, err := CharacterizePhasedFSimParametersWithXEB(context.Background(), SampledTable(pure), parameterized, depths, options,
		WithMaxIterations(40), WithCharacterizeWorkers(2))
	require.NoError(t, err)

	assert.Equal(t, []string{ZetaSymbol, GammaSymbol}, result.Names)
	assert.Len(t, result.X, 2)
	assert.Contains(t, result.Params, ZetaSymbol)
	assert.Contains(t, result.Params, GammaSymbol)
	assert.LessOrEqual(t, result.Loss, 1e-9)
	assert.Positive(t, result.FuncEvaluations)
	assert.NotEmpty(t, result.Status)
	assert.NotEqual(t, uuid.Nil, result.RunID)
}

func TestCharacterizePhasedFSimParametersWithXEBRecoversMiscalibration(t *testing.T) {
	depths := []int{1, 2}
	options := SqrtISwapXEBOptions{PhasedFSimOptions{
		CharacterizeZeta: true,
		ThetaDefault:     -math.Pi / 4,
	}}
	parameterized := make([]quantum.Circuit, 0, 3)
	for _, c := range testLibrary() {
		parameterized = append(parameterized, ParameterizePhasedFSimCircuit(c, options))
	}

	truth := options.DefaultResolver()
	truth[ZetaSymbol] = 0.25
	device, err := SimulateTwoQubitXEBCircuits(context.Background(), parameterized, depths, WithResolver(truth))
	require.NoError(t, err)

	result, err := CharacterizePhasedFSimParametersWithXEB(context.Background(), SampledTable(device), parameterized, depths, options)
	require.NoError(t, err)

	assert.Equal(t, []string{ZetaSymbol}, result.Names)
	assert.InDelta(t, 0.25, result.Params[ZetaSymbol], 0.05)
	assert.Less(t, result.Loss, 0.01)
	assert.Greater(t, result.FuncEvaluations, 2)
}

func TestCharacterizePhasedFSimParametersWithXEBErrors(t *testing.T) {
	depths := []int{1}
	pure, err := SimulateTwoQubitXEBCircuits(context.Background(), testLibrary(), depths)
	require.NoError(t, err)
	options := NewSqrtISwapXEBOptions()

	t.Run("no angles", func(t *testing.T) {
		_, err := CharacterizePhasedFSimParametersWithXEB(context.Background(), SampledTable(pure), testLibrary(), depths,
			SqrtISwapXEBOptions{})
		assert.ErrorIs(t, err, quantum.ErrInvalidArgument)
	})

	t.Run("no data", func(t *testing.T) {
		_, err := CharacterizePhasedFSimParametersWithXEB(context.Background(), SampledTable{}, testLibrary(), depths, options)
		assert.ErrorIs(t, err, quantum.ErrInvalidArgument)
	})

	t.Run("loss failure propagates", func(t *testing.T) {
		// The library has a symbol the characterization does not bind.
		stray := quantum.PhasedFSimGate{Theta: quantum.Symbol("stray")}
		circuits := []quantum.Circuit{quantum.NewCircuit(
			quantum.MustMoment(quantum.On(quantum.HGate{}, 0)),
			quantum.MustMoment(quantum.On(stray, 0, 1)),
			quantum.MustMoment(quantum.On(quantum.HGate{}, 1)),
		)}
		sampled := SampledTable{{CircuitIndex: 0, CycleDepth: 1}: {0.25, 0.25, 0.25, 0.25}}
		_, err := CharacterizePhasedFSimParametersWithXEB(context.Background(), sampled, circuits, depths, options)
		assert.ErrorIs(t, err, quantum.ErrUnresolvedSymbol)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := CharacterizePhasedFSimParametersWithXEB(ctx, SampledTable(pure), testLibrary(), depths, options)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSimplexConverger(t *testing.T) {
	window := &evaluationWindow{}
	c := &simplexConverger{xatol: 0.01, fatol: 0.01, window: window}
	c.Init(2)

	best := &optimize.Location{X: []float64{1, 1}, F: 0.5}
	window.add([]float64{1, 1}, 0.5)
	window.add([]float64{1.005, 1}, 0.502)
	assert.Equal(t, optimize.NotTerminated, c.Converged(best), "window not yet full")

	window.add([]float64{1, 0.995}, 0.501)
	assert.Equal(t, optimize.FunctionConvergence, c.Converged(best))

	window.add([]float64{1.2, 1}, 0.501)
	assert.Equal(t, optimize.NotTerminated, c.Converged(best), "point outside xatol")

	window.fail(errors.New("simulation failed"))
	assert.Equal(t, optimize.Failure, c.Converged(best))
}
