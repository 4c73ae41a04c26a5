package quantum

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertUnitary(t *testing.T, m []complex128) {
	t.Helper()
	n := int(math.Sqrt(float64(len(m))))
	require.Equal(t, n*n, len(m))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var dot complex128
			for k := 0; k < n; k++ {
				dot += cmplx.Conj(m[k*n+i]) * m[k*n+j]
			}
			want := complex(0, 0)
			if i == j {
				want = 1
			}
			assert.InDelta(t, 0, cmplx.Abs(dot-want), 1e-12, "entry (%d,%d)", i, j)
		}
	}
}

// basisPrep flips the qubits set in index using rx(π), q0 most significant
func basisPrep(index int, a, b Qubit) Moment {
	var ops []Operation
	if index&2 != 0 {
		ops = append(ops, On(RxGate{Theta: math.Pi}, a))
	}
	if index&1 != 0 {
		ops = append(ops, On(RxGate{Theta: math.Pi}, b))
	}
	return MustMoment(ops...)
}

func oneOpPerMoment(ops []Operation) []Moment {
	moments := make([]Moment, len(ops))
	for i, op := range ops {
		moments[i] = MustMoment(op)
	}
	return moments
}

// TestGatesAreUnitary checks every gate matrix
func TestGatesAreUnitary(t *testing.T) {
	tests := []struct {
		name string
		gate Gate
	}{
		{"h", HGate{}},
		{"s", SGate{}},
		{"sdg", SdgGate{}},
		{"rx", RxGate{Theta: 0.3}},
		{"ry", RyGate{Theta: -1.1}},
		{"rz", RzGate{Theta: 2.2}},
		{"u1", PhaseGate{Lambda: 0.7}},
		{"cz", CZGate{}},
		{"cu1", CPhaseGate{Lambda: 1.9}},
		{"rxx", RxxGate{Theta: 0.4}},
		{"sqrt_iswap", SqrtISwap},
		{"phased_fsim", PhasedFSimGate{Value(0.5), Value(0.1), Value(-0.2), Value(0.3), Value(0.9)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.gate.Matrix(nil)
			require.NoError(t, err)
			assertUnitary(t, m)
		})
	}
}

// TestSqrtISwapIsPhasedFSim checks sqrt(iSWAP) equals PhasedFSim(-π/4, 0, 0, 0, 0)
func TestSqrtISwapIsPhasedFSim(t *testing.T) {
	want, err := SqrtISwap.Matrix(nil)
	require.NoError(t, err)
	got, err := PhasedFSimGate{Theta: Value(-math.Pi / 4)}.Matrix(nil)
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, 0, cmplx.Abs(want[i]-got[i]), 1e-12, "entry %d", i)
	}
}

// TestDecompositionMatchesMatrix compares each decomposition against the
// gate's own matrix on every basis state
func TestDecompositionMatchesMatrix(t *testing.T) {
	a, b := Qubit(0), Qubit(1)
	tests := []struct {
		name string
		gate interface {
			Gate
			Decomposer
		}
	}{
		{"sqrt_iswap", SqrtISwap},
		{"phased_fsim zero", PhasedFSimGate{}},
		{"phased_fsim theta only", PhasedFSimGate{Theta: Value(0.8)}},
		{"phased_fsim general", PhasedFSimGate{Value(-0.6), Value(0.25), Value(-0.4), Value(0.15), Value(1.3)}},
		{"phased_fsim large angles", PhasedFSimGate{Value(2.5), Value(-3.0), Value(1.7), Value(-2.2), Value(-0.5)}},
	}

	sim := NewSimulator(1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := tt.gate.Decompose([]Qubit{a, b}, nil)
			require.NoError(t, err)
			for _, op := range ops {
				assert.True(t, nativeQASMGates[op.Gate.Name()], "non-native gate %s", op.Gate)
			}

			for index := 0; index < 4; index++ {
				prep := basisPrep(index, a, b)
				direct := NewCircuit(prep, MustMoment(On(tt.gate, a, b)))
				decomposed := NewCircuit(append([]Moment{prep}, oneOpPerMoment(ops)...)...)

				want, err := sim.FinalStateVector(direct, []Qubit{a, b}, nil)
				require.NoError(t, err)
				got, err := sim.FinalStateVector(decomposed, []Qubit{a, b}, nil)
				require.NoError(t, err)
				for i := range want {
					assert.InDelta(t, 0, cmplx.Abs(want[i]-got[i]), 1e-9, "basis %d amplitude %d", index, i)
				}
			}
		})
	}
}

// TestPhasedFSimSymbols tests symbol listing and resolution
func TestPhasedFSimSymbols(t *testing.T) {
	g := PhasedFSimGate{
		Theta: Symbol("theta"),
		Zeta:  Value(0.1),
		Chi:   Symbol("chi"),
		Gamma: Value(0),
		Phi:   Symbol("phi"),
	}
	assert.Equal(t, []string{"theta", "chi", "phi"}, g.Symbols())

	_, err := g.Matrix(ParamResolver{"theta": 1})
	assert.ErrorIs(t, err, ErrUnresolvedSymbol)

	resolved, err := g.Resolve(ParamResolver{"theta": 1, "chi": 2, "phi": 3})
	require.NoError(t, err)
	assert.Equal(t, PhasedFSimGate{Value(1), Value(0.1), Value(2), Value(0), Value(3)}, resolved)
	assert.Empty(t, resolved.(PhasedFSimGate).Symbols())
}

// TestParseGate tests gate construction from the wire format
func TestParseGate(t *testing.T) {
	tests := []struct {
		name    string
		gate    string
		params  []float64
		want    Gate
		wantErr bool
	}{
		{"hadamard", "h", nil, HGate{}, false},
		{"upper case", "CZ", nil, CZGate{}, false},
		{"sqrt iswap", "sqrt_iswap", nil, SqrtISwap, false},
		{"rx", "rx", []float64{0.5}, RxGate{Theta: 0.5}, false},
		{"phased fsim", "phased_fsim", []float64{1, 2, 3, 4, 5},
			PhasedFSimGate{Value(1), Value(2), Value(3), Value(4), Value(5)}, false},
		{"missing parameter", "rz", nil, nil, true},
		{"extra parameter", "h", []float64{1}, nil, true},
		{"unknown gate", "toffoli", nil, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGate(tt.gate, tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, g)
		})
	}
}
