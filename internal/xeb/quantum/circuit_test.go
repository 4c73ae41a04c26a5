package quantum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoment(t *testing.T) {
	tests := []struct {
		name    string
		ops     []Operation
		wantErr bool
	}{
		{"disjoint ops", []Operation{On(HGate{}, 0), On(SGate{}, 1)}, false},
		{"two-qubit op", []Operation{On(CZGate{}, 0, 1)}, false},
		{"empty", nil, false},
		{"overlapping qubits", []Operation{On(HGate{}, 0), On(CZGate{}, 0, 1)}, true},
		{"arity mismatch", []Operation{On(CZGate{}, 0)}, true},
		{"nil gate", []Operation{{Qubits: []Qubit{0}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMoment(tt.ops...)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCircuitTruncate(t *testing.T) {
	c := NewCircuit(
		MustMoment(On(HGate{}, 0)),
		MustMoment(On(CZGate{}, 0, 1)),
		MustMoment(On(SGate{}, 1)),
	)

	short, err := c.Truncate(2)
	require.NoError(t, err)
	assert.Equal(t, 2, short.Len())
	assert.Equal(t, 3, c.Len(), "original must be untouched")

	empty, err := c.Truncate(0)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())

	_, err = c.Truncate(4)
	assert.ErrorIs(t, err, ErrCircuitTooShort)

	_, err = c.Truncate(-1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCircuitAppendDoesNotAlias(t *testing.T) {
	base := NewCircuit(MustMoment(On(HGate{}, 0)))
	a := base.Append(MustMoment(On(SGate{}, 0)))
	b := base.Append(MustMoment(On(SdgGate{}, 0)))

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, "s", a.Moments()[1].Operations()[0].Gate.Name())
	assert.Equal(t, "sdg", b.Moments()[1].Operations()[0].Gate.Name())
}

func TestCircuitQubitsAndSymbols(t *testing.T) {
	c := NewCircuit(
		MustMoment(On(HGate{}, 5), On(HGate{}, 2)),
		MustMoment(On(PhasedFSimGate{Theta: Symbol("theta"), Phi: Symbol("phi")}, 2, 5)),
		MustMoment(On(PhasedFSimGate{Theta: Symbol("theta")}, 5, 2)),
	)

	assert.Equal(t, []Qubit{2, 5}, c.AllQubits())
	assert.Equal(t, []string{"phi", "theta"}, c.Symbols())

	resolved, err := c.Resolve(ParamResolver{"theta": 0.1, "phi": 0.2})
	require.NoError(t, err)
	assert.Empty(t, resolved.Symbols())

	_, err = c.Resolve(ParamResolver{"theta": 0.1})
	assert.ErrorIs(t, err, ErrUnresolvedSymbol)
}

func TestCircuitMapOperations(t *testing.T) {
	c := NewCircuit(MustMoment(On(SqrtISwap, 0, 1)), MustMoment(On(HGate{}, 0)))
	mapped := c.MapOperations(func(op Operation) Operation {
		if op.Gate == SqrtISwap {
			return On(PhasedFSimGate{Theta: Symbol("theta")}, op.Qubits...)
		}
		return op
	})

	assert.Equal(t, []string{"theta"}, mapped.Symbols())
	assert.Empty(t, c.Symbols())
}

func TestCircuitFingerprint(t *testing.T) {
	build := func(theta float64) Circuit {
		return NewCircuit(MustMoment(On(RxGate{Theta: theta}, 0)), MustMoment(On(CZGate{}, 0, 1)))
	}

	assert.Equal(t, build(0.5).Fingerprint(), build(0.5).Fingerprint())
	assert.NotEqual(t, build(0.5).Fingerprint(), build(0.6).Fingerprint())
	assert.Len(t, build(0.5).Fingerprint(), 64)
}
