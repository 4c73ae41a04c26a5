package fidelity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

func bellCircuit() quantum.Circuit {
	return quantum.NewCircuit(
		quantum.MustMoment(quantum.On(quantum.HGate{}, 0), quantum.On(quantum.HGate{}, 1)),
		quantum.MustMoment(quantum.On(quantum.CZGate{}, 0, 1)),
		quantum.MustMoment(quantum.On(quantum.HGate{}, 1)),
	)
}

func TestXEBFidelity(t *testing.T) {
	bell := bellCircuit()
	bitstrings := []int{0, 3, 3, 0}

	tests := []struct {
		name string
		eval func() (float64, error)
		want float64
	}{
		{"default is linear", func() (float64, error) { return XEBFidelity(bell, bitstrings) }, 1},
		{"linear", func() (float64, error) { return LinearXEBFidelity(bell, bitstrings) }, 1},
		{"log", func() (float64, error) { return LogXEBFidelity(bell, bitstrings) }, math.Ln2 + EulerGamma},
		{"hog", func() (float64, error) { return HOGScoreXEBFidelity(bell, bitstrings) }, 1 / math.Ln2},
		{"never observed outcomes", func() (float64, error) { return LinearXEBFidelity(bell, []int{1, 2}) }, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.eval()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestXEBFidelityQubitOrder(t *testing.T) {
	c := quantum.NewCircuit(quantum.MustMoment(
		quantum.On(quantum.RxGate{Theta: math.Pi}, 0),
		quantum.On(quantum.SGate{}, 1),
	))

	f, err := XEBFidelity(c, []int{2})
	require.NoError(t, err)
	assert.InDelta(t, 3, f, 1e-9)

	f, err = XEBFidelity(c, []int{2}, WithQubitOrder(1, 0))
	require.NoError(t, err)
	assert.InDelta(t, -1, f, 1e-9)

	f, err = XEBFidelity(c, []int{1}, WithQubitOrder(1, 0), WithSimulator(quantum.NewSimulator(3)))
	require.NoError(t, err)
	assert.InDelta(t, 3, f, 1e-9)

	_, err = XEBFidelity(c, []int{1}, WithQubitOrder(0, 2))
	assert.ErrorIs(t, err, quantum.ErrInvalidArgument)
}

func TestXEBFidelityAmplitudes(t *testing.T) {
	// the amplitudes disagree with the circuit, proving simulation is skipped
	c := quantum.NewCircuit(quantum.MustMoment(quantum.On(quantum.SGate{}, 0), quantum.On(quantum.SGate{}, 1)))
	amplitudes := map[int]complex128{
		1: complex(1/math.Sqrt2, 0),
		2: complex(0, 1/math.Sqrt2),
	}

	f, err := XEBFidelity(c, []int{1, 2}, WithAmplitudes(amplitudes))
	require.NoError(t, err)
	assert.InDelta(t, 1, f, 1e-12)

	_, err = XEBFidelity(c, []int{0}, WithAmplitudes(amplitudes))
	assert.ErrorIs(t, err, quantum.ErrInvalidArgument)
}

func TestXEBFidelityInvalidBitstrings(t *testing.T) {
	bell := bellCircuit()
	tests := []struct {
		name       string
		bitstrings []int
	}{
		{"equal to dimension", []int{0, 4}},
		{"negative", []int{-1}},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := XEBFidelity(bell, tt.bitstrings)
			assert.ErrorIs(t, err, quantum.ErrInvalidArgument)
		})
	}
}
