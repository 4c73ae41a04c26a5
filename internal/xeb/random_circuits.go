package xeb

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

// singleQubitLayerGates are the gates random layers draw from
var singleQubitLayerGates = []quantum.Gate{
	quantum.RxGate{Theta: math.Pi / 2},
	quantum.RyGate{Theta: math.Pi / 2},
	quantum.HGate{},
}

// GenerateRandomTwoQubitCircuits builds a library of n random circuits on
// q0 and q1, each supporting cycle depths up to maxCycleDepth. A circuit is a
// random single-qubit layer followed by maxCycleDepth cycles of twoQubitGate
// and another random single-qubit layer, so it has 2·maxCycleDepth+1
// moments. A qubit never receives the same single-qubit gate in consecutive
// layers.
func GenerateRandomTwoQubitCircuits(n, maxCycleDepth int, q0, q1 quantum.Qubit, twoQubitGate quantum.Gate, seed uint64) ([]quantum.Circuit, error) {
	if n <= 0 || maxCycleDepth < 0 {
		return nil, fmt.Errorf("%w: need a positive circuit count and non-negative depth, got %d and %d",
			quantum.ErrInvalidArgument, n, maxCycleDepth)
	}
	if q0 == q1 {
		return nil, fmt.Errorf("%w: qubits must differ, got %s twice", quantum.ErrInvalidArgument, q0)
	}
	if twoQubitGate == nil || twoQubitGate.NumQubits() != 2 {
		return nil, fmt.Errorf("%w: entangling gate must act on two qubits", quantum.ErrInvalidArgument)
	}

	rng := rand.New(rand.NewPCG(seed, seed+1))
	circuits := make([]quantum.Circuit, n)
	for i := range circuits {
		last := [2]int{-1, -1}
		layer := func() (quantum.Moment, error) {
			var ops [2]quantum.Operation
			for j, q := range []quantum.Qubit{q0, q1} {
				k := rng.IntN(len(singleQubitLayerGates))
				for k == last[j] {
					k = rng.IntN(len(singleQubitLayerGates))
				}
				last[j] = k
				ops[j] = quantum.On(singleQubitLayerGates[k], q)
			}
			return quantum.NewMoment(ops[:]...)
		}

		moments := make([]quantum.Moment, 0, 2*maxCycleDepth+1)
		first, err := layer()
		if err != nil {
			return nil, err
		}
		moments = append(moments, first)
		for d := 0; d < maxCycleDepth; d++ {
			entangling, err := quantum.NewMoment(quantum.On(twoQubitGate, q0, q1))
			if err != nil {
				return nil, err
			}
			m, err := layer()
			if err != nil {
				return nil, err
			}
			moments = append(moments, entangling, m)
		}
		circuits[i] = quantum.NewCircuit(moments...)
	}
	return circuits, nil
}
