// Package xeb runs two-qubit cross-entropy benchmarking: it samples and
// simulates depth-truncated circuits, aggregates the results into fidelity
// per cycle depth, and fits PhasedFSim gate angles to sampled data.
package xeb

import (
	"fmt"
	"sort"
)

// MeasurementKey is the key of the terminal measurement appended to sampled
// circuits
const MeasurementKey = "xeb"

// TaskKey identifies one (circuit, cycle depth) unit of work
type TaskKey struct {
	CircuitIndex int `json:"circuit_index"`
	CycleDepth   int `json:"cycle_depth"`
}

func (k TaskKey) String() string {
	return fmt.Sprintf("(circuit %d, depth %d)", k.CircuitIndex, k.CycleDepth)
}

// SampledTable maps each task to its empirical outcome distribution
type SampledTable map[TaskKey][]float64

// PureTable maps each task to its exact outcome distribution
type PureTable map[TaskKey][]float64

// Keys returns the table's keys ordered by cycle depth, then circuit index
func (t SampledTable) Keys() []TaskKey {
	return sortedKeys(t)
}

// Keys returns the table's keys ordered by cycle depth, then circuit index
func (t PureTable) Keys() []TaskKey {
	return sortedKeys(t)
}

func sortedKeys(t map[TaskKey][]float64) []TaskKey {
	keys := make([]TaskKey, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CycleDepth != keys[j].CycleDepth {
			return keys[i].CycleDepth < keys[j].CycleDepth
		}
		return keys[i].CircuitIndex < keys[j].CircuitIndex
	})
	return keys
}

// DepthFidelity is one row of the aggregated fidelity table
type DepthFidelity struct {
	CycleDepth int     `json:"cycle_depth"`
	Fidelity   float64 `json:"fidelity"`
}
