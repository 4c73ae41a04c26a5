package quantum

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// QASMBuilder builds OpenQASM 2.0 circuits
type QASMBuilder struct {
	version      string
	includeStmt  string
	registers    []string
	gates        []string
	measurements []string
}

// NewQASMBuilder creates a new OpenQASM circuit builder
func NewQASMBuilder(numQubits int, numClassical int) *QASMBuilder {
	builder := &QASMBuilder{
		version:      "OPENQASM 2.0;",
		includeStmt:  "include \"qelib1.inc\";",
		registers:    make([]string, 0),
		gates:        make([]string, 0),
		measurements: make([]string, 0),
	}

	builder.registers = append(builder.registers, fmt.Sprintf("qreg q[%d];", numQubits))
	if numClassical > 0 {
		builder.registers = append(builder.registers, fmt.Sprintf("creg c[%d];", numClassical))
	}

	return builder
}

// AddGate adds a quantum gate operation
func (b *QASMBuilder) AddGate(gate string) {
	b.gates = append(b.gates, gate)
}

// AddMeasurement adds a measurement operation
func (b *QASMBuilder) AddMeasurement(qubit int, classical int) {
	b.measurements = append(b.measurements,
		fmt.Sprintf("measure q[%d] -> c[%d];", qubit, classical))
}

// Build generates the complete QASM circuit string
func (b *QASMBuilder) Build() string {
	var circuit strings.Builder

	circuit.WriteString(b.version + "\n")
	circuit.WriteString(b.includeStmt + "\n")
	circuit.WriteString("\n")

	for _, reg := range b.registers {
		circuit.WriteString(reg + "\n")
	}
	circuit.WriteString("\n")

	for _, gate := range b.gates {
		circuit.WriteString(gate + "\n")
	}

	if len(b.measurements) > 0 {
		circuit.WriteString("\n")
		for _, meas := range b.measurements {
			circuit.WriteString(meas + "\n")
		}
	}

	return circuit.String()
}

// MeasurementLayout records which classical bits hold a measurement, in the
// order of the measured qubits.
type MeasurementLayout struct {
	Key       string
	Classical []int
}

// qelib1 gates emitted verbatim; everything else must decompose into them
var nativeQASMGates = map[string]bool{
	"h": true, "s": true, "sdg": true,
	"rx": true, "ry": true, "rz": true, "u1": true,
	"cz": true, "cu1": true, "rxx": true,
}

// BuildCircuitQASM renders a circuit as OpenQASM 2.0. Qubits are mapped to
// q[0..n) in ascending order, moments are separated by barriers, and every
// measurement gets consecutive classical bits.
func BuildCircuitQASM(circuit Circuit, resolver ParamResolver) (string, []MeasurementLayout, error) {
	qubits := circuit.AllQubits()
	index := make(map[Qubit]int, len(qubits))
	for i, q := range qubits {
		index[q] = i
	}

	numClassical := 0
	for _, m := range circuit.moments {
		for _, op := range m.ops {
			if _, ok := op.Gate.(MeasureGate); ok {
				numClassical += len(op.Qubits)
			}
		}
	}

	builder := NewQASMBuilder(len(qubits), numClassical)
	var layouts []MeasurementLayout
	classical := 0

	for i, m := range circuit.moments {
		for _, op := range m.ops {
			if mg, ok := op.Gate.(MeasureGate); ok {
				layout := MeasurementLayout{Key: mg.Key}
				for _, q := range op.Qubits {
					builder.AddMeasurement(index[q], classical)
					layout.Classical = append(layout.Classical, classical)
					classical++
				}
				layouts = append(layouts, layout)
				continue
			}
			if err := addGateQASM(builder, op, index, resolver); err != nil {
				return "", nil, fmt.Errorf("moment %d: %w", i, err)
			}
		}
		if i < len(circuit.moments)-1 && len(qubits) > 0 {
			builder.AddGate("barrier q;")
		}
	}

	return builder.Build(), layouts, nil
}

func addGateQASM(builder *QASMBuilder, op Operation, index map[Qubit]int, resolver ParamResolver) error {
	gate := op.Gate
	if p, ok := gate.(Parameterized); ok {
		resolved, err := p.Resolve(resolver)
		if err != nil {
			return err
		}
		gate = resolved
	}

	if nativeQASMGates[gate.Name()] {
		args := make([]string, len(op.Qubits))
		for i, q := range op.Qubits {
			args[i] = fmt.Sprintf("q[%d]", index[q])
		}
		builder.AddGate(fmt.Sprintf("%s %s;", qasmGateName(gate), strings.Join(args, ",")))
		return nil
	}

	d, ok := gate.(Decomposer)
	if !ok {
		return fmt.Errorf("%w: gate %s has no OpenQASM 2.0 form", ErrInvalidArgument, gate)
	}
	ops, err := d.Decompose(op.Qubits, resolver)
	if err != nil {
		return err
	}
	for _, sub := range ops {
		if err := addGateQASM(builder, sub, index, resolver); err != nil {
			return err
		}
	}
	return nil
}

func qasmGateName(gate Gate) string {
	param := func(v float64) string {
		return gate.Name() + "(" + strconv.FormatFloat(v, 'g', 17, 64) + ")"
	}
	switch g := gate.(type) {
	case RxGate:
		return param(g.Theta)
	case RyGate:
		return param(g.Theta)
	case RzGate:
		return param(g.Theta)
	case PhaseGate:
		return param(g.Lambda)
	case CPhaseGate:
		return param(g.Lambda)
	case RxxGate:
		return param(g.Theta)
	default:
		return gate.Name()
	}
}

// ParseCounts converts backend counts into per-key outcomes. Count keys are
// classical register values, either binary with c[0] rightmost or hex with a
// 0x prefix.
func ParseCounts(counts map[string]int, layouts []MeasurementLayout) (Result, error) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := Result{Measurements: make(map[string][]int, len(layouts))}
	for _, layout := range layouts {
		result.Measurements[layout.Key] = make([]int, 0)
	}

	for _, k := range keys {
		register, err := parseRegister(k)
		if err != nil {
			return Result{}, err
		}
		for _, layout := range layouts {
			outcome := 0
			for _, c := range layout.Classical {
				outcome = outcome<<1 | int((register>>uint(c))&1)
			}
			for n := 0; n < counts[k]; n++ {
				result.Measurements[layout.Key] = append(result.Measurements[layout.Key], outcome)
			}
		}
	}
	return result, nil
}

func parseRegister(s string) (uint64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if strings.HasPrefix(s, "0x") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	v, err := strconv.ParseUint(s, 2, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count key %q: %w", s, err)
	}
	return v, nil
}
