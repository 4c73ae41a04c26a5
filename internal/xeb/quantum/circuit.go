package quantum

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Qubit identifies a two-level site on a line. Qubits order numerically.
type Qubit int

func (q Qubit) String() string {
	return fmt.Sprintf("q(%d)", int(q))
}

// ParamResolver binds symbol names to numeric values
type ParamResolver map[string]float64

// Operation is a gate applied to an ordered list of qubits
type Operation struct {
	Gate   Gate
	Qubits []Qubit
}

// On applies a gate to the given qubits
func On(gate Gate, qubits ...Qubit) Operation {
	return Operation{Gate: gate, Qubits: append([]Qubit(nil), qubits...)}
}

func (op Operation) String() string {
	names := make([]string, len(op.Qubits))
	for i, q := range op.Qubits {
		names[i] = q.String()
	}
	return fmt.Sprintf("%s %s", op.Gate, strings.Join(names, ","))
}

// Moment is a set of operations acting on disjoint qubits during one time step
type Moment struct {
	ops []Operation
}

// NewMoment builds a moment, rejecting operations that overlap or whose
// qubit count does not match their gate.
func NewMoment(ops ...Operation) (Moment, error) {
	used := make(map[Qubit]bool)
	for _, op := range ops {
		if op.Gate == nil {
			return Moment{}, fmt.Errorf("%w: operation without a gate", ErrInvalidArgument)
		}
		if len(op.Qubits) != op.Gate.NumQubits() {
			return Moment{}, fmt.Errorf("%w: gate %s acts on %d qubits, got %d",
				ErrInvalidArgument, op.Gate, op.Gate.NumQubits(), len(op.Qubits))
		}
		for _, q := range op.Qubits {
			if used[q] {
				return Moment{}, fmt.Errorf("%w: qubit %s used twice in one moment", ErrInvalidArgument, q)
			}
			used[q] = true
		}
	}
	return Moment{ops: append([]Operation(nil), ops...)}, nil
}

// MustMoment is like NewMoment but panics on malformed input.
func MustMoment(ops ...Operation) Moment {
	m, err := NewMoment(ops...)
	if err != nil {
		panic(err)
	}
	return m
}

// Operations returns a copy of the moment's operations
func (m Moment) Operations() []Operation {
	return append([]Operation(nil), m.ops...)
}

// Qubits returns the qubits touched by the moment in ascending order
func (m Moment) Qubits() []Qubit {
	var qubits []Qubit
	for _, op := range m.ops {
		qubits = append(qubits, op.Qubits...)
	}
	sort.Slice(qubits, func(i, j int) bool { return qubits[i] < qubits[j] })
	return qubits
}

// Circuit is an immutable, time-ordered sequence of moments
type Circuit struct {
	moments []Moment
}

// NewCircuit creates a circuit from moments
func NewCircuit(moments ...Moment) Circuit {
	return Circuit{moments: append([]Moment(nil), moments...)}
}

// Len returns the number of moments
func (c Circuit) Len() int {
	return len(c.moments)
}

// Moments returns a copy of the circuit's moments
func (c Circuit) Moments() []Moment {
	return append([]Moment(nil), c.moments...)
}

// Truncate returns the circuit made of the first n moments.
func (c Circuit) Truncate(n int) (Circuit, error) {
	if n < 0 {
		return Circuit{}, fmt.Errorf("%w: cannot truncate to %d moments", ErrInvalidArgument, n)
	}
	if n > len(c.moments) {
		return Circuit{}, fmt.Errorf("%w: need %d moments, circuit has %d", ErrCircuitTooShort, n, len(c.moments))
	}
	return NewCircuit(c.moments[:n]...), nil
}

// Append returns a new circuit with the moments added at the end
func (c Circuit) Append(moments ...Moment) Circuit {
	out := make([]Moment, 0, len(c.moments)+len(moments))
	out = append(out, c.moments...)
	out = append(out, moments...)
	return Circuit{moments: out}
}

// AllQubits returns every qubit used by the circuit in ascending order
func (c Circuit) AllQubits() []Qubit {
	seen := make(map[Qubit]bool)
	var qubits []Qubit
	for _, m := range c.moments {
		for _, op := range m.ops {
			for _, q := range op.Qubits {
				if !seen[q] {
					seen[q] = true
					qubits = append(qubits, q)
				}
			}
		}
	}
	sort.Slice(qubits, func(i, j int) bool { return qubits[i] < qubits[j] })
	return qubits
}

// MapOperations rewrites every operation with fn. fn must keep the qubits of
// the operation it receives.
func (c Circuit) MapOperations(fn func(Operation) Operation) Circuit {
	moments := make([]Moment, len(c.moments))
	for i, m := range c.moments {
		ops := make([]Operation, len(m.ops))
		for j, op := range m.ops {
			ops[j] = fn(op)
		}
		moments[i] = Moment{ops: ops}
	}
	return Circuit{moments: moments}
}

// Symbols lists the free symbols of the circuit's gates, sorted and unique
func (c Circuit) Symbols() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range c.moments {
		for _, op := range m.ops {
			p, ok := op.Gate.(Parameterized)
			if !ok {
				continue
			}
			for _, s := range p.Symbols() {
				if !seen[s] {
					seen[s] = true
					names = append(names, s)
				}
			}
		}
	}
	sort.Strings(names)
	return names
}

// Resolve substitutes symbol values from the resolver into every
// parameterized gate.
func (c Circuit) Resolve(resolver ParamResolver) (Circuit, error) {
	moments := make([]Moment, len(c.moments))
	for i, m := range c.moments {
		ops := make([]Operation, len(m.ops))
		for j, op := range m.ops {
			ops[j] = op
			p, ok := op.Gate.(Parameterized)
			if !ok {
				continue
			}
			g, err := p.Resolve(resolver)
			if err != nil {
				return Circuit{}, fmt.Errorf("moment %d: %w", i, err)
			}
			ops[j] = Operation{Gate: g, Qubits: op.Qubits}
		}
		moments[i] = Moment{ops: ops}
	}
	return Circuit{moments: moments}, nil
}

func (c Circuit) String() string {
	var b strings.Builder
	for i, m := range c.moments {
		fmt.Fprintf(&b, "moment %d:", i)
		for _, op := range m.ops {
			b.WriteString(" " + op.String() + ";")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Fingerprint returns a SHA3-256 digest of the circuit's canonical text form.
// Structurally equal circuits share a fingerprint.
func (c Circuit) Fingerprint() string {
	sum := sha3.Sum256([]byte(c.String()))
	return hex.EncodeToString(sum[:])
}
