package quantum

import (
	"fmt"
	"math"
	"math/cmplx"
	"strconv"
	"strings"
)

// Gate is a unitary acting on a fixed number of qubits. Matrix returns the
// row-major 2^n x 2^n unitary with the first qubit as most significant bit.
type Gate interface {
	fmt.Stringer
	Name() string
	NumQubits() int
	Matrix(resolver ParamResolver) ([]complex128, error)
}

// Parameterized is implemented by gates whose angles may be free symbols
type Parameterized interface {
	Gate
	Symbols() []string
	Resolve(resolver ParamResolver) (Gate, error)
}

// Decomposer is implemented by gates that can be rewritten into simpler gates
// with the same unitary action.
type Decomposer interface {
	Decompose(qubits []Qubit, resolver ParamResolver) ([]Operation, error)
}

// Angle is a gate angle that is either a fixed value or a free symbol
type Angle struct {
	Symbol string  `json:"symbol,omitempty"`
	Value  float64 `json:"value"`
}

// Value returns a fixed angle
func Value(v float64) Angle {
	return Angle{Value: v}
}

// Symbol returns a free angle named name
func Symbol(name string) Angle {
	return Angle{Symbol: name}
}

// IsSymbolic reports whether the angle still needs a resolver
func (a Angle) IsSymbolic() bool {
	return a.Symbol != ""
}

// Resolve returns the numeric value of the angle
func (a Angle) Resolve(resolver ParamResolver) (float64, error) {
	if !a.IsSymbolic() {
		return a.Value, nil
	}
	v, ok := resolver[a.Symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnresolvedSymbol, a.Symbol)
	}
	return v, nil
}

func (a Angle) String() string {
	if a.IsSymbolic() {
		return a.Symbol
	}
	return strconv.FormatFloat(a.Value, 'g', -1, 64)
}

func formatAngle(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Single-qubit gates

// HGate is the Hadamard gate
type HGate struct{}

func (HGate) Name() string   { return "h" }
func (HGate) NumQubits() int { return 1 }
func (HGate) String() string { return "h" }
func (HGate) Matrix(ParamResolver) ([]complex128, error) {
	r := complex(1/math.Sqrt2, 0)
	return []complex128{r, r, r, -r}, nil
}

// SGate is the phase gate diag(1, i)
type SGate struct{}

func (SGate) Name() string   { return "s" }
func (SGate) NumQubits() int { return 1 }
func (SGate) String() string { return "s" }
func (SGate) Matrix(ParamResolver) ([]complex128, error) {
	return []complex128{1, 0, 0, 1i}, nil
}

// SdgGate is the inverse phase gate diag(1, -i)
type SdgGate struct{}

func (SdgGate) Name() string   { return "sdg" }
func (SdgGate) NumQubits() int { return 1 }
func (SdgGate) String() string { return "sdg" }
func (SdgGate) Matrix(ParamResolver) ([]complex128, error) {
	return []complex128{1, 0, 0, -1i}, nil
}

// RxGate rotates about the X axis by Theta radians
type RxGate struct{ Theta float64 }

func (RxGate) Name() string     { return "rx" }
func (RxGate) NumQubits() int   { return 1 }
func (g RxGate) String() string { return "rx(" + formatAngle(g.Theta) + ")" }
func (g RxGate) Matrix(ParamResolver) ([]complex128, error) {
	c := complex(math.Cos(g.Theta/2), 0)
	s := complex(0, -math.Sin(g.Theta/2))
	return []complex128{c, s, s, c}, nil
}

// RyGate rotates about the Y axis by Theta radians
type RyGate struct{ Theta float64 }

func (RyGate) Name() string     { return "ry" }
func (RyGate) NumQubits() int   { return 1 }
func (g RyGate) String() string { return "ry(" + formatAngle(g.Theta) + ")" }
func (g RyGate) Matrix(ParamResolver) ([]complex128, error) {
	c := complex(math.Cos(g.Theta/2), 0)
	s := complex(math.Sin(g.Theta/2), 0)
	return []complex128{c, -s, s, c}, nil
}

// RzGate rotates about the Z axis by Theta radians
type RzGate struct{ Theta float64 }

func (RzGate) Name() string     { return "rz" }
func (RzGate) NumQubits() int   { return 1 }
func (g RzGate) String() string { return "rz(" + formatAngle(g.Theta) + ")" }
func (g RzGate) Matrix(ParamResolver) ([]complex128, error) {
	return []complex128{cmplx.Exp(complex(0, -g.Theta/2)), 0, 0, cmplx.Exp(complex(0, g.Theta/2))}, nil
}

// PhaseGate is diag(1, e^{i·Lambda}), OpenQASM's u1
type PhaseGate struct{ Lambda float64 }

func (PhaseGate) Name() string     { return "u1" }
func (PhaseGate) NumQubits() int   { return 1 }
func (g PhaseGate) String() string { return "u1(" + formatAngle(g.Lambda) + ")" }
func (g PhaseGate) Matrix(ParamResolver) ([]complex128, error) {
	return []complex128{1, 0, 0, cmplx.Exp(complex(0, g.Lambda))}, nil
}

// Two-qubit gates

// CZGate is the controlled-Z gate
type CZGate struct{}

func (CZGate) Name() string   { return "cz" }
func (CZGate) NumQubits() int { return 2 }
func (CZGate) String() string { return "cz" }
func (CZGate) Matrix(ParamResolver) ([]complex128, error) {
	return diag4(1, 1, 1, -1), nil
}

// CPhaseGate is diag(1, 1, 1, e^{i·Lambda}), OpenQASM's cu1
type CPhaseGate struct{ Lambda float64 }

func (CPhaseGate) Name() string     { return "cu1" }
func (CPhaseGate) NumQubits() int   { return 2 }
func (g CPhaseGate) String() string { return "cu1(" + formatAngle(g.Lambda) + ")" }
func (g CPhaseGate) Matrix(ParamResolver) ([]complex128, error) {
	return diag4(1, 1, 1, cmplx.Exp(complex(0, g.Lambda))), nil
}

// RxxGate is exp(-i·Theta/2·X⊗X)
type RxxGate struct{ Theta float64 }

func (RxxGate) Name() string     { return "rxx" }
func (RxxGate) NumQubits() int   { return 2 }
func (g RxxGate) String() string { return "rxx(" + formatAngle(g.Theta) + ")" }
func (g RxxGate) Matrix(ParamResolver) ([]complex128, error) {
	c := complex(math.Cos(g.Theta/2), 0)
	s := complex(0, -math.Sin(g.Theta/2))
	return []complex128{
		c, 0, 0, s,
		0, c, s, 0,
		0, s, c, 0,
		s, 0, 0, c,
	}, nil
}

// SqrtISwapGate is the square root of the iSWAP gate
type SqrtISwapGate struct{}

// SqrtISwap is the gate characterized by SqrtISwapXEBOptions
var SqrtISwap = SqrtISwapGate{}

func (SqrtISwapGate) Name() string   { return "sqrt_iswap" }
func (SqrtISwapGate) NumQubits() int { return 2 }
func (SqrtISwapGate) String() string { return "sqrt_iswap" }
func (SqrtISwapGate) Matrix(ParamResolver) ([]complex128, error) {
	r := complex(1/math.Sqrt2, 0)
	ir := complex(0, 1/math.Sqrt2)
	return []complex128{
		1, 0, 0, 0,
		0, r, ir, 0,
		0, ir, r, 0,
		0, 0, 0, 1,
	}, nil
}

// Decompose rewrites sqrt(iSWAP) as the PhasedFSim gate with theta = -π/4
func (SqrtISwapGate) Decompose(qubits []Qubit, resolver ParamResolver) ([]Operation, error) {
	return PhasedFSimGate{Theta: Value(-math.Pi / 4)}.Decompose(qubits, resolver)
}

// PhasedFSimGate is the general excitation-preserving two-qubit gate
//
//	[[1, 0,                      0,                      0              ],
//	 [0, e^{-iγ-iζ} cos θ,       -i e^{-iγ+iχ} sin θ,    0              ],
//	 [0, -i e^{-iγ-iχ} sin θ,    e^{-iγ+iζ} cos θ,       0              ],
//	 [0, 0,                      0,                      e^{-2iγ-iφ}    ]]
type PhasedFSimGate struct {
	Theta Angle `json:"theta"`
	Zeta  Angle `json:"zeta"`
	Chi   Angle `json:"chi"`
	Gamma Angle `json:"gamma"`
	Phi   Angle `json:"phi"`
}

func (PhasedFSimGate) Name() string   { return "phased_fsim" }
func (PhasedFSimGate) NumQubits() int { return 2 }

func (g PhasedFSimGate) String() string {
	return fmt.Sprintf("phased_fsim(%s,%s,%s,%s,%s)", g.Theta, g.Zeta, g.Chi, g.Gamma, g.Phi)
}

func (g PhasedFSimGate) angles() []Angle {
	return []Angle{g.Theta, g.Zeta, g.Chi, g.Gamma, g.Phi}
}

// Symbols returns the gate's free symbols in theta, zeta, chi, gamma, phi order
func (g PhasedFSimGate) Symbols() []string {
	var names []string
	for _, a := range g.angles() {
		if a.IsSymbolic() {
			names = append(names, a.Symbol)
		}
	}
	return names
}

func (g PhasedFSimGate) resolved(resolver ParamResolver) (theta, zeta, chi, gamma, phi float64, err error) {
	vals := make([]float64, 5)
	for i, a := range g.angles() {
		if vals[i], err = a.Resolve(resolver); err != nil {
			return
		}
	}
	return vals[0], vals[1], vals[2], vals[3], vals[4], nil
}

// Resolve returns a copy of the gate with all angles fixed
func (g PhasedFSimGate) Resolve(resolver ParamResolver) (Gate, error) {
	theta, zeta, chi, gamma, phi, err := g.resolved(resolver)
	if err != nil {
		return nil, err
	}
	return PhasedFSimGate{
		Theta: Value(theta),
		Zeta:  Value(zeta),
		Chi:   Value(chi),
		Gamma: Value(gamma),
		Phi:   Value(phi),
	}, nil
}

func (g PhasedFSimGate) Matrix(resolver ParamResolver) ([]complex128, error) {
	theta, zeta, chi, gamma, phi, err := g.resolved(resolver)
	if err != nil {
		return nil, err
	}
	c := complex(math.Cos(theta), 0)
	s := complex(math.Sin(theta), 0)
	e := func(x float64) complex128 { return cmplx.Exp(complex(0, x)) }
	return []complex128{
		1, 0, 0, 0,
		0, e(-gamma-zeta) * c, -1i * e(-gamma+chi) * s, 0,
		0, -1i * e(-gamma-chi) * s, e(-gamma+zeta) * c, 0,
		0, 0, 0, e(-2*gamma - phi),
	}, nil
}

// Decompose rewrites the gate into u1, rxx, s, sdg and cu1 gates:
// (u1(ζ-γ)⊗u1(χ-γ)) · cu1(-φ) · ryy(θ) · rxx(θ) · (I⊗u1(-ζ-χ)),
// with ryy(θ) = (s⊗s) · rxx(θ) · (sdg⊗sdg).
func (g PhasedFSimGate) Decompose(qubits []Qubit, resolver ParamResolver) ([]Operation, error) {
	if len(qubits) != 2 {
		return nil, fmt.Errorf("%w: phased_fsim acts on 2 qubits, got %d", ErrInvalidArgument, len(qubits))
	}
	theta, zeta, chi, gamma, phi, err := g.resolved(resolver)
	if err != nil {
		return nil, err
	}
	a, b := qubits[0], qubits[1]
	return []Operation{
		On(PhaseGate{Lambda: -zeta - chi}, b),
		On(RxxGate{Theta: theta}, a, b),
		On(SdgGate{}, a),
		On(SdgGate{}, b),
		On(RxxGate{Theta: theta}, a, b),
		On(SGate{}, a),
		On(SGate{}, b),
		On(CPhaseGate{Lambda: -phi}, a, b),
		On(PhaseGate{Lambda: zeta - gamma}, a),
		On(PhaseGate{Lambda: chi - gamma}, b),
	}, nil
}

// MeasureGate is a terminal computational-basis measurement of its qubits.
// It leaves the state unchanged during simulation.
type MeasureGate struct {
	Key   string
	Width int
}

// Measure returns a measurement of the qubits recorded under key
func Measure(key string, qubits ...Qubit) Operation {
	return On(MeasureGate{Key: key, Width: len(qubits)}, qubits...)
}

func (MeasureGate) Name() string     { return "measure" }
func (g MeasureGate) NumQubits() int { return g.Width }
func (g MeasureGate) String() string { return "measure(" + g.Key + ")" }
func (g MeasureGate) Matrix(ParamResolver) ([]complex128, error) {
	n := 1 << g.Width
	m := make([]complex128, n*n)
	for i := 0; i < n; i++ {
		m[i*n+i] = 1
	}
	return m, nil
}

func diag4(a, b, c, d complex128) []complex128 {
	return []complex128{
		a, 0, 0, 0,
		0, b, 0, 0,
		0, 0, c, 0,
		0, 0, 0, d,
	}
}

// ParseGate builds a gate from its name and numeric parameters, as used by
// the circuit wire format.
func ParseGate(name string, params []float64) (Gate, error) {
	want := func(n int) error {
		if len(params) != n {
			return fmt.Errorf("%w: gate %s takes %d parameters, got %d", ErrInvalidArgument, name, n, len(params))
		}
		return nil
	}
	var g Gate
	var n int
	switch strings.ToLower(name) {
	case "h":
		g, n = HGate{}, 0
	case "s":
		g, n = SGate{}, 0
	case "sdg":
		g, n = SdgGate{}, 0
	case "cz":
		g, n = CZGate{}, 0
	case "sqrt_iswap":
		g, n = SqrtISwap, 0
	case "rx":
		if err := want(1); err != nil {
			return nil, err
		}
		return RxGate{Theta: params[0]}, nil
	case "ry":
		if err := want(1); err != nil {
			return nil, err
		}
		return RyGate{Theta: params[0]}, nil
	case "rz":
		if err := want(1); err != nil {
			return nil, err
		}
		return RzGate{Theta: params[0]}, nil
	case "u1":
		if err := want(1); err != nil {
			return nil, err
		}
		return PhaseGate{Lambda: params[0]}, nil
	case "cu1":
		if err := want(1); err != nil {
			return nil, err
		}
		return CPhaseGate{Lambda: params[0]}, nil
	case "rxx":
		if err := want(1); err != nil {
			return nil, err
		}
		return RxxGate{Theta: params[0]}, nil
	case "phased_fsim":
		if err := want(5); err != nil {
			return nil, err
		}
		return PhasedFSimGate{
			Theta: Value(params[0]),
			Zeta:  Value(params[1]),
			Chi:   Value(params[2]),
			Gamma: Value(params[3]),
			Phi:   Value(params[4]),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown gate %q", ErrInvalidArgument, name)
	}
	if err := want(n); err != nil {
		return nil, err
	}
	return g, nil
}
