package xeb

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

// Symbol names of the five PhasedFSim angles, in canonical order
const (
	ThetaSymbol = "theta"
	ZetaSymbol  = "zeta"
	ChiSymbol   = "chi"
	GammaSymbol = "gamma"
	PhiSymbol   = "phi"
)

// PhasedFSimOptions selects which PhasedFSim angles are fitted and the value
// each angle starts from, or stays at when it is not fitted
type PhasedFSimOptions struct {
	CharacterizeTheta bool `json:"characterize_theta"`
	CharacterizeZeta  bool `json:"characterize_zeta"`
	CharacterizeChi   bool `json:"characterize_chi"`
	CharacterizeGamma bool `json:"characterize_gamma"`
	CharacterizePhi   bool `json:"characterize_phi"`

	ThetaDefault float64 `json:"theta_default"`
	ZetaDefault  float64 `json:"zeta_default"`
	ChiDefault   float64 `json:"chi_default"`
	GammaDefault float64 `json:"gamma_default"`
	PhiDefault   float64 `json:"phi_default"`
}

// DefaultPhasedFSimOptions fits all five angles starting from zero
func DefaultPhasedFSimOptions() PhasedFSimOptions {
	return PhasedFSimOptions{
		CharacterizeTheta: true,
		CharacterizeZeta:  true,
		CharacterizeChi:   true,
		CharacterizeGamma: true,
		CharacterizePhi:   true,
	}
}

// Options returns o itself, so embedding types satisfy
// CharacterizationOptions with their own matcher
func (o PhasedFSimOptions) Options() PhasedFSimOptions {
	return o
}

type angleOption struct {
	name         string
	characterize bool
	value        float64
}

func (o PhasedFSimOptions) angles() []angleOption {
	return []angleOption{
		{ThetaSymbol, o.CharacterizeTheta, o.ThetaDefault},
		{ZetaSymbol, o.CharacterizeZeta, o.ZetaDefault},
		{ChiSymbol, o.CharacterizeChi, o.ChiDefault},
		{GammaSymbol, o.CharacterizeGamma, o.GammaDefault},
		{PhiSymbol, o.CharacterizePhi, o.PhiDefault},
	}
}

// InitialSimplexAndNames builds the starting Nelder-Mead simplex over the
// characterized angles. Row 0 holds the defaults and row i adds step to the
// i-th characterized angle. names lists the angles in column order.
func (o PhasedFSimOptions) InitialSimplexAndNames(step float64) (*mat.Dense, []string, error) {
	var x0 []float64
	var names []string
	for _, a := range o.angles() {
		if a.characterize {
			x0 = append(x0, a.value)
			names = append(names, a.name)
		}
	}
	n := len(x0)
	if n == 0 {
		return nil, nil, fmt.Errorf("%w: no angle is selected for characterization", quantum.ErrInvalidArgument)
	}
	if step == 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return nil, nil, fmt.Errorf("%w: simplex step size must be finite and non-zero, got %v", quantum.ErrInvalidArgument, step)
	}

	simplex := mat.NewDense(n+1, n, nil)
	for i := 0; i <= n; i++ {
		simplex.SetRow(i, x0)
		if i > 0 {
			simplex.Set(i, i-1, x0[i-1]+step)
		}
	}
	return simplex, names, nil
}

// Gate returns the PhasedFSim gate with a free symbol for every
// characterized angle and the default value for every other angle
func (o PhasedFSimOptions) Gate() quantum.PhasedFSimGate {
	a := o.angles()
	angle := func(i int) quantum.Angle {
		if a[i].characterize {
			return quantum.Symbol(a[i].name)
		}
		return quantum.Value(a[i].value)
	}
	return quantum.PhasedFSimGate{Theta: angle(0), Zeta: angle(1), Chi: angle(2), Gamma: angle(3), Phi: angle(4)}
}

// DefaultResolver binds every angle symbol to its default value
func (o PhasedFSimOptions) DefaultResolver() quantum.ParamResolver {
	resolver := make(quantum.ParamResolver, 5)
	for _, a := range o.angles() {
		resolver[a.name] = a.value
	}
	return resolver
}

// CharacterizationOptions pairs angle options with the operations they
// apply to
type CharacterizationOptions interface {
	Options() PhasedFSimOptions
	ShouldParameterize(op quantum.Operation) bool
}

// SqrtISwapXEBOptions characterizes sqrt(iSWAP) gates, starting theta at -π/4
type SqrtISwapXEBOptions struct {
	PhasedFSimOptions
}

// NewSqrtISwapXEBOptions fits all five angles of sqrt(iSWAP) gates
func NewSqrtISwapXEBOptions() SqrtISwapXEBOptions {
	o := DefaultPhasedFSimOptions()
	o.ThetaDefault = -math.Pi / 4
	return SqrtISwapXEBOptions{PhasedFSimOptions: o}
}

func (SqrtISwapXEBOptions) ShouldParameterize(op quantum.Operation) bool {
	_, ok := op.Gate.(quantum.SqrtISwapGate)
	return ok
}

// PhasedFSimXEBOptions characterizes PhasedFSim gates with fixed angles
type PhasedFSimXEBOptions struct {
	PhasedFSimOptions
}

func (PhasedFSimXEBOptions) ShouldParameterize(op quantum.Operation) bool {
	g, ok := op.Gate.(quantum.PhasedFSimGate)
	return ok && len(g.Symbols()) == 0
}

// ParameterizePhasedFSimCircuit replaces every operation matched by the
// options with the parameterized PhasedFSim gate on the same qubits. Other
// operations are kept as they are.
func ParameterizePhasedFSimCircuit(circuit quantum.Circuit, options CharacterizationOptions) quantum.Circuit {
	gate := options.Options().Gate()
	return circuit.MapOperations(func(op quantum.Operation) quantum.Operation {
		if options.ShouldParameterize(op) {
			return quantum.On(gate, op.Qubits...)
		}
		return op
	})
}

// Characterization defaults
const (
	DefaultInitialSimplexStepSize = 0.1
	DefaultXAtol                  = 1e-3
	DefaultFAtol                  = 1e-3
)

type characterizeConfig struct {
	step          float64
	xatol         float64
	fatol         float64
	verbose       bool
	workers       int
	maxIterations int
}

// CharacterizeOption configures CharacterizePhasedFSimParametersWithXEB
type CharacterizeOption func(*characterizeConfig)

// WithInitialSimplexStepSize sets the offset of the initial simplex vertices
func WithInitialSimplexStepSize(step float64) CharacterizeOption {
	return func(c *characterizeConfig) { c.step = step }
}

// WithXAtol sets the absolute parameter tolerance for convergence
func WithXAtol(xatol float64) CharacterizeOption {
	return func(c *characterizeConfig) { c.xatol = xatol }
}

// WithFAtol sets the absolute loss tolerance for convergence
func WithFAtol(fatol float64) CharacterizeOption {
	return func(c *characterizeConfig) { c.fatol = fatol }
}

// WithVerbose logs every trial's angles and loss at info level
func WithVerbose(verbose bool) CharacterizeOption {
	return func(c *characterizeConfig) { c.verbose = verbose }
}

// WithCharacterizeWorkers simulates circuits on n goroutines per trial
func WithCharacterizeWorkers(n int) CharacterizeOption {
	return func(c *characterizeConfig) { c.workers = n }
}

// WithMaxIterations caps both iterations and loss evaluations. The default
// is 200 per characterized angle.
func WithMaxIterations(n int) CharacterizeOption {
	return func(c *characterizeConfig) { c.maxIterations = n }
}

// CharacterizationResult is the outcome of a characterization run
type CharacterizationResult struct {
	RunID           uuid.UUID          `json:"run_id"`
	Names           []string           `json:"names"`
	X               []float64          `json:"x"`
	Params          map[string]float64 `json:"params"`
	Loss            float64            `json:"loss"`
	Status          string             `json:"status"`
	Converged       bool               `json:"converged"`
	Iterations      int                `json:"iterations"`
	FuncEvaluations int                `json:"function_evaluations"`
}

// CharacterizePhasedFSimParametersWithXEB fits the characterized PhasedFSim
// angles to sampled data. circuits must be the sampled library with the
// gates under study parameterized, usually by ParameterizePhasedFSimCircuit.
//
// The loss of an angle vector is 1 - mean fidelity over cycle depths, as
// computed by BenchmarkTwoQubitXEBFidelities with the angles bound. It is
// minimized with Nelder-Mead from the simplex of InitialSimplexAndNames.
// Running out of iterations is not an error; check Converged.
func CharacterizePhasedFSimParametersWithXEB(ctx context.Context, sampled SampledTable, circuits []quantum.Circuit, cycleDepths []int, options CharacterizationOptions, opts ...CharacterizeOption) (*CharacterizationResult, error) {
	cfg := characterizeConfig{
		step:  DefaultInitialSimplexStepSize,
		xatol: DefaultXAtol,
		fatol: DefaultFAtol,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	simplex, names, err := options.Options().InitialSimplexAndNames(cfg.step)
	if err != nil {
		return nil, err
	}
	if len(sampled) == 0 {
		return nil, fmt.Errorf("%w: no sampled data to fit", quantum.ErrInvalidArgument)
	}
	dim := len(names)
	if cfg.maxIterations <= 0 {
		cfg.maxIterations = 200 * dim
	}

	runID := uuid.New()
	logger := zap.L().With(zap.String("run_id", runID.String()))

	window := &evaluationWindow{}
	loss := func(x []float64) float64 {
		if window.failure() != nil {
			return math.Inf(1)
		}
		if err := ctx.Err(); err != nil {
			window.fail(err)
			return math.Inf(1)
		}
		fids, err := BenchmarkTwoQubitXEBFidelities(ctx, sampled, circuits, cycleDepths,
			WithResolver(bind(names, x)), WithSimulationWorkers(cfg.workers))
		if err != nil {
			window.fail(err)
			return math.Inf(1)
		}
		values := make([]float64, len(fids))
		for i, f := range fids {
			values[i] = f.Fidelity
		}
		l := 1 - stat.Mean(values, nil)
		window.add(x, l)
		if cfg.verbose {
			logger.Info("characterization trial", zap.Strings("names", names), zap.Float64s("angles", x), zap.Float64("loss", l))
		}
		return l
	}

	// NelderMead needs the loss at every supplied vertex
	vertices := make([][]float64, dim+1)
	values := make([]float64, dim+1)
	for i := range vertices {
		vertices[i] = mat.Row(nil, i, simplex)
		values[i] = loss(vertices[i])
	}
	if lossErr := window.failure(); lossErr != nil {
		return nil, fmt.Errorf("characterization run %s: %w", runID, lossErr)
	}

	problem := optimize.Problem{Func: loss}
	settings := &optimize.Settings{
		Converger: &simplexConverger{
			xatol:  cfg.xatol,
			fatol:  cfg.fatol,
			window: window,
		},
		InitValues:      &optimize.Location{F: values[0]},
		MajorIterations: cfg.maxIterations,
		FuncEvaluations: cfg.maxIterations,
	}
	method := &optimize.NelderMead{InitialVertices: vertices, InitialValues: values}

	res, err := optimize.Minimize(problem, vertices[0], settings, method)
	if lossErr := window.failure(); lossErr != nil {
		return nil, fmt.Errorf("characterization run %s: %w", runID, lossErr)
	}
	if err != nil {
		return nil, fmt.Errorf("characterization run %s: %w", runID, err)
	}

	result := &CharacterizationResult{
		RunID:           runID,
		Names:           names,
		X:               append([]float64(nil), res.X...),
		Params:          bind(names, res.X),
		Loss:            res.F,
		Status:          res.Status.String(),
		Converged:       res.Status == optimize.FunctionConvergence,
		Iterations:      res.Stats.MajorIterations,
		FuncEvaluations: res.Stats.FuncEvaluations,
	}
	logger.Info("characterization finished",
		zap.String("status", result.Status), zap.Float64("loss", result.Loss), zap.Int("evaluations", result.FuncEvaluations))
	return result, nil
}

func bind(names []string, x []float64) quantum.ParamResolver {
	params := make(quantum.ParamResolver, len(names))
	for i, name := range names {
		params[name] = x[i]
	}
	return params
}

type evaluation struct {
	x []float64
	f float64
}

// evaluationWindow keeps the most recent loss evaluations and the first
// error raised while computing the loss. The optimizer evaluates the loss
// and checks convergence on different goroutines.
type evaluationWindow struct {
	mutex sync.Mutex
	size  int
	items []evaluation
	err   error
}

func (w *evaluationWindow) reset(size int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.size = size
	w.items = w.items[:0]
}

func (w *evaluationWindow) add(x []float64, f float64) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.size == 0 {
		return
	}
	if len(w.items) == w.size {
		w.items = w.items[1:]
	}
	w.items = append(w.items, evaluation{x: append([]float64(nil), x...), f: f})
}

func (w *evaluationWindow) fail(err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *evaluationWindow) failure() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.err
}

// within reports whether the window is full and every recent evaluation lies
// within xatol of x in every coordinate and within fatol of f
func (w *evaluationWindow) within(x []float64, f, xatol, fatol float64) bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.size == 0 || len(w.items) < w.size {
		return false
	}
	for _, e := range w.items {
		if floats.Distance(e.x, x, math.Inf(1)) > xatol || math.Abs(e.f-f) > fatol {
			return false
		}
	}
	return true
}

// simplexConverger stops Nelder-Mead once the last dim+1 evaluated points
// all sit within xatol and fatol of the best vertex. Nelder-Mead only
// evaluates points on or next to its simplex, so this tracks the simplex
// having shrunk to that size.
type simplexConverger struct {
	xatol  float64
	fatol  float64
	window *evaluationWindow
}

func (c *simplexConverger) Init(dim int) {
	c.window.reset(dim + 1)
}

func (c *simplexConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.window.failure() != nil {
		return optimize.Failure
	}
	if c.window.within(loc.X, loc.F, c.xatol, c.fatol) {
		return optimize.FunctionConvergence
	}
	return optimize.NotTerminated
}
