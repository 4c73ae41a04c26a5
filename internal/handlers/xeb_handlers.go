package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	models "github.com/AlcalaRs/Cirq/internal/models/xeb"
	"github.com/AlcalaRs/Cirq/internal/xeb"
	"github.com/AlcalaRs/Cirq/internal/xeb/fidelity"
	"github.com/AlcalaRs/Cirq/internal/xeb/quantum"
)

// Settings are the server-side defaults applied to XEB requests
type Settings struct {
	Repetitions       int
	BatchSize         int
	SamplerWorkers    int
	SimulationWorkers int
}

// XEBHandler manages XEB-related HTTP requests
type XEBHandler struct {
	sampler  quantum.Sampler
	runs     *xeb.RunManager
	settings Settings
}

// NewXEBHandler creates a handler sampling on sampler and running long
// experiments through runs
func NewXEBHandler(sampler quantum.Sampler, runs *xeb.RunManager, settings Settings) *XEBHandler {
	if settings.Repetitions <= 0 {
		settings.Repetitions = xeb.DefaultRepetitions
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = xeb.DefaultBatchSize
	}
	if settings.SamplerWorkers <= 0 {
		settings.SamplerWorkers = xeb.DefaultSamplerWorkers
	}
	return &XEBHandler{sampler: sampler, runs: runs, settings: settings}
}

// RegisterRoutes mounts the XEB API under /api/v1/xeb
func (h *XEBHandler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1/xeb")
	api.GET("/health", h.HealthCheckHandler)
	api.POST("/estimate", h.EstimateHandler)
	api.POST("/least-squares", h.LeastSquaresHandler)
	api.POST("/benchmark", h.BenchmarkHandler)
	api.POST("/characterize", h.CharacterizeHandler)
	api.GET("/runs/:id", h.GetRunHandler)
}

// HealthCheckHandler handles GET /api/v1/xeb/health
func (h *XEBHandler) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "Cross-Entropy Benchmarking",
		"sampler":   h.sampler.Name(),
		"simulator": h.sampler.IsSimulator(),
	})
}

// EstimateHandler handles POST /api/v1/xeb/estimate
// Scores measured bitstrings against the ideal output of one circuit
func (h *XEBHandler) EstimateHandler(c *gin.Context) {
	var req models.EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	circuit, err := req.Circuit.ToCircuit()
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	estimators := map[string]fidelity.Estimator{
		"linear": fidelity.LinearXEBFidelityFromProbabilities,
		"log":    fidelity.LogXEBFidelityFromProbabilities,
		"hog":    fidelity.HOGScoreXEBFidelityFromProbabilities,
	}
	opts := []fidelity.EvalOption{fidelity.WithEstimator(estimators[req.Estimator])}
	if len(req.QubitOrder) > 0 {
		order := make([]quantum.Qubit, len(req.QubitOrder))
		for i, q := range req.QubitOrder {
			order[i] = quantum.Qubit(q)
		}
		opts = append(opts, fidelity.WithQubitOrder(order...))
	}

	f, err := fidelity.XEBFidelity(circuit, req.Bitstrings, opts...)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, models.EstimateResponse{
		Estimator: req.Estimator,
		Fidelity:  models.Number(f),
		Samples:   len(req.Bitstrings),
	})
}

// LeastSquaresHandler handles POST /api/v1/xeb/least-squares
func (h *XEBHandler) LeastSquaresHandler(c *gin.Context) {
	var req models.LeastSquaresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	var f float64
	var residuals []float64
	var err error
	if req.UsesExpectations() {
		f, residuals, err = fidelity.LeastSquaresXEBFidelityFromExpectations(req.Measured, req.Exact, req.Uniform)
	} else {
		var opts []fidelity.LSOption
		if req.Observable == "log" {
			opts = append(opts, fidelity.WithObservable(math.Log))
		}
		if req.Normalize != nil && !*req.Normalize {
			opts = append(opts, fidelity.WithoutNormalization())
		}
		f, residuals, err = fidelity.LeastSquaresXEBFidelityFromProbabilities(req.Dimension, req.Observed, req.All, opts...)
	}
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, models.LeastSquaresResponse{
		Fidelity:  models.Number(f),
		Residuals: models.Numbers(residuals),
	})
}

// BenchmarkHandler handles POST /api/v1/xeb/benchmark
// Starts a background run that samples the library and fits fidelity per
// cycle depth
func (h *XEBHandler) BenchmarkHandler(c *gin.Context) {
	var req models.BenchmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(h.settings.Repetitions, h.settings.BatchSize); err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	circuits, err := buildLibrary(&req, quantum.SqrtISwap)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.runs.Submit(models.RunBenchmark, h.sampler.Name(), len(circuits), req.CycleDepths,
		func(ctx context.Context) (interface{}, error) {
			sampled, err := h.sample(ctx, circuits, &req)
			if err != nil {
				return nil, err
			}
			fids, err := xeb.BenchmarkTwoQubitXEBFidelities(ctx, sampled, circuits, req.CycleDepths,
				xeb.WithSimulationWorkers(h.settings.SimulationWorkers))
			if err != nil {
				return nil, err
			}
			return models.BenchmarkResult{Fidelities: fidelityPoints(fids)}, nil
		})
	h.respondWithRun(c, run, err)
}

// CharacterizeHandler handles POST /api/v1/xeb/characterize
// Starts a background run that samples the library and fits the angles of
// its two-qubit gates
func (h *XEBHandler) CharacterizeHandler(c *gin.Context) {
	var req models.CharacterizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(h.settings.Repetitions, h.settings.BatchSize); err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	options, entangler := characterizationOptions(&req)
	circuits, err := buildLibrary(&req.BenchmarkRequest, entangler)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	var opts []xeb.CharacterizeOption
	if req.StepSize != 0 {
		opts = append(opts, xeb.WithInitialSimplexStepSize(req.StepSize))
	}
	if req.XAtol > 0 {
		opts = append(opts, xeb.WithXAtol(req.XAtol))
	}
	if req.FAtol > 0 {
		opts = append(opts, xeb.WithFAtol(req.FAtol))
	}
	if req.MaxIterations > 0 {
		opts = append(opts, xeb.WithMaxIterations(req.MaxIterations))
	}
	opts = append(opts, xeb.WithCharacterizeWorkers(h.settings.SimulationWorkers))

	run, err := h.runs.Submit(models.RunCharacterize, h.sampler.Name(), len(circuits), req.CycleDepths,
		func(ctx context.Context) (interface{}, error) {
			sampled, err := h.sample(ctx, circuits, &req.BenchmarkRequest)
			if err != nil {
				return nil, err
			}

			parameterized := make([]quantum.Circuit, len(circuits))
			for i, circuit := range circuits {
				parameterized[i] = xeb.ParameterizePhasedFSimCircuit(circuit, options)
			}
			result, err := xeb.CharacterizePhasedFSimParametersWithXEB(ctx, sampled, parameterized, req.CycleDepths, options, opts...)
			if err != nil {
				return nil, err
			}

			fitted := options.Options().DefaultResolver()
			for name, v := range result.Params {
				fitted[name] = v
			}
			fids, err := xeb.BenchmarkTwoQubitXEBFidelities(ctx, sampled, parameterized, req.CycleDepths,
				xeb.WithResolver(fitted), xeb.WithSimulationWorkers(h.settings.SimulationWorkers))
			if err != nil {
				return nil, err
			}

			params := make(map[string]models.Number, len(result.Params))
			for name, v := range result.Params {
				params[name] = models.Number(v)
			}
			return models.CharacterizationResult{
				OptimizationID:  result.RunID.String(),
				Gate:            req.Gate,
				Names:           result.Names,
				Params:          params,
				Loss:            models.Number(result.Loss),
				Status:          result.Status,
				Converged:       result.Converged,
				Iterations:      result.Iterations,
				FuncEvaluations: result.FuncEvaluations,
				Fidelities:      fidelityPoints(fids),
			}, nil
		})
	h.respondWithRun(c, run, err)
}

// GetRunHandler handles GET /api/v1/xeb/runs/:id
func (h *XEBHandler) GetRunHandler(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondWithError(c, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := h.runs.GetRun(runID)
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, models.ErrRunNotFound) {
			statusCode = http.StatusNotFound
		} else if errors.Is(err, models.ErrRunExpired) {
			statusCode = http.StatusGone
		}
		respondWithError(c, statusCode, err.Error())
		return
	}

	c.JSON(http.StatusOK, models.RunResponse{Run: run})
}

func (h *XEBHandler) sample(ctx context.Context, circuits []quantum.Circuit, req *models.BenchmarkRequest) (xeb.SampledTable, error) {
	return xeb.SampleTwoQubitXEBCircuits(ctx, h.sampler, circuits, req.CycleDepths,
		xeb.WithRepetitions(req.Repetitions),
		xeb.WithBatchSize(req.BatchSize),
		xeb.WithSamplerWorkers(h.settings.SamplerWorkers),
		xeb.WithProgress(xeb.NewLogProgress(zap.L(), "sampling")),
	)
}

func (h *XEBHandler) respondWithRun(c *gin.Context, run *models.Run, err error) {
	if err != nil {
		statusCode := http.StatusInternalServerError
		if errors.Is(err, models.ErrTooManyRuns) || errors.Is(err, xeb.ErrRunManagerClosed) {
			statusCode = http.StatusServiceUnavailable
		}
		respondWithError(c, statusCode, err.Error())
		return
	}
	c.JSON(http.StatusAccepted, models.RunResponse{Run: run})
}

// buildLibrary returns the request's circuits, generating a random library
// around entangler when asked to
func buildLibrary(req *models.BenchmarkRequest, entangler quantum.Gate) ([]quantum.Circuit, error) {
	if r := req.Random; r != nil {
		return xeb.GenerateRandomTwoQubitCircuits(r.Count, r.MaxDepth,
			quantum.Qubit(r.Qubits[0]), quantum.Qubit(r.Qubits[1]), entangler, r.Seed)
	}
	return models.ToCircuits(req.Circuits)
}

// characterizationOptions maps the request onto options for the gate family
// and the entangling gate a random library of that family uses
func characterizationOptions(req *models.CharacterizeRequest) (xeb.CharacterizationOptions, quantum.Gate) {
	// Both families start theta at the sqrt(iSWAP) point
	o := xeb.NewSqrtISwapXEBOptions().PhasedFSimOptions

	if a := req.Angles; a != nil {
		o.CharacterizeTheta = a.CharacterizeTheta
		o.CharacterizeZeta = a.CharacterizeZeta
		o.CharacterizeChi = a.CharacterizeChi
		o.CharacterizeGamma = a.CharacterizeGamma
		o.CharacterizePhi = a.CharacterizePhi
		for _, d := range []struct {
			src *float64
			dst *float64
		}{
			{a.ThetaDefault, &o.ThetaDefault},
			{a.ZetaDefault, &o.ZetaDefault},
			{a.ChiDefault, &o.ChiDefault},
			{a.GammaDefault, &o.GammaDefault},
			{a.PhiDefault, &o.PhiDefault},
		} {
			if d.src != nil {
				*d.dst = *d.src
			}
		}
	}

	if req.Gate == "sqrt_iswap" {
		return xeb.SqrtISwapXEBOptions{PhasedFSimOptions: o}, quantum.SqrtISwap
	}
	return xeb.PhasedFSimXEBOptions{PhasedFSimOptions: o}, quantum.PhasedFSimGate{
		Theta: quantum.Value(-math.Pi / 4),
		Zeta:  quantum.Value(0),
		Chi:   quantum.Value(0),
		Gamma: quantum.Value(0),
		Phi:   quantum.Value(0),
	}
}

func fidelityPoints(fids []xeb.DepthFidelity) []models.FidelityPoint {
	points := make([]models.FidelityPoint, len(fids))
	for i, f := range fids {
		points[i] = models.FidelityPoint{CycleDepth: f.CycleDepth, Fidelity: models.Number(f.Fidelity)}
	}
	return points
}
