package xeb

// APIError is a validation or lookup failure reported to API clients
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

var (
	ErrNoCircuits        = &APIError{"at least one circuit is required"}
	ErrNoCycleDepths     = &APIError{"at least one cycle depth is required"}
	ErrNegativeDepth     = &APIError{"cycle depths must be non-negative"}
	ErrNoBitstrings      = &APIError{"at least one bitstring is required"}
	ErrUnknownEstimator  = &APIError{"estimator must be one of linear, log, hog"}
	ErrUnknownObservable = &APIError{"observable must be one of identity, log"}
	ErrUnknownGateFamily = &APIError{"gate must be one of sqrt_iswap, phased_fsim"}
	ErrInvalidRepetition = &APIError{"repetitions must be between 1 and 1000000"}
	ErrInvalidBatchSize  = &APIError{"batch size must be positive"}
	ErrInvalidRandom     = &APIError{"random circuit library needs a positive count and cycle depth"}
	ErrCircuitSource     = &APIError{"give either circuits or a random circuit library, not both"}
	ErrNoAngles          = &APIError{"at least one angle must be characterized"}
	ErrRunNotFound       = &APIError{"run not found"}
	ErrRunExpired        = &APIError{"run has expired"}
	ErrTooManyRuns       = &APIError{"too many runs in progress"}
)
