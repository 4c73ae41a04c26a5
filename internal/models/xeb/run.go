package xeb

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the current state of a background XEB run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IsTerminal reports whether the run has finished, successfully or not
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// RunKind is the experiment a run executes
type RunKind string

const (
	RunBenchmark    RunKind = "benchmark"
	RunCharacterize RunKind = "characterize"
)

// SamplerType represents the backend circuits are sampled on
type SamplerType string

const (
	SamplerSimulator SamplerType = "simulator"
	SamplerQiskit    SamplerType = "qiskit"
)

// Run represents one benchmark or characterization submitted through the API
type Run struct {
	RunID       uuid.UUID   `json:"run_id"`
	Kind        RunKind     `json:"kind"`
	Status      RunStatus   `json:"status"`
	Sampler     string      `json:"sampler"`
	NumCircuits int         `json:"num_circuits"`
	CycleDepths []int       `json:"cycle_depths"`
	Result      interface{} `json:"result,omitempty"`
	Message     string      `json:"message,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// RunResponse represents the response when submitting or querying a run
type RunResponse struct {
	Run   *Run   `json:"run"`
	Error string `json:"error,omitempty"`
}
