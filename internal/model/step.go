package model

import "time"

// StepName identifies one stage of the enrichment pipeline.
type StepName string

const (
	StepNormalization  StepName = "normalization"
	StepSupplierAPI    StepName = "supplier_api"
	StepAIEnhancement  StepName = "ai_enhancement"
	StepQualityCheck   StepName = "quality_check"
	StepCatalogStorage StepName = "catalog_storage"
)

// StepSequence is the fixed execution order. Steps always run (or are
// skipped) in this order, never in parallel within one job.
var StepSequence = []StepName{
	StepNormalization,
	StepSupplierAPI,
	StepAIEnhancement,
	StepQualityCheck,
	StepCatalogStorage,
}

// StepStatus is the lifecycle state of a single step.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// PipelineStepResult is one entry in a job's append-only step log.
// Entries are never mutated after being appended.
type PipelineStepResult struct {
	Step       StepName       `json:"step"`
	Status     StepStatus     `json:"status"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// IsTerminal reports whether the step has settled.
func (s StepStatus) IsTerminal() bool {
	return s == StepSuccess || s == StepFailed || s == StepSkipped
}
