package model

import "time"

// ResultStatus is the terminal outcome of a job.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultPartial ResultStatus = "partial"
	ResultFailed  ResultStatus = "failed"
)

// PipelineResult is the terminal artifact of one enrichment job. The
// orchestrator creates it when the job starts, appends to Steps as each
// step settles, and finalizes it exactly once; thereafter it is immutable
// and owned by the storage layer.
type PipelineResult struct {
	ComponentID      string               `json:"component_id,omitempty"`
	BOMID            string               `json:"bom_id"`
	ItemID           string               `json:"item_id"`
	MPN              string               `json:"mpn"`
	Manufacturer     string               `json:"manufacturer,omitempty"`
	Status           ResultStatus         `json:"status"`
	Steps            []PipelineStepResult `json:"steps"`
	QualityScore     *int                 `json:"quality_score,omitempty"`
	EnrichmentSource string               `json:"enrichment_source,omitempty"`
	TotalDurationMs  int64                `json:"total_duration_ms,omitempty"`
	StartedAt        time.Time            `json:"started_at"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`

	// Step payloads carried for scoring and persistence.
	Normalized  *NormalizedComponent `json:"normalized,omitempty"`
	Supplier    *AggregatedData      `json:"supplier,omitempty"`
	Enhancement *EnhancementResult   `json:"enhancement,omitempty"`
}

// StepResult returns the logged result for a step, or nil if the step has
// not settled yet.
func (r *PipelineResult) StepResult(step StepName) *PipelineStepResult {
	for i := range r.Steps {
		if r.Steps[i].Step == step {
			return &r.Steps[i]
		}
	}
	return nil
}

// StepStatus returns the logged status for a step, or StepPending.
func (r *PipelineResult) StepStatus(step StepName) StepStatus {
	if sr := r.StepResult(step); sr != nil {
		return sr.Status
	}
	return StepPending
}

// RequiredSteps must succeed (or, for supplier_api, leave usable cached
// data behind) for the job to have observable value.
var RequiredSteps = map[StepName]bool{
	StepNormalization:  true,
	StepSupplierAPI:    true,
	StepCatalogStorage: true,
}

// DeriveStatus computes the terminal status from the step log.
//
// failed:  the result was never durably saved: either catalog_storage
//          failed outright, or a required step failed and storage never
//          ran. An unsaved result is indistinguishable from total failure
//          to any caller.
// success: every executed step succeeded (a step may be skipped without
//          penalty only when there was nothing for it to do, e.g. an
//          unconfigured optional enhancer).
// partial: saved, but at least one step failed along the way.
func DeriveStatus(steps []PipelineStepResult) ResultStatus {
	var succeeded, failed int
	storageSaved := false
	requiredFailed := false
	for _, s := range steps {
		switch s.Status {
		case StepSuccess:
			succeeded++
			if s.Step == StepCatalogStorage {
				storageSaved = true
			}
		case StepFailed:
			failed++
			if RequiredSteps[s.Step] {
				requiredFailed = true
			}
		}
	}
	if succeeded == 0 {
		return ResultFailed
	}
	if !storageSaved && requiredFailed {
		return ResultFailed
	}
	if failed == 0 {
		return ResultSuccess
	}
	return ResultPartial
}

// EventType classifies a progress event on the wire.
type EventType string

const (
	EventStepStart    EventType = "step_start"
	EventStepComplete EventType = "step_complete"
	EventStepError    EventType = "step_error"
	EventComplete     EventType = "complete"
	EventError        EventType = "error"
)

// Progress is the aggregate position of a BOM's enrichment.
type Progress struct {
	Current int     `json:"current"`
	Total   int     `json:"total"`
	Percent float64 `json:"percent"`
}

// ProgressEvent is the ephemeral wire record streamed to subscribers. It is
// never persisted; a reconnecting client fetches a Progress snapshot first
// and resumes streaming without replay.
type ProgressEvent struct {
	Type      EventType  `json:"type"`
	ItemID    string     `json:"item_id"`
	BOMID     string     `json:"bom_id"`
	MPN       string     `json:"mpn"`
	Step      StepName   `json:"step,omitempty"`
	Status    StepStatus `json:"status,omitempty"`
	Progress  *Progress  `json:"progress,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
