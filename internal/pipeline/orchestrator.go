// Package pipeline runs the enrichment step sequence for BOM line items.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/bom-enrich/internal/broadcast"
	"github.com/sells-group/bom-enrich/internal/enhance"
	"github.com/sells-group/bom-enrich/internal/model"
	"github.com/sells-group/bom-enrich/internal/normalize"
	"github.com/sells-group/bom-enrich/internal/scorer"
	"github.com/sells-group/bom-enrich/internal/store"
	"github.com/sells-group/bom-enrich/internal/supplier"
)

// Publisher is the sink for progress events. broadcast.Hub satisfies it.
type Publisher interface {
	Publish(bomID string, event model.ProgressEvent)
}

// StepTimeouts bounds each step independently. Zero means no bound beyond
// the caller's context.
type StepTimeouts struct {
	Normalization  time.Duration
	SupplierAPI    time.Duration
	AIEnhancement  time.Duration
	CatalogStorage time.Duration
}

// DefaultStepTimeouts returns the standard per-step deadlines.
func DefaultStepTimeouts() StepTimeouts {
	return StepTimeouts{
		Normalization:  5 * time.Second,
		SupplierAPI:    45 * time.Second,
		AIEnhancement:  60 * time.Second,
		CatalogStorage: 10 * time.Second,
	}
}

// Orchestrator executes the fixed step sequence for one job at a time and
// owns the job's append-only step log. Many jobs run concurrently through
// the Pool; within one job, steps are strictly sequential.
type Orchestrator struct {
	normalizer normalize.Normalizer
	aggregator supplier.Aggregator
	enhancer   enhance.Enhancer // nil disables the ai_enhancement step
	scorer     *scorer.Scorer
	catalog    store.Catalog
	publisher  Publisher
	tracker    *broadcast.Tracker
	timeouts   StepTimeouts
}

// New creates an orchestrator with all step dependencies.
func New(
	normalizer normalize.Normalizer,
	aggregator supplier.Aggregator,
	enhancer enhance.Enhancer,
	sc *scorer.Scorer,
	catalog store.Catalog,
	publisher Publisher,
	tracker *broadcast.Tracker,
	timeouts StepTimeouts,
) *Orchestrator {
	return &Orchestrator{
		normalizer: normalizer,
		aggregator: aggregator,
		enhancer:   enhancer,
		scorer:     sc,
		catalog:    catalog,
		publisher:  publisher,
		tracker:    tracker,
		timeouts:   timeouts,
	}
}

// Run enriches one job to a terminal state. It never returns an error:
// every failure is recorded in the step log and reflected in the result
// status, so callers always get a well-formed result to inspect. There is
// no external cancellation once started; the passed context bounds
// individual calls but a disconnecting watcher does not stop the job.
func (o *Orchestrator) Run(ctx context.Context, job model.EnrichmentJob) *model.PipelineResult {
	log := zap.L().With(
		zap.String("bom_id", job.BOMID),
		zap.String("item_id", job.ItemID),
		zap.String("mpn", job.MPN),
	)
	log.Info("enrichment starting")

	start := time.Now()
	result := &model.PipelineResult{
		BOMID:        job.BOMID,
		ItemID:       job.ItemID,
		MPN:          job.MPN,
		Manufacturer: job.Manufacturer,
		StartedAt:    start,
	}

	emit := func(event model.ProgressEvent) {
		if o.publisher == nil {
			return
		}
		event.ItemID = job.ItemID
		event.BOMID = job.BOMID
		event.MPN = job.MPN
		event.Timestamp = time.Now()
		o.publisher.Publish(job.BOMID, event)
	}

	// Step tracking helper: emits step_start, runs the step under its
	// deadline, appends exactly one log entry, and emits the outcome.
	trackStep := func(step model.StepName, timeout time.Duration, fn func(ctx context.Context) (map[string]any, error)) *model.PipelineStepResult {
		emit(model.ProgressEvent{Type: model.EventStepStart, Step: step, Status: model.StepRunning})

		stepCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		stepStart := time.Now()
		data, err := fn(stepCtx)
		if err == nil && stepCtx.Err() != nil {
			err = eris.Wrap(stepCtx.Err(), "step deadline exceeded")
		}

		sr := model.PipelineStepResult{
			Step:       step,
			DurationMs: time.Since(stepStart).Milliseconds(),
			Data:       data,
			Timestamp:  time.Now(),
		}
		if err != nil {
			sr.Status = model.StepFailed
			sr.Error = err.Error()
			log.Warn("step failed",
				zap.String("step", string(step)),
				zap.Int64("duration_ms", sr.DurationMs),
				zap.Error(err),
			)
		} else {
			sr.Status = model.StepSuccess
			log.Info("step complete",
				zap.String("step", string(step)),
				zap.Int64("duration_ms", sr.DurationMs),
			)
		}
		result.Steps = append(result.Steps, sr)

		if err != nil {
			emit(model.ProgressEvent{Type: model.EventStepError, Step: step, Status: model.StepFailed, Error: sr.Error})
		} else {
			emit(model.ProgressEvent{Type: model.EventStepComplete, Step: step, Status: model.StepSuccess})
		}
		return &result.Steps[len(result.Steps)-1]
	}

	skipStep := func(step model.StepName, reason string) {
		result.Steps = append(result.Steps, model.PipelineStepResult{
			Step:      step,
			Status:    model.StepSkipped,
			Data:      map[string]any{"reason": reason},
			Timestamp: time.Now(),
		})
		emit(model.ProgressEvent{Type: model.EventStepComplete, Step: step, Status: model.StepSkipped})
	}

	// ===== normalization =====
	norm := trackStep(model.StepNormalization, o.timeouts.Normalization, func(ctx context.Context) (map[string]any, error) {
		n, err := o.normalizer.Normalize(ctx, job.MPN, job.Manufacturer)
		if err != nil {
			return nil, err
		}
		result.Normalized = n
		result.Manufacturer = n.Manufacturer
		return map[string]any{
			"mpn":        n.MPN,
			"confidence": n.ConfidenceScore,
			"category":   n.Category,
		}, nil
	})

	if norm.Status != model.StepSuccess {
		// Nothing to look up: everything downstream is skipped and the
		// result is never saved.
		skipStep(model.StepSupplierAPI, "normalization failed")
		skipStep(model.StepAIEnhancement, "normalization failed")
		skipStep(model.StepQualityCheck, "normalization failed")
		skipStep(model.StepCatalogStorage, "normalization failed")
		return o.finalize(result, start, emit, log)
	}

	// ===== supplier_api =====
	supplierStep := trackStep(model.StepSupplierAPI, o.timeouts.SupplierAPI, func(ctx context.Context) (map[string]any, error) {
		agg := o.aggregator.Aggregate(ctx, result.Normalized.MPN, result.Normalized.Manufacturer)
		result.Supplier = &agg
		data := map[string]any{
			"suppliers": len(agg.Responses),
			"successes": agg.SuccessCount(),
		}
		if agg.BestSource != "" {
			data["best_source"] = agg.BestSource
		}
		if agg.SuccessCount() == 0 {
			if agg.MergedData != nil {
				return data, eris.New("no supplier succeeded; continuing on cached data")
			}
			return data, eris.New("no supplier returned data")
		}
		return data, nil
	})

	// A failed supplier step without usable data leaves nothing worth
	// enhancing, scoring, or saving.
	hasUsableData := result.Supplier != nil && result.Supplier.MergedData != nil
	if supplierStep.Status != model.StepSuccess && !hasUsableData {
		skipStep(model.StepAIEnhancement, "no supplier data")
		skipStep(model.StepQualityCheck, "no supplier data")
		skipStep(model.StepCatalogStorage, "no supplier data")
		return o.finalize(result, start, emit, log)
	}

	// ===== ai_enhancement (optional) =====
	if o.enhancer == nil {
		skipStep(model.StepAIEnhancement, "enhancer not configured")
	} else {
		trackStep(model.StepAIEnhancement, o.timeouts.AIEnhancement, func(ctx context.Context) (map[string]any, error) {
			e, err := o.enhancer.Enhance(ctx, result.Normalized, result.Supplier)
			if err != nil {
				return nil, err
			}
			result.Enhancement = e
			return map[string]any{
				"enhanced_fields":     len(e.EnhancedFields),
				"description_quality": e.DescriptionQuality,
			}, nil
		})
	}

	// ===== quality_check (pure, cannot fail) =====
	trackStep(model.StepQualityCheck, 0, func(context.Context) (map[string]any, error) {
		score := o.scorer.Score(result)
		result.QualityScore = &score
		return map[string]any{"quality_score": score}, nil
	})

	// ===== catalog_storage =====
	trackStep(model.StepCatalogStorage, o.timeouts.CatalogStorage, func(ctx context.Context) (map[string]any, error) {
		if result.Supplier != nil {
			result.EnrichmentSource = result.Supplier.BestSource
		}
		componentID, err := o.catalog.SaveResult(ctx, result)
		if err != nil {
			return nil, eris.Wrap(err, "save catalog record")
		}
		result.ComponentID = componentID
		return map[string]any{"component_id": componentID}, nil
	})

	return o.finalize(result, start, emit, log)
}

// finalize derives the terminal status, stamps durations, and emits the
// final event with the BOM's aggregate progress.
func (o *Orchestrator) finalize(result *model.PipelineResult, start time.Time, emit func(model.ProgressEvent), log *zap.Logger) *model.PipelineResult {
	completed := time.Now()
	result.CompletedAt = &completed
	result.TotalDurationMs = completed.Sub(start).Milliseconds()
	result.Status = model.DeriveStatus(result.Steps)

	var progress *model.Progress
	if o.tracker != nil {
		p := o.tracker.ItemFinished(result.BOMID)
		progress = &p
	}

	event := model.ProgressEvent{Type: model.EventComplete, Progress: progress}
	if result.Status == model.ResultFailed {
		event.Type = model.EventError
		if last := lastError(result.Steps); last != "" {
			event.Error = last
		}
	}
	emit(event)

	log.Info("enrichment finished",
		zap.String("status", string(result.Status)),
		zap.Int64("duration_ms", result.TotalDurationMs),
		zap.String("component_id", result.ComponentID),
	)
	return result
}

func lastError(steps []model.PipelineStepResult) string {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Error != "" {
			return steps[i].Error
		}
	}
	return ""
}
