// Package scorer derives a 0-100 composite quality score from a finished
// enrichment result.
package scorer

import (
	"math"
	"time"

	"github.com/sells-group/bom-enrich/internal/model"
)

// Weights control the contribution of each pipeline stage to the score.
// Failed or skipped stages contribute zero to their term while staying in
// the denominator, so skipping optional work can never inflate the score.
type Weights struct {
	Normalization float64
	Supplier      float64
	Enhancement   float64
}

// DefaultWeights reflect how much each stage tells us about data quality:
// supplier data carries the most signal, normalization confidence next,
// AI inference the least.
func DefaultWeights() Weights {
	return Weights{
		Normalization: 0.35,
		Supplier:      0.40,
		Enhancement:   0.25,
	}
}

// DecayConfig controls freshness decay of the supplier term.
type DecayConfig struct {
	HalfLifeDays int     // age at which supplier data counts half; default 365
	Floor        float64 // minimum decayed factor; default 0.3
}

// DefaultDecay returns the standard freshness decay.
func DefaultDecay() DecayConfig {
	return DecayConfig{HalfLifeDays: 365, Floor: 0.3}
}

// Scorer computes quality scores. The zero value is not usable; construct
// with New.
type Scorer struct {
	weights Weights
	decay   DecayConfig
	nowFunc func() time.Time
}

// New creates a scorer with the given weights and decay settings.
func New(weights Weights, decay DecayConfig) *Scorer {
	return &Scorer{weights: weights, decay: decay, nowFunc: time.Now}
}

// Score is a pure function over the result: deterministic, side-effect
// free, safe to recompute. It reads the step log to decide which terms
// count and the step payloads for the term values.
func (s *Scorer) Score(result *model.PipelineResult) int {
	var sum float64
	totalWeight := s.weights.Normalization + s.weights.Supplier + s.weights.Enhancement
	if totalWeight <= 0 {
		return 0
	}

	if result.StepStatus(model.StepNormalization) == model.StepSuccess && result.Normalized != nil {
		sum += s.weights.Normalization * clamp01(result.Normalized.ConfidenceScore)
	}

	if result.StepStatus(model.StepSupplierAPI) == model.StepSuccess && result.Supplier != nil {
		sum += s.weights.Supplier * s.supplierTerm(result.Supplier)
	}

	if result.StepStatus(model.StepAIEnhancement) == model.StepSuccess && result.Enhancement != nil {
		sum += s.weights.Enhancement * clamp01(result.Enhancement.AverageConfidence())
	}

	score := int(math.Round(sum / totalWeight * 100))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// supplierTerm is the fraction of known fields populated in the merged
// record, discounted by the age of the best source's data.
func (s *Scorer) supplierTerm(agg *model.AggregatedData) float64 {
	if agg.MergedData == nil {
		return 0
	}
	completeness := float64(agg.MergedData.Completeness()) / float64(model.KnownFieldCount)
	return completeness * s.freshness(agg)
}

// freshness decays by the age of the oldest usable response that
// contributed data: factor = max(floor, 2^(-ageDays / halfLifeDays)).
func (s *Scorer) freshness(agg *model.AggregatedData) float64 {
	var oldest *time.Time
	for i := range agg.Responses {
		r := agg.Responses[i]
		if !r.Usable() || r.DataAsOf == nil {
			continue
		}
		if oldest == nil || r.DataAsOf.Before(*oldest) {
			oldest = r.DataAsOf
		}
	}
	if oldest == nil {
		// No timestamps, assume current.
		return 1
	}

	ageDays := s.nowFunc().Sub(*oldest).Hours() / 24
	if ageDays <= 0 {
		return 1
	}
	halfLife := float64(s.decay.HalfLifeDays)
	if halfLife <= 0 {
		halfLife = 365
	}
	factor := math.Pow(2, -ageDays/halfLife)
	if factor < s.decay.Floor {
		return s.decay.Floor
	}
	return factor
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
