package scorer

import (
	"testing"
	"time"

	"github.com/sells-group/bom-enrich/internal/model"
)

func fullResult() *model.PipelineResult {
	return &model.PipelineResult{
		MPN: "LM358",
		Steps: []model.PipelineStepResult{
			{Step: model.StepNormalization, Status: model.StepSuccess},
			{Step: model.StepSupplierAPI, Status: model.StepSuccess},
			{Step: model.StepAIEnhancement, Status: model.StepSuccess},
		},
		Normalized: &model.NormalizedComponent{MPN: "LM358", ConfidenceScore: 0.95},
		Supplier: &model.AggregatedData{
			MPN: "LM358",
			MergedData: &model.PartData{
				Description:  "Dual op-amp",
				Category:     "op-amp",
				DatasheetURL: "https://example.com/lm358.pdf",
				Lifecycle:    "active",
				Packaging:    "DIP-8",
				RoHS:         "compliant",
				UnitPriceUSD: 0.35,
				Stock:        1200,
			},
		},
		Enhancement: &model.EnhancementResult{DescriptionQuality: 0.8},
	}
}

func TestScore_FullyEnrichedComponent(t *testing.T) {
	s := New(DefaultWeights(), DefaultDecay())
	got := s.Score(fullResult())

	// 0.35*0.95 + 0.40*(8/9) + 0.25*0.8 ≈ 0.888
	if got < 70 || got > 100 {
		t.Errorf("score = %d, want within [70,100]", got)
	}
	if got != 89 {
		t.Errorf("score = %d, want 89", got)
	}
}

func TestScore_Deterministic(t *testing.T) {
	s := New(DefaultWeights(), DefaultDecay())
	r := fullResult()
	first := s.Score(r)
	for i := 0; i < 10; i++ {
		if got := s.Score(r); got != first {
			t.Fatalf("score changed across calls: %d then %d", first, got)
		}
	}
}

func TestScore_SkippedStepsKeepFullDenominator(t *testing.T) {
	s := New(DefaultWeights(), DefaultDecay())
	r := &model.PipelineResult{
		Steps: []model.PipelineStepResult{
			{Step: model.StepNormalization, Status: model.StepSuccess},
			{Step: model.StepSupplierAPI, Status: model.StepFailed},
			{Step: model.StepAIEnhancement, Status: model.StepSkipped},
		},
		Normalized: &model.NormalizedComponent{ConfidenceScore: 0.95},
	}

	// Only the normalization term counts: 0.35*0.95/1.0 ≈ 33, not 95.
	if got := s.Score(r); got != 33 {
		t.Errorf("score = %d, want 33 (skips must not shrink the denominator)", got)
	}
}

func TestScore_NothingSucceeded(t *testing.T) {
	s := New(DefaultWeights(), DefaultDecay())
	r := &model.PipelineResult{
		Steps: []model.PipelineStepResult{
			{Step: model.StepNormalization, Status: model.StepFailed},
		},
	}
	if got := s.Score(r); got != 0 {
		t.Errorf("score = %d, want 0", got)
	}
}

func TestScore_FreshnessDecay(t *testing.T) {
	now := time.Now()
	asOf := now.Add(-365 * 24 * time.Hour)

	s := New(Weights{Supplier: 1}, DecayConfig{HalfLifeDays: 365, Floor: 0.1})
	s.nowFunc = func() time.Time { return now }

	r := &model.PipelineResult{
		Steps: []model.PipelineStepResult{
			{Step: model.StepSupplierAPI, Status: model.StepSuccess},
		},
		Supplier: &model.AggregatedData{
			MergedData: &model.PartData{
				Description: "d", Category: "c", DatasheetURL: "u",
				Lifecycle: "l", Packaging: "p", RoHS: "r",
				UnitPriceUSD: 1, Stock: 1, LeadTimeDays: 1,
			},
			Responses: []model.SupplierResponse{
				{Supplier: "digikey", Status: model.SupplierSuccess, Data: &model.PartData{Description: "d"}, DataAsOf: &asOf},
			},
		},
	}

	// Complete record, one half-life old: 1.0 * 0.5 → 50.
	if got := s.Score(r); got != 50 {
		t.Errorf("score = %d, want 50 after one half-life", got)
	}
}

func TestScore_FreshnessFloor(t *testing.T) {
	now := time.Now()
	ancient := now.Add(-20 * 365 * 24 * time.Hour)

	s := New(Weights{Supplier: 1}, DecayConfig{HalfLifeDays: 365, Floor: 0.3})
	s.nowFunc = func() time.Time { return now }

	r := &model.PipelineResult{
		Steps: []model.PipelineStepResult{
			{Step: model.StepSupplierAPI, Status: model.StepSuccess},
		},
		Supplier: &model.AggregatedData{
			MergedData: &model.PartData{
				Description: "d", Category: "c", DatasheetURL: "u",
				Lifecycle: "l", Packaging: "p", RoHS: "r",
				UnitPriceUSD: 1, Stock: 1, LeadTimeDays: 1,
			},
			Responses: []model.SupplierResponse{
				{Supplier: "digikey", Status: model.SupplierSuccess, Data: &model.PartData{Description: "d"}, DataAsOf: &ancient},
			},
		},
	}

	if got := s.Score(r); got != 30 {
		t.Errorf("score = %d, want floor of 30", got)
	}
}
