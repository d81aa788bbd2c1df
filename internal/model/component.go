package model

import "time"

// NormalizedComponent is the output of the normalization step: a canonical
// (manufacturer, MPN, category) triple plus a confidence score.
type NormalizedComponent struct {
	MPN              string   `json:"mpn"`
	Manufacturer     string   `json:"manufacturer,omitempty"`
	Category         string   `json:"category,omitempty"`
	Description      string   `json:"description,omitempty"`
	ConfidenceScore  float64  `json:"confidence_score"`
	NormalizedFields []string `json:"normalized_fields,omitempty"`
}

// EnhancementResult is the output contract of the AI enhancement step.
type EnhancementResult struct {
	EnhancedFields     []string           `json:"enhanced_fields"`
	ConfidenceScores   map[string]float64 `json:"confidence_scores,omitempty"`
	SuggestedCategory  string             `json:"suggested_category,omitempty"`
	DescriptionQuality float64            `json:"description_quality,omitempty"`
	Data               map[string]any     `json:"data,omitempty"`
}

// AverageConfidence returns the mean of the per-field confidence scores,
// or DescriptionQuality when no per-field scores were produced.
func (e *EnhancementResult) AverageConfidence() float64 {
	if e == nil {
		return 0
	}
	if len(e.ConfidenceScores) == 0 {
		return e.DescriptionQuality
	}
	var sum float64
	for _, v := range e.ConfidenceScores {
		sum += v
	}
	return sum / float64(len(e.ConfidenceScores))
}

// ComponentRecord is a catalog row: the durable, keyed form of a finished
// enrichment, retrievable by mpn+manufacturer.
type ComponentRecord struct {
	ID           string    `json:"id"`
	MPN          string    `json:"mpn"`
	Manufacturer string    `json:"manufacturer"`
	Category     string    `json:"category,omitempty"`
	Description  string    `json:"description,omitempty"`
	QualityScore int       `json:"quality_score"`
	Source       string    `json:"source,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
