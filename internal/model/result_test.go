package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func step(name StepName, status StepStatus) PipelineStepResult {
	return PipelineStepResult{Step: name, Status: status}
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	t.Run("all steps succeeded", func(t *testing.T) {
		t.Parallel()
		steps := []PipelineStepResult{
			step(StepNormalization, StepSuccess),
			step(StepSupplierAPI, StepSuccess),
			step(StepAIEnhancement, StepSuccess),
			step(StepQualityCheck, StepSuccess),
			step(StepCatalogStorage, StepSuccess),
		}
		assert.Equal(t, ResultSuccess, DeriveStatus(steps))
	})

	t.Run("optional enhancer skipped is still success", func(t *testing.T) {
		t.Parallel()
		steps := []PipelineStepResult{
			step(StepNormalization, StepSuccess),
			step(StepSupplierAPI, StepSuccess),
			step(StepAIEnhancement, StepSkipped),
			step(StepQualityCheck, StepSuccess),
			step(StepCatalogStorage, StepSuccess),
		}
		assert.Equal(t, ResultSuccess, DeriveStatus(steps))
	})

	t.Run("normalization failure fails the job", func(t *testing.T) {
		t.Parallel()
		steps := []PipelineStepResult{
			step(StepNormalization, StepFailed),
			step(StepSupplierAPI, StepSkipped),
			step(StepAIEnhancement, StepSkipped),
			step(StepQualityCheck, StepSkipped),
			step(StepCatalogStorage, StepSkipped),
		}
		assert.Equal(t, ResultFailed, DeriveStatus(steps))
	})

	t.Run("supplier failure without storage fails despite normalization success", func(t *testing.T) {
		t.Parallel()
		steps := []PipelineStepResult{
			step(StepNormalization, StepSuccess),
			step(StepSupplierAPI, StepFailed),
			step(StepAIEnhancement, StepSkipped),
			step(StepQualityCheck, StepSkipped),
			step(StepCatalogStorage, StepSkipped),
		}
		assert.Equal(t, ResultFailed, DeriveStatus(steps))
	})

	t.Run("supplier failure with cached data saved is partial", func(t *testing.T) {
		t.Parallel()
		steps := []PipelineStepResult{
			step(StepNormalization, StepSuccess),
			step(StepSupplierAPI, StepFailed),
			step(StepAIEnhancement, StepSuccess),
			step(StepQualityCheck, StepSuccess),
			step(StepCatalogStorage, StepSuccess),
		}
		assert.Equal(t, ResultPartial, DeriveStatus(steps))
	})

	t.Run("enhancement failure downgrades to partial", func(t *testing.T) {
		t.Parallel()
		steps := []PipelineStepResult{
			step(StepNormalization, StepSuccess),
			step(StepSupplierAPI, StepSuccess),
			step(StepAIEnhancement, StepFailed),
			step(StepQualityCheck, StepSuccess),
			step(StepCatalogStorage, StepSuccess),
		}
		assert.Equal(t, ResultPartial, DeriveStatus(steps))
	})

	t.Run("storage failure is terminal", func(t *testing.T) {
		t.Parallel()
		steps := []PipelineStepResult{
			step(StepNormalization, StepSuccess),
			step(StepSupplierAPI, StepSuccess),
			step(StepAIEnhancement, StepSuccess),
			step(StepQualityCheck, StepSuccess),
			step(StepCatalogStorage, StepFailed),
		}
		assert.Equal(t, ResultFailed, DeriveStatus(steps))
	})
}

func TestStepResultLookup(t *testing.T) {
	t.Parallel()

	r := &PipelineResult{Steps: []PipelineStepResult{
		step(StepNormalization, StepSuccess),
		step(StepSupplierAPI, StepFailed),
	}}

	assert.Equal(t, StepSuccess, r.StepStatus(StepNormalization))
	assert.Equal(t, StepFailed, r.StepStatus(StepSupplierAPI))
	assert.Equal(t, StepPending, r.StepStatus(StepCatalogStorage))
	assert.Nil(t, r.StepResult(StepQualityCheck))
}
