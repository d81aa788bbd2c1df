package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bom-enrich/internal/model"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	cat, err := NewSQLite(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	require.NoError(t, cat.Migrate(context.Background()))
	t.Cleanup(func() { _ = cat.Close() })
	return cat
}

func sampleResult(score int) *model.PipelineResult {
	return &model.PipelineResult{
		BOMID:            "bom-1",
		ItemID:           "item-1",
		MPN:              "LM358",
		Manufacturer:     "TI",
		Status:           model.ResultSuccess,
		QualityScore:     &score,
		EnrichmentSource: "digikey",
		Normalized:       &model.NormalizedComponent{MPN: "LM358", Manufacturer: "TI", Category: "op-amp", ConfidenceScore: 0.95},
		Supplier: &model.AggregatedData{
			MPN:        "LM358",
			BestSource: "digikey",
			MergedData: &model.PartData{Description: "Dual op-amp", Category: "op-amp"},
		},
	}
}

func TestSQLiteCatalog_SaveAndGet(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	id, err := cat.SaveResult(ctx, sampleResult(89))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := cat.GetComponent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "LM358", rec.MPN)
	assert.Equal(t, "TI", rec.Manufacturer)
	assert.Equal(t, "op-amp", rec.Category)
	assert.Equal(t, "Dual op-amp", rec.Description)
	assert.Equal(t, 89, rec.QualityScore)
	assert.Equal(t, "digikey", rec.Source)

	byPart, err := cat.GetByPart(ctx, "LM358", "TI")
	require.NoError(t, err)
	assert.Equal(t, id, byPart.ID)
}

func TestSQLiteCatalog_UpsertKeepsID(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	first, err := cat.SaveResult(ctx, sampleResult(70))
	require.NoError(t, err)

	second, err := cat.SaveResult(ctx, sampleResult(91))
	require.NoError(t, err)
	assert.Equal(t, first, second, "re-saving the same part must keep its component id")

	rec, err := cat.GetByPart(ctx, "LM358", "TI")
	require.NoError(t, err)
	assert.Equal(t, 91, rec.QualityScore, "upsert must refresh the score")

	list, err := cat.ListComponents(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteCatalog_NotFound(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	_, err := cat.GetComponent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cat.GetByPart(ctx, "NOPE1", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCatalog_ListPagination(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	for _, mpn := range []string{"LM358", "LM324", "NE555"} {
		r := sampleResult(50)
		r.MPN = mpn
		r.Normalized.MPN = mpn
		_, err := cat.SaveResult(ctx, r)
		require.NoError(t, err)
	}

	page, err := cat.ListComponents(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := cat.ListComponents(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestRecordFromResult_FallbackChain(t *testing.T) {
	score := 42
	r := &model.PipelineResult{
		MPN:          "XYZ123",
		Manufacturer: "Acme",
		QualityScore: &score,
		Normalized:   &model.NormalizedComponent{MPN: "XYZ123"},
		Enhancement: &model.EnhancementResult{
			SuggestedCategory: "connector",
			Data:              map[string]any{"description": "inferred description"},
		},
	}

	rec := RecordFromResult(r)
	assert.Equal(t, "connector", rec.Category, "enhancement category fills the gap")
	assert.Equal(t, "inferred description", rec.Description)
	assert.Equal(t, 42, rec.QualityScore)
}
