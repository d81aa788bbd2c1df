// Package store persists finished enrichment results as catalog records.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/bom-enrich/internal/model"
)

// RecordFromResult projects a finished result onto a catalog row. Category
// and description prefer supplier data, falling back to what normalization
// and enhancement inferred.
func RecordFromResult(result *model.PipelineResult) model.ComponentRecord {
	rec := model.ComponentRecord{
		MPN:          result.MPN,
		Manufacturer: result.Manufacturer,
		Source:       result.EnrichmentSource,
	}
	if result.Normalized != nil {
		rec.MPN = result.Normalized.MPN
		rec.Category = result.Normalized.Category
	}
	if result.Supplier != nil && result.Supplier.MergedData != nil {
		rec.Description = result.Supplier.MergedData.Description
		if result.Supplier.MergedData.Category != "" {
			rec.Category = result.Supplier.MergedData.Category
		}
	}
	if result.Enhancement != nil {
		if rec.Category == "" {
			rec.Category = result.Enhancement.SuggestedCategory
		}
		if rec.Description == "" {
			if desc, ok := result.Enhancement.Data["description"].(string); ok {
				rec.Description = desc
			}
		}
	}
	if result.QualityScore != nil {
		rec.QualityScore = *result.QualityScore
	}
	return rec
}

// ErrNotFound is returned when a component does not exist.
var ErrNotFound = eris.New("component not found")

// Catalog is the durable sink for enrichment results. Records are keyed by
// component ID and retrievable by mpn+manufacturer; saving the same part
// twice upserts the existing record.
type Catalog interface {
	// SaveResult persists the terminal result and returns the component ID
	// it was stored under.
	SaveResult(ctx context.Context, result *model.PipelineResult) (string, error)

	// GetComponent fetches one record by component ID.
	GetComponent(ctx context.Context, id string) (*model.ComponentRecord, error)

	// GetByPart fetches one record by its mpn+manufacturer key.
	GetByPart(ctx context.Context, mpn, manufacturer string) (*model.ComponentRecord, error)

	// ListComponents pages through the catalog, newest first.
	ListComponents(ctx context.Context, limit, offset int) ([]model.ComponentRecord, error)

	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error

	Close() error
}
