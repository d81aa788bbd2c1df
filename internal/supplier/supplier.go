// Package supplier fans out part lookups across supplier backends and
// merges the results into one best-effort record.
package supplier

import (
	"context"

	"github.com/sells-group/bom-enrich/internal/model"
)

// Fetcher is one supplier adapter. Fetch never returns an error: every
// outcome, including failures, settles into a SupplierResponse so the
// aggregator can preserve it for observability.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, mpn, manufacturer string) model.SupplierResponse
}

// Registry holds the configured fetchers in priority order. Priority
// decides merge tie-breaks and field precedence, not call order; all
// fetchers are called concurrently.
type Registry struct {
	fetchers []Fetcher
	rank     map[string]int
}

// NewRegistry builds a registry from fetchers listed highest priority
// first.
func NewRegistry(fetchers ...Fetcher) *Registry {
	rank := make(map[string]int, len(fetchers))
	for i, f := range fetchers {
		rank[f.Name()] = i
	}
	return &Registry{fetchers: fetchers, rank: rank}
}

// Fetchers returns the registered fetchers in priority order.
func (r *Registry) Fetchers() []Fetcher {
	return r.fetchers
}

// PriorityRank returns the rank of a supplier (0 = highest). Unknown
// suppliers rank last.
func (r *Registry) PriorityRank(name string) int {
	if rank, ok := r.rank[name]; ok {
		return rank
	}
	return len(r.fetchers)
}

// Names returns the registered supplier names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.fetchers))
	for i, f := range r.fetchers {
		names[i] = f.Name()
	}
	return names
}
