package supplier

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bom-enrich/internal/model"
)

// Aggregator fans out one part lookup across all configured suppliers and
// merges the outcomes.
type Aggregator interface {
	Aggregate(ctx context.Context, mpn, manufacturer string) model.AggregatedData
}

// FanoutAggregator calls every registered supplier concurrently, waits for
// all of them to settle, and merges deterministically. A hanging supplier
// is bounded by the per-call timeout, so the whole aggregation is bounded
// by the slowest configured timeout, not by the slowest backend.
type FanoutAggregator struct {
	registry *Registry
	timeout  time.Duration // per-supplier cap; zero means no extra bound
}

// NewFanoutAggregator creates an aggregator over the registry. timeout
// bounds each individual supplier call.
func NewFanoutAggregator(registry *Registry, timeout time.Duration) *FanoutAggregator {
	return &FanoutAggregator{registry: registry, timeout: timeout}
}

// Aggregate is a join-all fan-out: every supplier gets called, every
// outcome is preserved, and the merge runs after the last one settles.
func (a *FanoutAggregator) Aggregate(ctx context.Context, mpn, manufacturer string) model.AggregatedData {
	fetchers := a.registry.Fetchers()
	responses := make([]model.SupplierResponse, len(fetchers))

	g := new(errgroup.Group)
	for i, f := range fetchers {
		g.Go(func() error {
			callCtx := ctx
			if a.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, a.timeout)
				defer cancel()
			}
			responses[i] = f.Fetch(callCtx, mpn, manufacturer)
			return nil
		})
	}
	_ = g.Wait()

	agg := Merge(mpn, manufacturer, responses, a.registry.PriorityRank)
	zap.L().Debug("supplier aggregation settled",
		zap.String("mpn", mpn),
		zap.Int("suppliers", len(responses)),
		zap.Int("successes", agg.SuccessCount()),
		zap.String("best_source", agg.BestSource),
	)
	return agg
}

// Merge combines settled supplier responses into one record. It is
// deterministic and order-independent: the result depends only on the
// response set and the priority ranking, never on arrival order.
//
// bestSource is the success response with the highest field completeness,
// ties broken by priority rank. mergedData is built by walking usable
// responses in priority order and filling each field from the first source
// that has it. Zero usable responses leave mergedData nil.
func Merge(mpn, manufacturer string, responses []model.SupplierResponse, rank func(string) int) model.AggregatedData {
	ordered := make([]model.SupplierResponse, len(responses))
	copy(ordered, responses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i].Supplier) < rank(ordered[j].Supplier)
	})

	agg := model.AggregatedData{
		MPN:          mpn,
		Manufacturer: manufacturer,
		Responses:    ordered,
	}

	best := -1
	bestCompleteness := -1
	for i, r := range ordered {
		if r.Status != model.SupplierSuccess || r.Data == nil {
			continue
		}
		if c := r.Data.Completeness(); c > bestCompleteness {
			best = i
			bestCompleteness = c
		}
	}
	if best >= 0 {
		agg.BestSource = ordered[best].Supplier
	}

	var merged *model.PartData
	for _, r := range ordered {
		if !r.Usable() {
			continue
		}
		if merged == nil {
			merged = &model.PartData{}
		}
		fillMissing(merged, r.Data)
	}
	agg.MergedData = merged
	return agg
}

// fillMissing copies each field of src into dst only where dst has no
// value yet (first-writer-wins across the priority walk).
func fillMissing(dst, src *model.PartData) {
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
	if dst.DatasheetURL == "" {
		dst.DatasheetURL = src.DatasheetURL
	}
	if dst.Lifecycle == "" {
		dst.Lifecycle = src.Lifecycle
	}
	if dst.Packaging == "" {
		dst.Packaging = src.Packaging
	}
	if dst.RoHS == "" {
		dst.RoHS = src.RoHS
	}
	if dst.UnitPriceUSD == 0 {
		dst.UnitPriceUSD = src.UnitPriceUSD
	}
	if dst.Stock == 0 {
		dst.Stock = src.Stock
	}
	if dst.LeadTimeDays == 0 {
		dst.LeadTimeDays = src.LeadTimeDays
	}
	for k, v := range src.Parameters {
		if dst.Parameters == nil {
			dst.Parameters = make(map[string]string)
		}
		if _, ok := dst.Parameters[k]; !ok {
			dst.Parameters[k] = v
		}
	}
}
