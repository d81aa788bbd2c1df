package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/bom-enrich/internal/broadcast"
	"github.com/sells-group/bom-enrich/internal/model"
)

// Pool runs many jobs concurrently through one orchestrator, bounded by a
// worker limit.
type Pool struct {
	orchestrator *Orchestrator
	tracker      *broadcast.Tracker
	maxWorkers   int
}

// NewPool creates a pool. maxWorkers <= 0 means a default of 4.
func NewPool(orchestrator *Orchestrator, tracker *broadcast.Tracker, maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Pool{orchestrator: orchestrator, tracker: tracker, maxWorkers: maxWorkers}
}

// RunBOM enriches every job of one BOM and returns the results in job
// order. Jobs run to their own terminal state regardless of each other's
// outcomes; the slice never contains nil entries.
func (p *Pool) RunBOM(ctx context.Context, bomID string, jobs []model.EnrichmentJob) []*model.PipelineResult {
	if p.tracker != nil {
		p.tracker.StartBOM(bomID, len(jobs))
	}
	zap.L().Info("bom enrichment starting",
		zap.String("bom_id", bomID),
		zap.Int("items", len(jobs)),
		zap.Int("workers", p.maxWorkers),
	)

	results := make([]*model.PipelineResult, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(p.maxWorkers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = p.orchestrator.Run(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	var success, partial, failed int
	for _, r := range results {
		switch r.Status {
		case model.ResultSuccess:
			success++
		case model.ResultPartial:
			partial++
		default:
			failed++
		}
	}
	zap.L().Info("bom enrichment finished",
		zap.String("bom_id", bomID),
		zap.Int("success", success),
		zap.Int("partial", partial),
		zap.Int("failed", failed),
	)
	return results
}
