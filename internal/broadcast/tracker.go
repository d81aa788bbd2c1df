package broadcast

import (
	"sync"

	"github.com/sells-group/bom-enrich/internal/model"
)

// Tracker maintains the aggregate position of each BOM's enrichment so a
// reconnecting client can fetch a snapshot before resuming the event
// stream.
type Tracker struct {
	mu   sync.RWMutex
	boms map[string]*bomProgress
}

type bomProgress struct {
	total    int
	finished int
}

// NewTracker creates an empty progress tracker.
func NewTracker() *Tracker {
	return &Tracker{boms: make(map[string]*bomProgress)}
}

// StartBOM registers a BOM with its total item count. Calling it again for
// the same BOM adds items to the batch.
func (t *Tracker) StartBOM(bomID string, items int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.boms[bomID]; ok {
		p.total += items
		return
	}
	t.boms[bomID] = &bomProgress{total: items}
}

// ItemFinished records one item reaching a terminal state and returns the
// updated progress.
func (t *Tracker) ItemFinished(bomID string) model.Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.boms[bomID]
	if !ok {
		return model.Progress{}
	}
	if p.finished < p.total {
		p.finished++
	}
	return progressOf(p)
}

// Snapshot returns the current aggregate progress for a BOM. Unknown BOMs
// report zero progress and ok=false.
func (t *Tracker) Snapshot(bomID string) (model.Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.boms[bomID]
	if !ok {
		return model.Progress{}, false
	}
	return progressOf(p), true
}

// Forget drops a BOM's progress once the batch is fully done and reported.
func (t *Tracker) Forget(bomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.boms, bomID)
}

func progressOf(p *bomProgress) model.Progress {
	out := model.Progress{Current: p.finished, Total: p.total}
	if p.total > 0 {
		out.Percent = float64(p.finished) / float64(p.total) * 100
	}
	return out
}
