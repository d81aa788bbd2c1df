package supplier

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sells-group/bom-enrich/internal/model"
)

func TestCachedFetcher_FreshHit(t *testing.T) {
	inner := &stubFetcher{name: "digikey", resp: success("digikey", model.PartData{Description: "d", Stock: 5})}
	c := NewCachedFetcher(inner, time.Hour)

	first := c.Fetch(context.Background(), "LM358", "TI")
	if first.Status != model.SupplierSuccess || first.Cached {
		t.Fatalf("first fetch: %+v", first)
	}

	second := c.Fetch(context.Background(), "LM358", "TI")
	if second.Status != model.SupplierSuccess {
		t.Errorf("cache hit status = %s, want success", second.Status)
	}
	if !second.Cached {
		t.Error("cache hit should set Cached")
	}
	if second.Data == nil || second.Data.Description != "d" {
		t.Errorf("cache hit data = %+v", second.Data)
	}
	if atomic.LoadInt32(&inner.calls) != 1 {
		t.Errorf("inner called %d times, want 1", inner.calls)
	}
}

func TestCachedFetcher_KeyIncludesManufacturer(t *testing.T) {
	inner := &stubFetcher{name: "digikey", resp: success("digikey", model.PartData{Description: "d"})}
	c := NewCachedFetcher(inner, time.Hour)

	c.Fetch(context.Background(), "LM358", "TI")
	c.Fetch(context.Background(), "LM358", "onsemi")

	if atomic.LoadInt32(&inner.calls) != 2 {
		t.Errorf("different manufacturers must not share an entry, inner called %d times", inner.calls)
	}
}

func TestCachedFetcher_StaleServeOnFailure(t *testing.T) {
	inner := &stubFetcher{name: "digikey", resp: success("digikey", model.PartData{Description: "d", Stock: 5})}
	c := NewCachedFetcher(inner, time.Minute)

	now := time.Now()
	c.nowFunc = func() time.Time { return now }

	c.Fetch(context.Background(), "LM358", "TI")

	// Entry expires, then the upstream starts failing.
	now = now.Add(2 * time.Minute)
	inner.resp = model.SupplierResponse{Supplier: "digikey", Status: model.SupplierError, Error: "upstream down"}

	got := c.Fetch(context.Background(), "LM358", "TI")
	if got.Status != model.SupplierError {
		t.Errorf("stale serve must keep the failure status, got %s", got.Status)
	}
	if !got.Cached {
		t.Error("stale serve should set Cached")
	}
	if got.Data == nil || got.Data.Description != "d" {
		t.Errorf("stale serve should carry the cached data, got %+v", got.Data)
	}
	if got.DataAsOf == nil {
		t.Error("stale serve should report data age")
	}
	if got.Usable() == false {
		t.Error("stale serve should be usable for the merge")
	}
}

func TestCachedFetcher_NotFoundNotCachedNotServedStale(t *testing.T) {
	inner := &stubFetcher{name: "digikey", resp: success("digikey", model.PartData{Description: "d"})}
	c := NewCachedFetcher(inner, time.Minute)

	now := time.Now()
	c.nowFunc = func() time.Time { return now }

	c.Fetch(context.Background(), "LM358", "TI")
	now = now.Add(2 * time.Minute)
	inner.resp = model.SupplierResponse{Supplier: "digikey", Status: model.SupplierNotFound}

	got := c.Fetch(context.Background(), "LM358", "TI")
	if got.Status != model.SupplierNotFound {
		t.Errorf("status = %s, want not_found", got.Status)
	}
	if got.Cached || got.Data != nil {
		t.Error("a definitive not_found must not be masked by stale data")
	}
}
