package model

import "time"

// SupplierStatus classifies the outcome of one supplier call.
type SupplierStatus string

const (
	SupplierSuccess     SupplierStatus = "success"
	SupplierNotFound    SupplierStatus = "not_found"
	SupplierRateLimited SupplierStatus = "rate_limited"
	SupplierError       SupplierStatus = "error"
)

// PartData is the common envelope every supplier adapter decodes into.
// Completeness is counted over these fields; Parameters is free-form and
// does not count toward completeness.
type PartData struct {
	Description  string            `json:"description,omitempty"`
	Category     string            `json:"category,omitempty"`
	DatasheetURL string            `json:"datasheet_url,omitempty"`
	Lifecycle    string            `json:"lifecycle,omitempty"`
	Packaging    string            `json:"packaging,omitempty"`
	RoHS         string            `json:"rohs,omitempty"`
	UnitPriceUSD float64           `json:"unit_price_usd,omitempty"`
	Stock        int               `json:"stock,omitempty"`
	LeadTimeDays int               `json:"lead_time_days,omitempty"`
	Parameters   map[string]string `json:"parameters,omitempty"`
}

// KnownFieldCount is the number of fields that count toward completeness.
const KnownFieldCount = 9

// Completeness returns how many known fields are populated.
func (p *PartData) Completeness() int {
	if p == nil {
		return 0
	}
	n := 0
	if p.Description != "" {
		n++
	}
	if p.Category != "" {
		n++
	}
	if p.DatasheetURL != "" {
		n++
	}
	if p.Lifecycle != "" {
		n++
	}
	if p.Packaging != "" {
		n++
	}
	if p.RoHS != "" {
		n++
	}
	if p.UnitPriceUSD > 0 {
		n++
	}
	if p.Stock > 0 {
		n++
	}
	if p.LeadTimeDays > 0 {
		n++
	}
	return n
}

// SupplierResponse is the settled outcome of one supplier call for one job.
// Immutable once produced.
type SupplierResponse struct {
	Supplier   string         `json:"supplier"`
	Status     SupplierStatus `json:"status"`
	Data       *PartData      `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Cached     bool           `json:"cached"`
	DataAsOf   *time.Time     `json:"data_as_of,omitempty"`
}

// Usable reports whether the response carries data the merge can consume:
// a fresh success, or a cached copy served while the upstream was down.
func (r SupplierResponse) Usable() bool {
	if r.Data == nil {
		return false
	}
	return r.Status == SupplierSuccess || r.Cached
}

// AggregatedData is the fan-in result of the supplier_api step. MergedData
// is recomputed deterministically from the response set; it is nil when no
// supplier produced usable data.
type AggregatedData struct {
	MPN          string             `json:"mpn"`
	Manufacturer string             `json:"manufacturer,omitempty"`
	Responses    []SupplierResponse `json:"responses"`
	BestSource   string             `json:"best_source,omitempty"`
	MergedData   *PartData          `json:"merged_data,omitempty"`
}

// SuccessCount returns the number of responses with status success. A
// cache hit served while the upstream is healthy reports success and
// counts; a stale entry served on upstream failure keeps its error status
// (with Cached set) and does not.
func (a *AggregatedData) SuccessCount() int {
	n := 0
	for _, r := range a.Responses {
		if r.Status == SupplierSuccess {
			n++
		}
	}
	return n
}
