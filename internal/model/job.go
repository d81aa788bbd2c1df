package model

import "time"

// EnrichmentJob identifies one BOM line item queued for enrichment.
// Immutable once created; every downstream record references it by
// bom_id + item_id.
type EnrichmentJob struct {
	BOMID        string    `json:"bom_id"`
	ItemID       string    `json:"item_id"`
	MPN          string    `json:"mpn"`
	Manufacturer string    `json:"manufacturer,omitempty"`
	Quantity     int       `json:"quantity,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}
