package supplier

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/bom-enrich/internal/httpx"
	"github.com/sells-group/bom-enrich/internal/model"
	"github.com/sells-group/bom-enrich/internal/resilience"
)

// envelope is the decoded shape every supplier backend returns. The wire
// formats differ per supplier but are assumed already projected into this
// common envelope by the backend gateway.
type envelope struct {
	Found bool            `json:"found"`
	Part  *model.PartData `json:"part,omitempty"`
	AsOf  *time.Time      `json:"as_of,omitempty"`
}

// HTTPSupplier adapts one supplier backend behind the resilient client.
type HTTPSupplier struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *httpx.Client
}

// HTTPSupplierConfig configures one supplier adapter.
type HTTPSupplierConfig struct {
	Name    string
	BaseURL string
	APIKey  string
	Timeout time.Duration // per-call override passed to the http client
}

// NewHTTPSupplier creates a supplier adapter over the shared resilient
// client.
func NewHTTPSupplier(cfg HTTPSupplierConfig, client *httpx.Client) *HTTPSupplier {
	return &HTTPSupplier{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client:  client,
	}
}

func (s *HTTPSupplier) Name() string { return s.name }

// Fetch looks up one part. Classification of failures follows the error
// kind from the http client: not_found and rate_limited get their own
// statuses, everything else is a generic supplier error.
func (s *HTTPSupplier) Fetch(ctx context.Context, mpn, manufacturer string) model.SupplierResponse {
	start := time.Now()
	resp := model.SupplierResponse{Supplier: s.name}

	q := url.Values{}
	q.Set("mpn", mpn)
	if manufacturer != "" {
		q.Set("manufacturer", manufacturer)
	}

	req := httpx.Request{
		URL:     s.baseURL + "/parts?" + q.Encode(),
		Service: s.name,
		Timeout: s.timeout,
	}
	if s.apiKey != "" {
		req.Header = map[string][]string{"Authorization": {"Bearer " + s.apiKey}}
	}

	httpResp, err := s.client.Do(ctx, req)
	resp.DurationMs = time.Since(start).Milliseconds()

	if err != nil {
		resp.Status = statusFromError(err)
		resp.Error = err.Error()
		zap.L().Debug("supplier fetch failed",
			zap.String("supplier", s.name),
			zap.String("mpn", mpn),
			zap.String("status", string(resp.Status)),
			zap.Error(err),
		)
		return resp
	}

	var env envelope
	if err := json.Unmarshal(httpResp.Body, &env); err != nil {
		resp.Status = model.SupplierError
		resp.Error = "decode response: " + err.Error()
		return resp
	}

	if !env.Found || env.Part == nil {
		resp.Status = model.SupplierNotFound
		return resp
	}

	resp.Status = model.SupplierSuccess
	resp.Data = env.Part
	resp.DataAsOf = env.AsOf
	return resp
}

func statusFromError(err error) model.SupplierStatus {
	switch resilience.KindOf(err) {
	case resilience.KindNotFound:
		return model.SupplierNotFound
	case resilience.KindRateLimited:
		return model.SupplierRateLimited
	default:
		return model.SupplierError
	}
}
