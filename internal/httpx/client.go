// Package httpx wraps every outbound HTTP call with timeouts, capped
// retries, per-host rate limiting, per-service circuit breaking,
// correlation IDs, and structured error classification.
package httpx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/bom-enrich/internal/resilience"
)

// CorrelationHeader carries the per-call correlation ID. The same value is
// reused across every retry of one logical call.
const CorrelationHeader = "X-Correlation-Id"

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 4 << 20

// Config holds process-wide defaults for the client. Per-call overrides
// live on Request.
type Config struct {
	UserAgent         string
	Timeout           time.Duration // per-attempt deadline, default 30s
	CorrelationPrefix string        // default "enrich"
	Retry             resilience.RetryConfig
	RateLimits        map[string]*rate.Limiter // per host; nil hosts use the default limiter
	DefaultRateLimit  rate.Limit               // default 20 rps
	Breakers          *resilience.ServiceBreakers
}

// Request describes one logical outbound call.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration // overrides Config.Timeout when > 0
	Service string        // telemetry/breaker key; defaults to the URL host
}

// Response is the settled result of a logical call.
type Response struct {
	StatusCode    int
	Header        http.Header
	Body          []byte
	CorrelationID string
	Attempts      int
}

// Client is the resilient HTTP client. Construct one per process and
// inject it; it is safe for concurrent use.
type Client struct {
	http      *http.Client
	cfg       Config
	defaultRL *rate.Limiter
	telemetry *Telemetry
}

// New creates a Client with the given config, applying defaults.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "bom-enrich/1.0"
	}
	if cfg.CorrelationPrefix == "" {
		cfg.CorrelationPrefix = "enrich"
	}
	if cfg.DefaultRateLimit <= 0 {
		cfg.DefaultRateLimit = 20
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		http:      &http.Client{Transport: transport},
		cfg:       cfg,
		defaultRL: rate.NewLimiter(cfg.DefaultRateLimit, int(cfg.DefaultRateLimit)),
		telemetry: NewTelemetry(),
	}
}

// Telemetry returns the per-service call counters.
func (c *Client) Telemetry() *Telemetry {
	return c.telemetry
}

// BreakerStates exposes circuit state per service for observability.
func (c *Client) BreakerStates() map[string]string {
	if c.cfg.Breakers == nil {
		return nil
	}
	return c.cfg.Breakers.States()
}

// NewCorrelationID generates a correlation ID of the form
// prefix-<epoch_ms>-<random_suffix>.
func (c *Client) NewCorrelationID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%d-%s", c.cfg.CorrelationPrefix, time.Now().UnixMilli(), suffix)
}

// Do executes one logical call: up to Retry.MaxAttempts attempts sharing a
// single correlation ID, each bounded by the per-attempt timeout. Terminal
// failures come back as a *resilience.CallError carrying the classification
// kind and the correlation ID.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	service := req.Service
	if service == "" {
		service = hostOf(req.URL)
	}

	var breaker *resilience.CircuitBreaker
	if c.cfg.Breakers != nil {
		breaker = c.cfg.Breakers.Get(service)
	}

	corrID := c.NewCorrelationID()
	attempts := 0

	retryCfg := c.cfg.Retry
	if retryCfg.OnRetry == nil {
		retryCfg.OnRetry = func(attempt int, err error) {
			c.telemetry.recordRetry(service)
			zap.L().Warn("retrying http call",
				zap.String("service", service),
				zap.String("url", req.URL),
				zap.String("correlation_id", corrID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
	}

	resp, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (*Response, error) {
		if breaker != nil {
			if allowErr := breaker.Allow(); allowErr != nil {
				return nil, allowErr
			}
		}

		attempts++
		c.telemetry.recordAttempt(service)

		r, attemptErr := c.attempt(ctx, req, corrID)
		if breaker != nil {
			breaker.Record(attemptErr)
		}
		return r, attemptErr
	})

	if err != nil {
		c.telemetry.recordFailure(service)
		return nil, c.terminal(err, corrID, req.URL)
	}

	c.telemetry.recordSuccess(service)
	resp.CorrelationID = corrID
	resp.Attempts = attempts
	return resp, nil
}

// attempt performs a single HTTP exchange.
func (c *Client) attempt(ctx context.Context, req Request, corrID string) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiterFor(req.URL).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, &resilience.CallError{
			Kind:          resilience.KindValidation,
			CorrelationID: corrID,
			Message:       "build request: " + err.Error(),
			Err:           err,
		}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	httpReq.Header.Set(CorrelationHeader, corrID)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err // transport errors classify via KindOf
	}
	defer httpResp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read response body")
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       respBody,
		}, nil
	}

	return nil, &resilience.CallError{
		Kind:          resilience.ClassifyStatus(httpResp.StatusCode, respBody),
		StatusCode:    httpResp.StatusCode,
		CorrelationID: corrID,
		Message:       fmt.Sprintf("http %d from %s", httpResp.StatusCode, req.URL),
		Err:           eris.Errorf("http %d", httpResp.StatusCode),
	}
}

// terminal normalizes any failure into a CallError with the call's
// correlation ID attached.
func (c *Client) terminal(err error, corrID, rawURL string) error {
	var ce *resilience.CallError
	if eris.As(err, &ce) {
		if ce.CorrelationID == "" {
			ce.CorrelationID = corrID
		}
		return ce
	}
	return &resilience.CallError{
		Kind:          resilience.KindOf(err),
		CorrelationID: corrID,
		Message:       fmt.Sprintf("call %s failed: %v", rawURL, err),
		Err:           err,
	}
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	if lim, ok := c.cfg.RateLimits[hostOf(rawURL)]; ok {
		return lim
	}
	return c.defaultRL
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
