package httpx

import "sync"

// ServiceStats holds call counters for one service.
type ServiceStats struct {
	Attempts  int64 `json:"attempts"`
	Retries   int64 `json:"retries"`
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
}

// Telemetry accumulates per-service call counters. Every individual HTTP
// attempt is counted, so a call that succeeds on its third try records
// three attempts, two retries, and one success.
type Telemetry struct {
	mu       sync.Mutex
	services map[string]*ServiceStats
}

// NewTelemetry creates an empty telemetry collector.
func NewTelemetry() *Telemetry {
	return &Telemetry{services: make(map[string]*ServiceStats)}
}

// Stats returns a copy of the counters for one service.
func (t *Telemetry) Stats(service string) ServiceStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.services[service]; ok {
		return *s
	}
	return ServiceStats{}
}

// Snapshot returns a copy of all per-service counters.
func (t *Telemetry) Snapshot() map[string]ServiceStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]ServiceStats, len(t.services))
	for name, s := range t.services {
		out[name] = *s
	}
	return out
}

func (t *Telemetry) get(service string) *ServiceStats {
	if s, ok := t.services[service]; ok {
		return s
	}
	s := &ServiceStats{}
	t.services[service] = s
	return s
}

func (t *Telemetry) recordAttempt(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(service).Attempts++
}

func (t *Telemetry) recordRetry(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(service).Retries++
}

func (t *Telemetry) recordSuccess(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(service).Successes++
}

func (t *Telemetry) recordFailure(service string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.get(service).Failures++
}
