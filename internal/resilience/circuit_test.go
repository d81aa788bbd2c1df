package resilience

import (
	"errors"
	"testing"
	"time"
)

func serverErr() error {
	return &CallError{Kind: KindServerError, StatusCode: 503, Message: "unavailable"}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := cb.Allow(); err != nil {
			t.Fatalf("call %d rejected early: %v", i, err)
		}
		cb.Record(serverErr())
	}

	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if cb.State() != CircuitOpen {
		t.Errorf("expected open state, got %s", cb.State())
	}
}

func TestCircuitBreaker_NonTrippingErrorsIgnored(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	notFound := &CallError{Kind: KindNotFound, StatusCode: 404, Message: "no such part"}
	for i := 0; i < 5; i++ {
		cb.Record(notFound)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("not_found should not trip the breaker, state %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	cb.Record(serverErr())
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	// Advance past the reset timeout: a probe is allowed.
	now = now.Add(11 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}

	// Successful probe closes the circuit.
	cb.Record(nil)
	if cb.State() != CircuitClosed {
		t.Errorf("expected closed after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 10 * time.Second})
	cb.nowFunc = func() time.Time { return now }

	cb.Record(serverErr())
	now = now.Add(11 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	cb.Record(serverErr())

	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected reopen after failed probe, got %v", err)
	}
}

func TestServiceBreakers_PerService(t *testing.T) {
	sb := NewServiceBreakers(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	sb.Get("digikey").Record(serverErr())

	if sb.Get("digikey").State() != CircuitOpen {
		t.Error("digikey breaker should be open")
	}
	if sb.Get("mouser").State() != CircuitClosed {
		t.Error("mouser breaker should be untouched")
	}

	states := sb.States()
	if states["digikey"] != "open" || states["mouser"] != "closed" {
		t.Errorf("unexpected states snapshot: %v", states)
	}
}
