package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := New(3, 1, time.Minute)

	for i := 0; i < 2; i++ {
		if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("Do() error = %v, want errBoom", err)
		}
	}
	if got := b.State(); got != Closed {
		t.Errorf("State() = %v, want Closed", got)
	}
}

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New(2, 1, time.Minute)

	b.Do(func() error { return errBoom })
	b.Do(func() error { return errBoom })

	if got := b.State(); got != Open {
		t.Fatalf("State() = %v, want Open", got)
	}

	called := false
	err := b.Do(func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Do() error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("open breaker still ran the call")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := New(2, 1, time.Minute)

	b.Do(func() error { return errBoom })
	b.Do(func() error { return nil })
	b.Do(func() error { return errBoom })

	if got := b.State(); got != Closed {
		t.Errorf("State() = %v, want Closed after an interleaved success", got)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := New(1, 2, 10*time.Millisecond)

	b.Do(func() error { return errBoom })
	if got := b.State(); got != Open {
		t.Fatalf("State() = %v, want Open", got)
	}

	time.Sleep(20 * time.Millisecond)
	if got := b.State(); got != HalfOpen {
		t.Fatalf("State() = %v, want HalfOpen after cool-down", got)
	}

	b.Do(func() error { return nil })
	b.Do(func() error { return nil })
	if got := b.State(); got != Closed {
		t.Errorf("State() = %v, want Closed after trial successes", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := New(1, 2, 10*time.Millisecond)

	b.Do(func() error { return errBoom })
	time.Sleep(20 * time.Millisecond)

	if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("Do() error = %v", err)
	}
	if got := b.State(); got != Open {
		t.Errorf("State() = %v, want Open after a half-open failure", got)
	}
}
