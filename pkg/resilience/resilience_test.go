package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryStopsWhenPolicyDeclines(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), "test", 5,
		func(ctx context.Context, attempt int) int {
			calls++
			return attempt
		},
		func(attempt int, v int) (time.Duration, bool) {
			return 0, v < 2
		},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 || got != 2 {
		t.Errorf("calls=%d got=%d, want 2/2", calls, got)
	}
}

func TestRetryHonoursMaxAttempts(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), "test", 3,
		func(ctx context.Context, attempt int) string {
			calls++
			return "transient"
		},
		func(int, string) (time.Duration, bool) { return time.Millisecond, true },
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if got != "transient" {
		t.Errorf("got %q, want last value", got)
	}
}

func TestRetryAbortsOnCancelledContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, "test", 3,
		func(ctx context.Context, attempt int) int {
			calls++
			cancel()
			return 0
		},
		func(int, int) (time.Duration, bool) { return time.Hour, true },
	)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExponential(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 3 * time.Second},
		{2, 9 * time.Second},
		{3, 27 * time.Second},
	}
	for _, tc := range cases {
		if got := Exponential(time.Second, 3, tc.attempt); got != tc.want {
			t.Errorf("Exponential(1s, 3, %d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("catalog", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open", cb.GetState())
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(2 * time.Minute)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("state = %v, want closed", cb.GetState())
	}
	want := []State{StateOpen, StateHalfOpen, StateClosed}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
		}
	}
}

func TestWithTimeoutReportsDeadline(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("catalog", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Second})
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	cb.Execute(func() error { return boom })
	now = now.Add(2 * time.Second)

	release := make(chan struct{})
	probeDone := make(chan error)
	go func() {
		probeDone <- cb.Execute(func() error { <-release; return boom })
	}()
	for cb.GetState() != StateHalfOpen {
		time.Sleep(time.Millisecond)
	}
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second call during probe: err = %v, want ErrCircuitOpen", err)
	}
	close(release)
	if err := <-probeDone; !errors.Is(err, boom) {
		t.Fatalf("probe err = %v", err)
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %v, want open after failed probe", cb.GetState())
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker("catalog", CircuitBreakerConfig{FailureThreshold: 2})
	boom := errors.New("boom")
	cb.Execute(func() error { return boom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return boom })
	if cb.GetState() != StateClosed {
		t.Errorf("state = %v; failures were not consecutive", cb.GetState())
	}
	cb.Execute(func() error { return boom })
	if cb.GetState() != StateOpen {
		t.Errorf("state = %v, want open", cb.GetState())
	}
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("state after Reset = %v", cb.GetState())
	}
}
