package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestDo_SuccessAfterTransientFailures(t *testing.T) {
	calls := 0
	retries := 0
	cfg := fastRetry(3)
	cfg.OnRetry = func(int, error) { retries++ }

	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("busy"), http.StatusServiceUnavailable)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(4), func(context.Context) error {
		calls++
		return NewTransientError(errors.New("down"), http.StatusBadGateway)
	})

	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDo_NonTransientStopsImmediately(t *testing.T) {
	calls := 0
	permanent := errors.New("bad request")
	err := Do(context.Background(), fastRetry(5), func(context.Context) error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour}
	cfg.OnRetry = func(int, error) { cancel() }

	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("slow"), 0)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	calls := 0
	v, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, NewTransientError(errors.New("blip"), http.StatusTooManyRequests)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestBackoff_GrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, Backoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, Backoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, Backoff(2, cfg))
	assert.Equal(t, 300*time.Millisecond, Backoff(6, cfg))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 500)))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
	assert.False(t, IsTransient(errors.New("invalid api key")))

	assert.True(t, IsTransientHTTPStatus(http.StatusServiceUnavailable))
	assert.True(t, IsTransientHTTPStatus(http.StatusTooManyRequests))
	assert.False(t, IsTransientHTTPStatus(http.StatusNotFound))
}

func TestChain(t *testing.T) {
	var order []string
	fn := Chain(
		func(int, error) { order = append(order, "a") },
		nil,
		func(int, error) { order = append(order, "b") },
	)
	fn(1, errors.New("x"))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2025, 2, 5, 0, 0, 0, 0, time.UTC)
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
		OnStateChange:    func(from, to CircuitState) { transitions = append(transitions, from.String()+">"+to.String()) },
	})
	cb.now = func() time.Time { return now }

	fail := func(context.Context) (int, error) { return 0, errors.New("boom") }
	ok := func(context.Context) (int, error) { return 1, nil }
	ctx := context.Background()

	_, _ = ExecuteVal(ctx, cb, fail)
	assert.Equal(t, CircuitClosed, cb.State())
	_, _ = ExecuteVal(ctx, cb, fail)
	assert.Equal(t, CircuitOpen, cb.State())

	_, err := ExecuteVal(ctx, cb, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	now = now.Add(time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())
	v, err := ExecuteVal(ctx, cb, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, CircuitClosed, cb.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}
