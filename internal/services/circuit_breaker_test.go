package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/stockcast/internal/utils"
	"github.com/irfndi/stockcast/pkg/interfaces"
)

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connection refused")

// manualClock lets tests move the breaker past its open timeout.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupCircuitBreaker(config CircuitBreakerConfig) (*CircuitBreaker, *manualClock) {
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	breaker := NewCircuitBreaker("bars", config, testLogger())
	breaker.now = clock.Now
	breaker.lastStateChange = clock.Now()
	return breaker, clock
}

func failing(context.Context) error { return errConnRefused }
func succeeding(context.Context) error { return nil }

func TestCircuitBreaker_ConfigDefaults(t *testing.T) {
	breaker := NewCircuitBreaker("defaults", CircuitBreakerConfig{}, nil)

	assert.Equal(t, 5, breaker.config.FailureThreshold)
	assert.Equal(t, 1, breaker.config.SuccessThreshold)
	assert.Equal(t, 30*time.Second, breaker.config.Timeout)
	assert.Equal(t, 1, breaker.config.MaxRequests)
	assert.Equal(t, Closed, breaker.State())
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	breaker, _ := setupCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, Timeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, breaker.Execute(ctx, failing), errConnRefused)
	}
	require.NoError(t, breaker.Execute(ctx, succeeding))
	assert.Equal(t, Closed, breaker.State(), "a success resets the failure count")

	for i := 0; i < 3; i++ {
		_ = breaker.Execute(ctx, failing)
	}
	assert.Equal(t, Open, breaker.State())

	called := false
	err := breaker.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, utils.ErrSourceUnavailable)
	assert.False(t, called)

	stats := breaker.Stats()
	assert.Equal(t, "open", stats.State)
	assert.Equal(t, int64(1), stats.RejectedRequests)
	assert.Equal(t, int64(5), stats.FailedRequests)
	assert.Equal(t, 3, stats.ConsecutiveFailure)
}

func TestCircuitBreaker_IgnoresCallerErrors(t *testing.T) {
	breaker, _ := setupCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	ctx := context.Background()

	for _, err := range []error{utils.ErrNoBars, utils.NewValidationError("bad symbol"), context.Canceled} {
		returned := breaker.Execute(ctx, func(context.Context) error { return err })
		assert.ErrorIs(t, returned, err)
	}
	assert.Equal(t, Closed, breaker.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	breaker, clock := setupCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: 10 * time.Second})
	ctx := context.Background()

	_ = breaker.Execute(ctx, failing)
	require.Equal(t, Open, breaker.State())
	assert.ErrorIs(t, breaker.HealthCheck(ctx), ErrCircuitOpen)

	clock.Advance(5 * time.Second)
	assert.ErrorIs(t, breaker.Execute(ctx, succeeding), ErrCircuitOpen)

	clock.Advance(5 * time.Second)
	require.NoError(t, breaker.Execute(ctx, succeeding))
	assert.Equal(t, HalfOpen, breaker.State())
	require.NoError(t, breaker.Execute(ctx, succeeding))
	assert.Equal(t, Closed, breaker.State())
	assert.NoError(t, breaker.HealthCheck(ctx))
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	breaker, clock := setupCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Second})
	ctx := context.Background()

	_ = breaker.Execute(ctx, failing)
	_ = breaker.Execute(ctx, failing)
	require.Equal(t, Open, breaker.State())

	clock.Advance(time.Second)
	assert.ErrorIs(t, breaker.Execute(ctx, failing), errConnRefused)
	assert.Equal(t, Open, breaker.State())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	breaker, clock := setupCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second, MaxRequests: 1})
	ctx := context.Background()

	_ = breaker.Execute(ctx, failing)
	clock.Advance(time.Second)

	probing := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- breaker.Execute(ctx, func(context.Context) error {
			close(probing)
			<-release
			return nil
		})
	}()

	<-probing
	assert.ErrorIs(t, breaker.Execute(ctx, succeeding), ErrCircuitOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Closed, breaker.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	breaker, _ := setupCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_ = breaker.Execute(context.Background(), failing)
	require.Equal(t, Open, breaker.State())

	breaker.Reset()
	assert.Equal(t, Closed, breaker.State())
	assert.Equal(t, int64(2), breaker.Stats().StateChanges)
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	breaker, _ := setupCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = breaker.Execute(context.Background(), failing)
			} else {
				_ = breaker.Execute(context.Background(), succeeding)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(20), breaker.Stats().TotalRequests)
	assert.Equal(t, int64(10), breaker.Stats().FailedRequests)
}

func TestWithCircuitBreaker_Source(t *testing.T) {
	source := new(MockBarSource)
	source.On("GetBars", mock.Anything, "AAPL", 10).Return(nil, errConnRefused).Once()
	breaker, _ := setupCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Minute})

	wrapped := WithCircuitBreaker(source, breaker)
	assert.Equal(t, "mock", wrapped.Name())
	_, writable := wrapped.(interfaces.BarWriter)
	assert.False(t, writable)

	_, err := wrapped.GetBars(context.Background(), "AAPL", 10)
	assert.ErrorIs(t, err, errConnRefused)
	_, err = wrapped.GetBars(context.Background(), "AAPL", 10)
	assert.ErrorIs(t, err, utils.ErrSourceUnavailable)
	source.AssertNumberOfCalls(t, "GetBars", 1)
}

func TestWithCircuitBreaker_Store(t *testing.T) {
	store := new(MockBarStore)
	series := generateRisingSeries(3, 100)
	store.On("GetBars", mock.Anything, "AAPL", 10).Return(series, nil)
	store.On("SaveBars", mock.Anything, "AAPL", series).Return(nil)
	breaker, _ := setupCircuitBreaker(CircuitBreakerConfig{})

	wrapped := WithCircuitBreaker(store, breaker)
	writer, writable := wrapped.(interfaces.BarWriter)
	require.True(t, writable)

	require.NoError(t, writer.SaveBars(context.Background(), "AAPL", series))
	got, err := wrapped.GetBars(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, series, got)
	store.AssertExpectations(t)
}
