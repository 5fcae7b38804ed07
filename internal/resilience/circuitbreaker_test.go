package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("bars", CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	cb.now = func() time.Time { return now }

	ctx := context.Background()
	boom := errors.New("boom")
	fail := func() (int, error) { return 0, boom }
	ok := func() (int, error) { return 7, nil }

	_, err := Execute(ctx, cb, fail)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, CircuitClosed, cb.State())

	_, err = Execute(ctx, cb, fail)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, CircuitOpen, cb.State())

	_, err = Execute(ctx, cb, ok)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int64(1), cb.Rejected())

	now = now.Add(2 * time.Minute)
	v, err := Execute(ctx, cb, ok)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("bars", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	cb.now = func() time.Time { return now }

	_, _ = Execute(context.Background(), cb, func() (int, error) { return 0, errors.New("x") })
	require.Equal(t, CircuitOpen, cb.State())

	now = now.Add(2 * time.Second)
	_, _ = Execute(context.Background(), cb, func() (int, error) { return 0, errors.New("still down") })
	assert.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerTimeout(t *testing.T) {
	cb := NewCircuitBreaker("bars", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)
	_, err := Execute(ctx, cb, func() (string, error) {
		<-release
		return "late", nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreakerHalfOpenAdmitsOneTrial(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker("bars", CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	cb.now = func() time.Time { return now }

	_, _ = Execute(context.Background(), cb, func() (int, error) { return 0, errors.New("down") })
	require.Equal(t, CircuitOpen, cb.State())
	now = now.Add(2 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Execute(context.Background(), cb, func() (int, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- err
	}()
	<-started

	assert.Equal(t, CircuitHalfOpen, cb.State())
	_, err := Execute(context.Background(), cb, func() (int, error) { return 2, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, CircuitClosed, cb.State())

	v, err := Execute(context.Background(), cb, func() (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}
