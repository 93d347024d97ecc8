package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestConfigDelay_GrowsAndCaps(t *testing.T) {
	cfg := &Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 200*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 800*time.Millisecond, cfg.delay(4))
	assert.Equal(t, time.Second, cfg.delay(5))
	assert.Equal(t, time.Second, cfg.delay(40))
}

func TestConfigDelay_JitterStaysInBounds(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i < 100; i++ {
		d := cfg.delay(1)
		assert.GreaterOrEqual(t, d, 180*time.Millisecond)
		assert.LessOrEqual(t, d, 220*time.Millisecond)
	}
}

func TestUntil_PassesAttemptNumbers(t *testing.T) {
	var seen []int
	err := Until(context.Background(), fastConfig(), func(attempt int) error {
		seen = append(seen, attempt)
		if attempt < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestUntil_ReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := Until(context.Background(), fastConfig(), func(attempt int) error {
		calls++
		return fmt.Errorf("attempt %d: i/o timeout", attempt)
	})
	require.Error(t, err)
	assert.Equal(t, "attempt 4: i/o timeout", err.Error())
	assert.Equal(t, 4, calls)
}

func TestUntil_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Until(context.Background(), fastConfig(), func(int) error {
		calls++
		return errors.New(`password authentication failed for user "ekaya"`)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestUntil_ContextCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &Config{MaxRetries: 10, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1}

	calls := 0
	err := Until(ctx, cfg, func(int) error {
		calls++
		cancel()
		return errors.New("connection reset by peer")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type declaredErr struct{ retry bool }

func (e declaredErr) Error() string     { return "declared" }
func (e declaredErr) IsRetryable() bool { return e.retry }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"postgres starting", errors.New("FATAL: the database system is starting up"), true},
		{"redis loading", errors.New("LOADING Redis is loading the dataset in memory"), true},
		{"auth", errors.New("password authentication failed"), false},
		{"declared retryable", declaredErr{retry: true}, true},
		{"declared permanent wrapped", fmt.Errorf("ping: %w", declaredErr{retry: false}), false},
		{"canceled", fmt.Errorf("connect: %w", context.Canceled), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}
