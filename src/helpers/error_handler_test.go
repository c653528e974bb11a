package helpers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		attempts  int
		wantErr   bool
		wantCalls int
	}{
		{name: "first try succeeds", failures: 0, attempts: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, attempts: 3, wantCalls: 3},
		{name: "gives up", failures: 5, attempts: 2, wantErr: true, wantCalls: 2},
		{name: "zero attempts still runs once", failures: 0, attempts: 0, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithBackoff(context.Background(), nil, "op", tt.attempts, time.Millisecond, func(ctx context.Context) error {
				calls++
				if calls <= tt.failures {
					return errors.New("boom")
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := RetryWithBackoff(ctx, nil, "op", 5, time.Hour, func(ctx context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestClassification(t *testing.T) {
	wrappedRelogin := fmt.Errorf("quote: %w", ErrReloginRequired)

	assert.True(t, IsAuthFailure(wrappedRelogin))
	assert.True(t, IsAuthFailure(ErrNotAuthenticated))
	assert.True(t, IsAuthFailure(NewAuthError("login failed", errors.New("bad otp"))))
	assert.False(t, IsAuthFailure(errors.New("timeout")))

	assert.True(t, IsValidation(fmt.Errorf("x: %w", NewValidationError("expiry %q", "bad"))))
	assert.False(t, IsValidation(ErrUnauthorized))
}

func TestUpstreamErrorKeepsMessage(t *testing.T) {
	err := &UpstreamError{Operation: "getProfile", Code: "AB1010", Message: "Invalid Session"}
	assert.Equal(t, "getProfile: Invalid Session (AB1010)", err.Error())
}
