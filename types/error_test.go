package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	t.Parallel()
	e := NewError(ErrUpstreamTimeout, "gateway timed out")
	assert.Equal(t, "[UPSTREAM_TIMEOUT] gateway timed out", e.Error())

	withCause := NewError(ErrNodeFailed, "node boom").WithCause(errors.New("connection reset"))
	assert.Contains(t, withCause.Error(), "connection reset")
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("root cause")
	e := NewError(ErrInternalError, "wrapper").WithCause(cause)
	assert.ErrorIs(t, e, cause)

	wrapped := fmt.Errorf("outer: %w", e)
	var target *Error
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, ErrInternalError, target.Code)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil-like plain error", errors.New("plain"), false},
		{"explicit retryable flag", NewError(ErrInvalidRequest, "x").WithRetryable(true), true},
		{"transient code without flag", NewError(ErrRateLimited, "slow down"), true},
		{"upstream error code", NewError(ErrUpstreamError, "502"), true},
		{"non-transient code", NewError(ErrAuthentication, "bad key"), false},
		{"flow structural error", NewError(ErrInvalidGraph, "cycle"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	t.Parallel()
	assert.Equal(t, ErrNodeFailed, GetErrorCode(NewError(ErrNodeFailed, "x")))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestTokenUsage_Add(t *testing.T) {
	t.Parallel()
	u := TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Cost: 0.01}
	u.Add(TokenUsage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5, Cost: 0.002})
	assert.Equal(t, 12, u.PromptTokens)
	assert.Equal(t, 8, u.CompletionTokens)
	assert.Equal(t, 20, u.TotalTokens)
	assert.InDelta(t, 0.012, u.Cost, 1e-9)
}
