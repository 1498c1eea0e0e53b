package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
		retry    bool
	}{
		{"invalid query", ErrCodeInvalidQuery, CategoryValidation, SeverityError, false},
		{"embed provider", ErrCodeEmbedProvider, CategoryNetwork, SeverityError, true},
		{"store unavailable", ErrCodeStoreUnavailable, CategoryIO, SeverityFatal, false},
		{"unknown preset", ErrCodeUnknownPreset, CategoryConfig, SeverityWarning, false},
		{"file unreadable", ErrCodeFileUnreadable, CategoryIO, SeverityWarning, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retry, err.Retryable)
		})
	}
}

func TestRagError_ErrorFormat(t *testing.T) {
	err := InvalidQuery("empty analysis text")
	assert.Equal(t, "[ERR_401_INVALID_QUERY] empty analysis text", err.Error())
}

func TestRagError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := EmbedProvider("embedding request failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestRagError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", InvalidQuery("no text"))
	assert.True(t, stderrors.Is(err, InvalidQuery("other message")))
	assert.False(t, stderrors.Is(err, New(ErrCodeInternal, "x", nil)))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeInvalidQuery, GetCode(InvalidQuery("x")))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := StoreUnavailable("cannot open", nil).WithDetail("path", "/tmp/db")
	assert.Equal(t, "/tmp/db", err.Details["path"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(EmbedProvider("timeout", nil)))
	assert.False(t, IsRetryable(InvalidQuery("x")))
	assert.False(t, IsRetryable(nil))
}
