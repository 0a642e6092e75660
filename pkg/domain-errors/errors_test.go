package domainerrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))

	cause := errors.New("connection reset")
	err := Wrap(cause, CodeUnavailable, "load shop")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "unavailable: load shop: connection reset", err.Error())
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{name: "coded", err: New(CodeNotFound, "shop not found"), want: CodeNotFound},
		{name: "wrapped by fmt", err: fmt.Errorf("approve: %w", New(CodeForbidden, "denied")), want: CodeForbidden},
		{name: "uncoded", err: errors.New("boom"), want: CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
			assert.True(t, HasCode(tt.err, tt.want) || tt.want == CodeInternal)
		})
	}
}

func TestHasCode_OutermostWins(t *testing.T) {
	inner := New(CodeNotFound, "document not found")
	outer := Wrap(inner, CodeInvalidTransition, "review document")

	assert.True(t, Is(outer, CodeInvalidTransition))
	assert.False(t, HasCode(outer, CodeNotFound))
}

func TestRateLimited(t *testing.T) {
	err := fmt.Errorf("create shop: %w", RateLimited("too many requests", 30*time.Second))

	de, ok := From(err)
	require.True(t, ok)
	assert.Equal(t, 30*time.Second, de.RetryAfter)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(New(CodeForbidden, "denied")))
}
