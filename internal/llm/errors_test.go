package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHTTP(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name   string
		status int
		kind   ErrorKind
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, kind: KindTransient},
		{name: "request timeout", status: http.StatusRequestTimeout, kind: KindTransient},
		{name: "server error", status: http.StatusInternalServerError, kind: KindTransient},
		{name: "bad gateway", status: http.StatusBadGateway, kind: KindTransient},
		{name: "bad request", status: http.StatusBadRequest, kind: KindRejected},
		{name: "forbidden", status: http.StatusForbidden, kind: KindRejected},
		{name: "content policy", status: http.StatusUnprocessableEntity, kind: KindRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyHTTP("openai", tt.status, base)
			assert.Equal(t, tt.kind, err.Kind)
			assert.ErrorIs(t, err, base)
		})
	}
}

func TestIsTransientAndIsRejected(t *testing.T) {
	transient := Transient("openai", errors.New("rate limited"))
	rejected := Rejected("openai", errors.New("disallowed prompt"))

	assert.True(t, IsTransient(transient))
	assert.False(t, IsRejected(transient))

	assert.False(t, IsTransient(rejected))
	assert.True(t, IsRejected(rejected))

	// Unclassified errors default to transient.
	assert.True(t, IsTransient(errors.New("mystery")))
}

func TestIsTransientWrapped(t *testing.T) {
	inner := Rejected("gemini", errors.New("invalid request"))
	wrapped := errors.Join(errors.New("outer"), inner)

	assert.True(t, IsRejected(wrapped))
	assert.False(t, IsTransient(wrapped))
}

func TestClassifyErr(t *testing.T) {
	err := ClassifyErr("openai", context.DeadlineExceeded)
	assert.True(t, IsTransient(err))

	// Caller cancellation must pass through unwrapped so it is not retried.
	err = ClassifyErr("openai", context.Canceled)
	require.ErrorIs(t, err, context.Canceled)
	var ue *UpstreamError
	assert.False(t, errors.As(err, &ue))
}

func TestUpstreamErrorMessage(t *testing.T) {
	err := Rejected("openai", errors.New("disallowed"))
	assert.Contains(t, err.Error(), "openai rejected request")

	err = Transient("gemini", errors.New("overloaded"))
	assert.Contains(t, err.Error(), "gemini transient failure")
}
