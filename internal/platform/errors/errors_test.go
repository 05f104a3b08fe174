package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputError(t *testing.T) {
	cause := fmt.Errorf("unexpected end of JSON input")
	err := InputError("malformed mood event", cause)

	assert.Equal(t, TypeInput, err.Type)
	assert.Equal(t, "malformed mood event", err.Message)
	assert.Equal(t, cause, err.Cause)
	assert.NotNil(t, err.Context)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Contains(t, err.Error(), "input")
	assert.Contains(t, err.Error(), "unexpected end of JSON input")
}

func TestUpstreamError(t *testing.T) {
	err := UpstreamError("mqtt broker unreachable", errors.New("connection refused"))

	assert.Equal(t, TypeUpstream, err.Type)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
	assert.Contains(t, err.Error(), "upstream")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestConfigError(t *testing.T) {
	err := ConfigError("failed to bind receiver listener", errors.New("address already in use"))

	assert.Equal(t, TypeConfig, err.Type)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
}

func TestDeliveryError(t *testing.T) {
	err := DeliveryError("receiver queue full", nil)

	assert.Equal(t, TypeDelivery, err.Type)
	assert.Nil(t, err.Cause)
	assert.NotContains(t, err.Error(), "<nil>")
}

func TestValidationError(t *testing.T) {
	err := ValidationError("invalid receiver handle")

	assert.Equal(t, TypeValidation, err.Type)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Nil(t, err.Cause)
}

func TestUnavailableError(t *testing.T) {
	err := UnavailableError("max receivers reached", nil)

	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
}

func TestRateLimitedError(t *testing.T) {
	cause := errors.New("rate limiter: rate limit exceeded")
	err := RateLimitedError("too many receiver handshakes", cause)

	assert.Equal(t, TypeRateLimited, err.Type)
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus())
	assert.ErrorIs(t, err, cause)
}

func TestWithFieldChaining(t *testing.T) {
	err := InputError("missing mood", nil).
		WithField("topic", "ai/mood").
		WithField("bytes", 12)

	assert.Len(t, err.Context, 2)
	assert.Equal(t, "ai/mood", err.Context["topic"])
	assert.Equal(t, 12, err.Context["bytes"])
}

func TestWithFieldNilMap(t *testing.T) {
	err := &Error{Type: TypeInput, Message: "test"}

	err = err.WithField("key", "value")

	assert.Equal(t, "value", err.Context["key"])
}

func TestToResponse(t *testing.T) {
	err := ValidationError("invalid handle").WithField("handle", "abc")

	resp := err.ToResponse()

	assert.Equal(t, "invalid handle", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "abc", resp.Context["handle"])
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := InternalError("wrapped", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.ErrorIs(t, err, cause)
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("already structured", func(t *testing.T) {
		orig := UpstreamError("down", nil)
		assert.Same(t, orig, AsStructuredError(orig))
	})

	t.Run("wrapped structured", func(t *testing.T) {
		orig := InputError("bad payload", nil)
		wrapped := fmt.Errorf("handle event: %w", orig)
		assert.Same(t, orig, AsStructuredError(wrapped))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := AsStructuredError(errors.New("boom"))
		assert.Equal(t, TypeInternal, got.Type)
		assert.Equal(t, "internal server error", got.Message)
	})
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("subscribe: %w", UpstreamError("broker lost", nil))

	assert.True(t, IsType(err, TypeUpstream))
	assert.False(t, IsType(err, TypeInput))
	assert.False(t, IsType(errors.New("plain"), TypeInternal))
	assert.False(t, IsType(nil, TypeInput))
}
