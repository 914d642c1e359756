package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrInternal, ErrConflict, ErrServiceUnavail, ErrBadGateway,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	inner := fmt.Errorf("redis connection lost")
	withInner := &AppError{Code: "INTERNAL_ERROR", Message: "cache broke", Err: inner}
	assert.Equal(t, "INTERNAL_ERROR: cache broke: redis connection lost", withInner.Error())

	plain := &AppError{Code: "NOT_FOUND", Message: "shop not found"}
	assert.Equal(t, "NOT_FOUND: shop not found", plain.Error())
	assert.Nil(t, plain.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("shop", "ABCD0815"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("start must not be negative"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"conflict", Conflict("duplicate order number"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"unavailable", ServiceUnavailable("provider disabled"), "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, ErrServiceUnavail},
		{"bad gateway", BadGateway("provider answered garbage", nil), "BAD_GATEWAY", http.StatusBadGateway, ErrBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.True(t, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestBadGateway_KeepsCause(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := BadGateway("provider answered garbage", cause)

	assert.True(t, errors.Is(err, ErrBadGateway))
	assert.True(t, errors.Is(err, cause))
}

func TestInternal_WrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Internal(cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.True(t, errors.Is(err, cause))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", NotFound("shop", "x"), http.StatusNotFound},
		{"wrapped app error", fmt.Errorf("export: %w", InvalidInput("bad")), http.StatusBadRequest},
		{"sentinel not found", fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
		{"sentinel conflict", ErrConflict, http.StatusConflict},
		{"sentinel unavailable", ErrServiceUnavail, http.StatusServiceUnavailable},
		{"sentinel bad gateway", ErrBadGateway, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

