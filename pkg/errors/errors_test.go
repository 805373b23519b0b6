package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "brew"), http.StatusTeapot},
		{"not found", fmt.Errorf("ref 9: %w", ErrDocumentNotFound), http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"unavailable", fmt.Errorf("loading: %w", ErrIndexUnavailable), http.StatusServiceUnavailable},
		{"malformed", fmt.Errorf("parse: %w", ErrMalformedIndex), http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	err := Newf(ErrDocumentNotFound, http.StatusNotFound, "ref %s", "7")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.Equal(t, "document not found: ref 7", err.Error())
}
