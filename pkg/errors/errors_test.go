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
		{"app error wins", New(ErrInvalidInput, http.StatusTeapot, "odd"), http.StatusTeapot},
		{"not found", fmt.Errorf("resolving: %w", ErrNotFound), http.StatusNotFound},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"index not ready", ErrIndexNotReady, http.StatusServiceUnavailable},
		{"catalog", fmt.Errorf("load: %w", ErrCatalogUnavailable), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrCatalogUnavailable, http.StatusServiceUnavailable, "status %d", 502)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, "catalog unavailable: status 502", err.Error())
}
