package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveness(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

	require.NoError(t, NewHealthHandler().Liveness(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]Checker
		wantStatus int
		wantBody   string
	}{
		{"all healthy", map[string]Checker{"mongodb": ok, "redis": ok}, http.StatusOK, "ok"},
		{"no dependencies", map[string]Checker{}, http.StatusOK, "ok"},
		{"one down", map[string]Checker{"postgres": ok, "redis": down}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)

			require.NoError(t, NewHealthDependenciesHandler(tc.checks).Readiness(c))
			assert.Equal(t, tc.wantStatus, rec.Code)

			var resp readinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantBody, resp.Status)
			assert.Len(t, resp.Dependencies, len(tc.checks))
		})
	}
}
