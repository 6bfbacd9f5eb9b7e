package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pkasolver/pkg/errors"
)

func healthRouter(h *HealthHandler) *gin.Engine {
	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
	return r
}

func TestLiveness(t *testing.T) {
	w := do(healthRouter(NewHealthHandler("1.2.3")), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp LivenessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestReadiness(t *testing.T) {
	ok := NamedCheck("postgres", func(context.Context) error { return nil })
	down := NamedCheck("redis", func(context.Context) error {
		return errors.New(errors.ErrCodeCacheError, "dial tcp: refused")
	})

	tests := []struct {
		name     string
		checkers []HealthChecker
		want     int
		status   string
	}{
		{"no checkers", nil, http.StatusOK, "ready"},
		{"all healthy", []HealthChecker{ok}, http.StatusOK, "ready"},
		{"one down", []HealthChecker{ok, down}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(healthRouter(NewHealthHandler("v", tt.checkers...)), http.MethodGet, "/readyz", "")
			assert.Equal(t, tt.want, w.Code)
			var resp ReadinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Len(t, resp.Components, len(tt.checkers))
			if tt.status == "not_ready" {
				assert.Equal(t, "unhealthy", resp.Components["redis"].Status)
				assert.Contains(t, resp.Components["redis"].Error, "refused")
				assert.Equal(t, "healthy", resp.Components["postgres"].Status)
			}
		})
	}
}

//Personal.AI order the ending
