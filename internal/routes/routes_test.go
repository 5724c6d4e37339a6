package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"telehealth-server/internal/config"
	"telehealth-server/internal/metrics"
	"telehealth-server/internal/repository"
	"telehealth-server/internal/services"
	"telehealth-server/pkg/logging"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	m.ObservePayout(metrics.OutcomeSuccess, "")

	svc := services.New(services.Deps{
		Repo:    repository.NewMemoryRepository(),
		Metrics: m,
		Logger:  logging.Discard(),
	})
	cfg := &config.Config{JWTSecret: "routes-secret", ScheduleTimezone: "UTC"}

	r := gin.New()
	SetupRoutes(r, svc, cfg, reg)
	return r
}

func TestHealth(t *testing.T) {
	r := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	r := newRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "telehealth_payout_requests_total")
}

func TestAPIRequiresBearerToken(t *testing.T) {
	r := newRouter(t)
	paths := []struct{ method, path string }{
		{http.MethodGet, "/api/v1/doctors"},
		{http.MethodGet, "/api/v1/doctors/d-1/slots"},
		{http.MethodPost, "/api/v1/appointments"},
		{http.MethodPost, "/api/v1/appointments/a-1/token"},
		{http.MethodPut, "/api/v1/availability"},
		{http.MethodPost, "/api/v1/payouts"},
		{http.MethodGet, "/api/v1/earnings"},
		{http.MethodGet, "/api/v1/credits"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
