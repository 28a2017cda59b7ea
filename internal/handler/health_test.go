package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serve(t *testing.T, h *HealthHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h.Register(engine)
	rec := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := serve(t, &HealthHandler{}, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReadyz(t *testing.T) {
	rec := serve(t, &HealthHandler{Store: pingFunc(func(context.Context) error { return nil })}, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())

	rec = serve(t, &HealthHandler{Store: pingFunc(func(context.Context) error {
		return errors.New("storage failure: closed")
	})}, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "store_unreachable")

	rec = serve(t, &HealthHandler{}, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyzAppliesPingTimeout(t *testing.T) {
	var deadline bool
	h := &HealthHandler{
		PingTimeout: time.Second,
		Store: pingFunc(func(ctx context.Context) error {
			_, deadline = ctx.Deadline()
			return nil
		}),
	}
	serve(t, h, "/readyz")
	assert.True(t, deadline)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "ops_checks_total", Help: "ops checks"})
	reg.MustRegister(c)
	c.Inc()

	rec := serve(t, &HealthHandler{Gatherer: reg}, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ops_checks_total 1")

	rec = serve(t, &HealthHandler{}, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
