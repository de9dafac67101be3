package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"parkncharge/registration/internal/metrics"
)

func TestRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	r := chi.NewRouter()
	r.Use(RequestLogger(zerolog.New(&logs)))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz?token=secret", nil))

	out := logs.String()
	assert.Contains(t, out, `"method":"GET"`)
	assert.Contains(t, out, `"path":"/healthz"`)
	assert.Contains(t, out, `"status":418`)
	assert.NotContains(t, out, "secret", "query strings are not logged")
}

func TestInstrument_UsesRoutePattern(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(Instrument(m))
	r.Get("/drivers/{id}", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/drivers/1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/drivers/2", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration), "both requests share one route series")
}
