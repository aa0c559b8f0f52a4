package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LabelsByRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.Middleware)
	r.HandleFunc("/api/v1/applications/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/applications/"+id, nil))
	}

	got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/applications/{id}", "404"))
	assert.Equal(t, 3.0, got)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestObserver(t *testing.T) {
	m := New()
	m.ObserveEventPublished("application.submitted")
	m.ObserveEventPublished("application.submitted")
	m.ObserveEventHandled("application.submitted", time.Millisecond, nil)
	m.ObserveEventHandled("application.submitted", time.Millisecond, errors.New("boom"))
	m.RecordConflict("/api/v1/applications/{id}/initial-review")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.eventsPublished.WithLabelValues("application.submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsHandled.WithLabelValues("application.submitted", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("/api/v1/applications/{id}/initial-review")))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveEventPublished("application.final_decided")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "admissions_hub_workflow_transitions_total"))
}

func TestCanonicalPath(t *testing.T) {
	assert.Equal(t, "/", canonicalPath(""))
	assert.Equal(t, "/files", canonicalPath("/files/s1/transcript.pdf"))
}
