package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGetIsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}

func TestRecordFetch(t *testing.T) {
	m := New()

	m.RecordFetch(12, 10*time.Millisecond, nil)
	m.RecordFetch(0, 5*time.Millisecond, errors.New("boom"))

	assert.Equal(t, 12.0, testutil.ToFloat64(m.eventsFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchErrors))
}

func TestRecordCounters(t *testing.T) {
	m := New()

	m.RecordExcludedIntervals(3)
	m.RecordExcludedIntervals(0)
	m.RecordMalformedEvents(2)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()
	m.RecordLogin("ok")
	m.RecordRosterReload(40, nil)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.intervalsExcluded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.malformedDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginAttempts.WithLabelValues("ok")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.rosterMembers))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("/api/presence", http.StatusOK, 20*time.Millisecond)
	m.RecordBoardCycle(10, 7)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	assert.True(t, strings.Contains(body, `qcdash_http_requests_total{route="/api/presence",status="200"} 1`))
	assert.True(t, strings.Contains(body, "qcdash_board_agents_in_line 7"))
}
