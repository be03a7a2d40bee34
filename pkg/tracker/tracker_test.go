package tracker

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_ConcurrentIncrementDecrement(t *testing.T) {
	tr := New()

	const incs, decs = 1000, 600
	var wg sync.WaitGroup
	for i := 0; i < incs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Increment()
		}()
	}
	wg.Wait()

	for i := 0; i < decs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Decrement()
			assert.GreaterOrEqual(t, tr.ActiveCount(), int64(0))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(incs-decs), tr.ActiveCount())
}

func TestTracker_DecrementNeverNegative(t *testing.T) {
	tr := New()
	tr.Decrement()
	tr.Decrement()
	assert.Equal(t, int64(0), tr.ActiveCount())

	tr.Increment()
	assert.Equal(t, int64(1), tr.ActiveCount())
}

func TestTracker_WrapCountsInFlight(t *testing.T) {
	tr := New()
	assert.False(t, tr.Attached())

	entered := make(chan struct{})
	release := make(chan struct{})
	h := tr.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusNoContent)
	}))
	assert.True(t, tr.Attached())

	rec := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	}()

	<-entered
	assert.Equal(t, int64(1), tr.ActiveCount())
	close(release)
	<-done

	assert.Equal(t, int64(0), tr.ActiveCount())
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTracker_WrapDecrementsOnPanic(t *testing.T) {
	tr := New()
	h := tr.Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler failed")
	}))

	assert.PanicsWithValue(t, "handler failed", func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, int64(0), tr.ActiveCount())
}

func TestTracker_StopAdmittingRejectsNewRequests(t *testing.T) {
	tr := New()
	called := false
	h := tr.Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	tr.StopAdmitting()
	assert.True(t, tr.Draining())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "close", rec.Header().Get("Connection"))
	assert.Equal(t, int64(0), tr.ActiveCount())
}

func TestTracker_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tr := New(WithRegisterer(reg))

	h := tr.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/", "/", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	requests := byName["webrun_http_requests_total"]
	require.NotNil(t, requests)
	counts := map[string]float64{}
	for _, m := range requests.GetMetric() {
		counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"2xx": 2, "4xx": 1}, counts)

	inFlight := byName["webrun_http_requests_in_flight"]
	require.NotNil(t, inFlight)
	assert.Equal(t, float64(0), inFlight.GetMetric()[0].GetGauge().GetValue())

	duration := byName["webrun_http_request_duration_seconds"]
	require.NotNil(t, duration)
	assert.Equal(t, uint64(3), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestTracker_InFlightGaugeFollowsCount(t *testing.T) {
	tr := New(WithRegisterer(prometheus.NewRegistry()))

	gauge := func() float64 {
		var m dto.Metric
		require.NoError(t, tr.metrics.inFlight.Write(&m))
		return m.GetGauge().GetValue()
	}

	const workers, rounds = 32, 200
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				tr.Increment()
				tr.Decrement()
			}
			tr.Increment()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(workers), tr.ActiveCount())
	assert.Equal(t, float64(workers), gauge())

	// Decrements past zero leave both at zero.
	for i := 0; i < workers+5; i++ {
		tr.Decrement()
	}
	assert.Equal(t, int64(0), tr.ActiveCount())
	assert.Equal(t, float64(0), gauge())
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "2xx"},
		{101, "1xx"},
		{302, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
		{700, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.status))
	}
}
