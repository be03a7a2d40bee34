package lifecyclemetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/webrun/pkg/lifecycle"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		out[mf.GetName()] = mf
	}
	return out
}

func TestPlugin_RecordsEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := New(reg)
	require.NoError(t, err)
	assert.Equal(t, Name, p.Name())
	assert.Implements(t, (*lifecycle.Versioned)(nil), p)
	assert.Equal(t, lifecycle.Version, p.LifecycleVersion())

	p.OnStarting()
	p.OnStarted()

	mf := gather(t, reg)
	assert.Equal(t, float64(2), mf["webrun_server_state"].GetMetric()[0].GetGauge().GetValue())
	assert.Greater(t, mf["webrun_server_started_timestamp_seconds"].GetMetric()[0].GetGauge().GetValue(), float64(0))

	p.OnStopping()
	p.OnFailure(errors.New("stop failed"))
	p.OnStopped()

	mf = gather(t, reg)
	assert.Equal(t, float64(0), mf["webrun_server_state"].GetMetric()[0].GetGauge().GetValue())

	counts := map[string]float64{}
	for _, m := range mf["webrun_lifecycle_events_total"].GetMetric() {
		counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"Starting": 1,
		"Started":  1,
		"Stopping": 1,
		"Failed":   1,
		"Stopped":  1,
	}, counts)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}
