package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterAccumulates(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("events_total", nil, "events")
	r.IncrementCounter("events_total", nil, "events")
	r.AddToCounter("events_total", 3, nil, "events")

	all := r.GetAllMetrics()
	counters := all["counters"].(map[string]*Metric)
	require.Contains(t, counters, "events_total")
	assert.Equal(t, float64(5), counters["events_total"].Value)
}

func TestCounterLabelsSeparateSeries(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("events_total", map[string]string{"type": "text"}, "events")
	r.IncrementCounter("events_total", map[string]string{"type": "image"}, "events")
	r.IncrementCounter("events_total", map[string]string{"type": "text"}, "events")

	counters := r.GetAllMetrics()["counters"].(map[string]*Metric)
	assert.Equal(t, float64(2), counters["events_total_type:text"].Value)
	assert.Equal(t, float64(1), counters["events_total_type:image"].Value)
}

func TestGaugeOverwrites(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("pending", 5, nil, "pending tasks")
	r.SetGauge("pending", 2, nil, "pending tasks")

	gauges := r.GetAllMetrics()["gauges"].(map[string]*Metric)
	assert.Equal(t, float64(2), gauges["pending"].Value)
}

func TestTimerStatistics(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("op_duration", 10*time.Millisecond, nil, "op")
	r.RecordTimer("op_duration", 20*time.Millisecond, nil, "op")
	r.RecordTimer("op_duration", 30*time.Millisecond, nil, "op")

	timers := r.GetAllMetrics()["timers"].(map[string]*TimerMetric)
	timer := timers["op_duration"]
	require.NotNil(t, timer)
	assert.Equal(t, int64(3), timer.Count)
	assert.InDelta(t, 10, timer.Min, 0.01)
	assert.InDelta(t, 30, timer.Max, 0.01)
	assert.InDelta(t, 20, timer.Average, 0.01)
}

func TestGetAllMetricsIncludesUptime(t *testing.T) {
	r := NewRegistry()
	all := r.GetAllMetrics()

	assert.Contains(t, all, "uptime_ms")
	assert.Contains(t, all, "timestamp")
}

func TestGlobalRegistryConvenienceFuncs(t *testing.T) {
	IncrementCounter("global_test_counter", nil, "test")
	SetGauge("global_test_gauge", 1, nil, "test")

	all := GetAllMetrics()
	counters := all["counters"].(map[string]*Metric)
	assert.Contains(t, counters, "global_test_counter")
}
