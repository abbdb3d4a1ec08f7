package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthview-go/internal/pipeline"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveFrame(t *testing.T) {
	m := New()
	m.ObserveFrame(pipeline.OutcomePublished, 2*time.Millisecond)
	m.ObserveFrame(pipeline.OutcomePublished, 3*time.Millisecond)
	m.ObserveFrame(pipeline.OutcomeRejected, time.Millisecond)

	text := scrape(t, m)
	assert.Contains(t, text, `depthview_frames_total{outcome="published"} 2`)
	assert.Contains(t, text, `depthview_frames_total{outcome="rejected"} 1`)
	assert.Contains(t, text, `depthview_frames_total{outcome="busy"} 0`)
	assert.Contains(t, text, "depthview_frame_process_seconds_count 2")
}

func TestSensorAvailable(t *testing.T) {
	m := New()
	m.SetSensorAvailable(true)
	assert.Contains(t, scrape(t, m), "depthview_sensor_available 1")
	m.SetSensorAvailable(false)
	assert.Contains(t, scrape(t, m), "depthview_sensor_available 0")
}

func TestFuncMetrics(t *testing.T) {
	m := New()
	drops := uint64(7)
	require.NoError(t, m.CounterFunc("mailbox_drops_total", "Dropped notifications.", func() uint64 { return drops }))
	require.NoError(t, m.GaugeFunc("ws_clients", "Connected clients.", func() float64 { return 3 }))
	assert.Error(t, m.CounterFunc("mailbox_drops_total", "again", func() uint64 { return 0 }))

	text := scrape(t, m)
	assert.Contains(t, text, "depthview_mailbox_drops_total 7")
	assert.Contains(t, text, "depthview_ws_clients 3")
	assert.Contains(t, text, "go_goroutines")
}
