package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()
	require.NotNil(t, registry)
	require.NotNil(t, registry.PrometheusRegistry())
	require.NotNil(t, registry.CoreMetrics())
}

func TestRegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter_total",
		Help: "test counter",
	})

	require.NoError(t, registry.RegisterCounter("ingest", "test_counter", counter))

	// Same key again is rejected
	err := registry.RegisterCounter("ingest", "test_counter", counter)
	require.Error(t, err)
}

func TestRegisterDifferentComponentsSameName(t *testing.T) {
	registry := NewMetricsRegistry()

	c1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_ops_total", Help: "ops"})
	c2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "notify_ops_total", Help: "ops"})

	require.NoError(t, registry.RegisterCounter("ingest", "ops", c1))
	require.NoError(t, registry.RegisterCounter("notify", "ops", c2))
}

func TestUnregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "test gauge",
	})

	require.NoError(t, registry.RegisterGauge("ingest", "test_gauge", gauge))
	assert.True(t, registry.Unregister("ingest", "test_gauge"))
	assert.False(t, registry.Unregister("ingest", "test_gauge"), "second unregister finds nothing")

	// Re-registration after unregister succeeds
	require.NoError(t, registry.RegisterGauge("ingest", "test_gauge", gauge))
}

func TestCoreMetricsRecorders(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	// Recorders must not panic and must be wired to registered collectors
	m.RecordComponentStatus("ingest", 2)
	m.RecordMessageReceived("ingest", "measurement")
	m.RecordReadingProcessed("ingest", "accepted")
	m.RecordReadingDropped("ingest", "malformed_payload")
	m.RecordError("ingest", "store")
	m.RecordMQTTStatus(true)
	m.RecordNATSStatus(false)

	m.SessionsCompleted.Inc()
	m.NotificationsPublished.Inc()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["spectrad_readings_processed_total"])
	assert.True(t, names["spectrad_sessions_completed_total"])
	assert.True(t, names["spectrad_notify_published_total"])
	assert.True(t, names["spectrad_mqtt_connected"])
}

func TestServerAddress(t *testing.T) {
	registry := NewMetricsRegistry()

	server := NewServer(0, "", registry)
	assert.Equal(t, "http://localhost:9090/metrics", server.Address())

	server = NewServer(9191, "/m", registry)
	assert.Equal(t, "http://localhost:9191/m", server.Address())
}
