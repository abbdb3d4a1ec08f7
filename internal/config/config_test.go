package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depthview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
sensor:
  source: simulator
  width: 320
  height: 240
  policy: full-range
  status_interval: 5s
log:
  level: debug
`), 0o644))

	t.Setenv("DEPTHVIEW_TEST_SENSOR__OVERLAP", "drop")
	t.Setenv("DEPTHVIEW_TEST_SIMULATOR__RATE", "15")
	t.Setenv("DEPTHVIEW_TEST_MQTT__BROKER", "tcp://broker:1883")

	cfg, err := Load(path, "DEPTHVIEW_TEST_")
	require.NoError(t, err)

	want := Default()
	want.Server.Addr = ":9090"
	want.Sensor.Source = SourceSimulator
	want.Sensor.Width = 320
	want.Sensor.Height = 240
	want.Sensor.Policy = "full-range"
	want.Sensor.StatusInterval = 5 * time.Second
	want.Sensor.Overlap = "drop"
	want.Simulator.Rate = 15
	want.MQTT.Broker = "tcp://broker:1883"
	want.Log.Level = "debug"

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoaderSetOverridesEnv(t *testing.T) {
	t.Setenv("DEPTHVIEW_SET_SERVER__ADDR", ":7000")
	l := NewLoader("DEPTHVIEW_SET_")
	require.NoError(t, l.LoadEnv())
	require.NoError(t, l.Set("server.addr", ":7001"))

	cfg, err := l.Config()
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Server.Addr)
	assert.Equal(t, 512, cfg.Sensor.Width)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "DEPTHVIEW_NONE_")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"geometry", func(c *AppConfig) { c.Sensor.Width = 0 }},
		{"policy", func(c *AppConfig) { c.Sensor.Policy = "nearest" }},
		{"overlap", func(c *AppConfig) { c.Sensor.Overlap = "queue" }},
		{"source", func(c *AppConfig) { c.Sensor.Source = "usb" }},
		{"endpoint", func(c *AppConfig) { c.Ingest.Endpoint = "" }},
		{"replay path", func(c *AppConfig) { c.Sensor.Source = SourceReplay }},
		{"simulator rate", func(c *AppConfig) { c.Sensor.Source = SourceSimulator; c.Simulator.Rate = 0 }},
		{"ui rate", func(c *AppConfig) { c.Server.UIRate = 0 }},
		{"qos", func(c *AppConfig) { c.MQTT.QoS = 3 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
