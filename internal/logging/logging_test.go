package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]hclog.Level{
		"debug":   hclog.Debug,
		"WARN":    hclog.Warn,
		" error ": hclog.Error,
		"":        hclog.Info,
		"loud":    hclog.Info,
	}
	for in, want := range cases {
		logger := New("depthview", Config{Level: in, Output: &bytes.Buffer{}})
		assert.Equal(t, want, logger.GetLevel(), "level %q", in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New("depthview", Config{Level: "info", JSON: true, Output: &buf})
	logger.Info("frame published", "seq", 3)
	logger.Debug("hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "frame published", line["@message"])
	assert.Equal(t, "depthview", line["@module"])
	assert.Equal(t, float64(3), line["seq"])
}
