package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Set(New(&buf, "info", "json"))

	Info("snippet created", map[string]any{"owner": "alice"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "snippet created", entry["msg"])
	assert.Equal(t, "alice", entry["owner"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Set(New(&buf, "warn", "text"))

	Debug("hidden", nil)
	Info("hidden", nil)
	Warn("shown", map[string]any{"path": "/user"})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "path=/user")
}
