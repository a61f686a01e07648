package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestInfoEmitsFieldMap(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: DebugLevel, Output: &buf})

	log.Info("schedule fired", map[string]interface{}{
		"schedule_id": "abc-123",
		"sent":        3,
	})

	entry := logLine(t, &buf)
	assert.Equal(t, "schedule fired", entry["message"])
	assert.Equal(t, "abc-123", entry["schedule_id"])
	assert.Equal(t, float64(3), entry["sent"])
}

func TestErrorEmitsErrAndFieldMap(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: DebugLevel, Output: &buf})

	log.Error(errors.New("boom"), "dispatch failed", map[string]interface{}{
		"recipient": "a@example.com",
	})

	entry := logLine(t, &buf)
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "a@example.com", entry["recipient"])
}

func TestInfoWithoutFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: DebugLevel, Output: &buf})

	log.Info("daily counters reset")

	entry := logLine(t, &buf)
	assert.Equal(t, "daily counters reset", entry["message"])
}

func TestInfoKeyValuePairs(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: DebugLevel, Output: &buf})

	log.Info("window run", "window", "Morning", "due", 2)

	entry := logLine(t, &buf)
	assert.Equal(t, "Morning", entry["window"])
	assert.Equal(t, float64(2), entry["due"])
}

func TestWithFieldsCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: DebugLevel, Output: &buf}).
		WithFields(map[string]interface{}{"worker": "trigger"})

	log.Info("started")

	entry := logLine(t, &buf)
	assert.Equal(t, "trigger", entry["worker"])
}
