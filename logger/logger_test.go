package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredEvents(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf).WithFields(Fields{"component": "vehicle", "vehicle_id": "AT123"})

	log.Warn().Str("field", "price").Msg("Overwriting vehicle data")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "warn", event["level"])
	assert.Equal(t, "vehicle", event["component"])
	assert.Equal(t, "AT123", event["vehicle_id"])
	assert.Equal(t, "price", event["field"])
	assert.Equal(t, "Overwriting vehicle data", event["message"])
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	New(&buf).WithError(errors.New("disk full")).Error().Msg("save failed")
	assert.Contains(t, buf.String(), "disk full")
	assert.Contains(t, buf.String(), "save failed")
}

func TestComponentLoggers(t *testing.T) {
	var buf bytes.Buffer
	Default = New(&buf)
	defer func() { Default = nil }()

	ForMaterializer().Info().Msg("saved")
	assert.Contains(t, buf.String(), `"component":"materializer"`)

	buf.Reset()
	ForVehicle("AT9").Info().Msg("created")
	assert.Contains(t, buf.String(), `"vehicle_id":"AT9"`)

	buf.Reset()
	ForCrawler("listing").Info().Msg("page")
	assert.Contains(t, buf.String(), `"crawler":"listing"`)
}

func TestLogErrorTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Default = New(&buf)
	defer func() { Default = nil }()

	LogError("export", errors.New("disk full"), "write %s", "vehicles.csv")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "error", event["level"])
	assert.Equal(t, "export", event["component"])
	assert.Equal(t, "disk full", event["error"])
	assert.Equal(t, "write vehicles.csv", event["message"])
}
