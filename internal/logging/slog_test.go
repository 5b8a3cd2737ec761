package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLoggerWritesStructuredLines(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf)
	ctx := context.Background()

	log.Info(ctx, "hello", "pid", "fcze8-4vx33")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "fcze8-4vx33", line["pid"])
	assert.Equal(t, "INFO", line["level"])
}

func TestWithAddsPersistentAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf).With("data_model", "rdm")
	ctx := context.Background()

	log.Warn(ctx, "draft already open")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "rdm", line["data_model"])
	assert.Equal(t, "WARN", line["level"])
}
