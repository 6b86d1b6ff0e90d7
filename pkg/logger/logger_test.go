package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		lines = append(lines, line)
	}
	return lines
}

func TestContextFieldsAccumulate(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Level: zerolog.DebugLevel, Output: buf})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithFields(ctx, map[string]any{"batch_id": "batch-9", "orders": 3})
	log.Error(ctx, "batch.failed", errors.New("boom"))
	log.Info(context.Background(), "plain")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "api", lines[0]["service"])
	assert.Equal(t, "req-123", lines[0]["request_id"])
	assert.Equal(t, "batch-9", lines[0]["batch_id"])
	assert.EqualValues(t, 3, lines[0]["orders"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.NotEmpty(t, lines[0]["stack"])

	assert.NotContains(t, lines[1], "request_id")
}

func TestDerivedContextDoesNotLeakIntoParent(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "worker", Output: buf})

	parent := log.WithField(context.Background(), "order_id", "o-1")
	_ = log.WithPickListID(parent, "pl-1")
	log.Info(parent, "order.done")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "o-1", lines[0]["order_id"])
	assert.NotContains(t, lines[0], "pick_list_id")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, WarnStack: true}).Warn(context.Background(), "warny")
	assert.Contains(t, buf.String(), `"stack"`)

	buf.Reset()
	New(Options{Output: buf}).Warn(context.Background(), "warny")
	assert.NotContains(t, buf.String(), `"stack"`)
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Level: ParseLevel("info"), Output: buf}).Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())
}

func TestConsoleFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{ServiceName: "cron-worker", Format: "CONSOLE", Output: buf}).Info(context.Background(), "cron.tick")
	out := buf.String()
	assert.Contains(t, out, "cron.tick")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), out)
}

func TestParseLevelDefaults(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
}
