package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "line: %s", line)
		out = append(out, rec)
	}
	return out
}

func TestWriteRecord(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)

	require.NoError(t, w.WriteRecord("target", map[string]any{
		"id":    "T1",
		"title": "Example",
		"url":   "https://example.com",
	}))
	require.NoError(t, w.WriteRecord("targets_done", map[string]any{"count": 1}))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "target", lines[0]["type"])
	assert.Equal(t, float64(SchemaVersion), lines[0]["schemaVersion"])
	assert.Equal(t, "T1", lines[0]["id"])

	assert.Equal(t, "targets_done", lines[1]["type"])
	assert.Equal(t, float64(1), lines[1]["count"])
}

func TestWriteRecordDoesNotMutateFields(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)

	fields := map[string]any{"id": "T1"}
	require.NoError(t, w.WriteRecord("target", fields))
	assert.NotContains(t, fields, "type")
	assert.NotContains(t, fields, "schemaVersion")
}

func TestWriteError(t *testing.T) {
	t.Run("with hint", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewNDJSONWriter(&buf)
		require.NoError(t, w.WriteError("NO_BROWSER", "no debuggable browser found", "start the browser with remote debugging and run `tabctl connect`"))

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "error", lines[0]["type"])
		assert.Equal(t, "NO_BROWSER", lines[0]["code"])
		assert.Contains(t, lines[0]["hint"], "tabctl connect")
	})

	t.Run("without hint", func(t *testing.T) {
		var buf bytes.Buffer
		w := NewNDJSONWriter(&buf)
		require.NoError(t, w.WriteError("PROTOCOL_ERROR", "boom"))

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		_, present := lines[0]["hint"]
		assert.False(t, present)
	})
}

func TestWriteIsOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Write(map[string]any{"i": i}))
	}
	raw := strings.TrimSuffix(buf.String(), "\n")
	assert.Len(t, strings.Split(raw, "\n"), 3)
	assert.NotContains(t, raw, "\n\n")
}
