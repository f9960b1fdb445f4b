package output

import (
	"encoding/json"
	"io"
	"sync"
)

// SchemaVersion is stamped on every NDJSON line.
const SchemaVersion = 1

// NDJSONWriter emits one JSON object per line so agents and scripts can
// consume output without scraping text.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewNDJSONWriter wraps w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w)}
}

// Write encodes v on its own line.
func (w *NDJSONWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

// WriteRecord emits a typed record with the common envelope fields merged
// in.
func (w *NDJSONWriter) WriteRecord(typ string, fields map[string]any) error {
	rec := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		rec[k] = v
	}
	rec["type"] = typ
	rec["schemaVersion"] = SchemaVersion
	return w.Write(rec)
}

// ErrorRecord is a machine-readable failure: stable category code plus a
// remediation hint naming the command that re-establishes the broken
// precondition.
type ErrorRecord struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Hint          string `json:"hint,omitempty"`
}

// WriteError emits an ErrorRecord.
func (w *NDJSONWriter) WriteError(code, message string, hint ...string) error {
	rec := ErrorRecord{
		Type:          "error",
		SchemaVersion: SchemaVersion,
		Code:          code,
		Message:       message,
	}
	if len(hint) > 0 {
		rec.Hint = hint[0]
	}
	return w.Write(rec)
}
