package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabctl/tabctl/internal/browser"
	"github.com/tabctl/tabctl/internal/capture"
	"github.com/tabctl/tabctl/internal/cdp"
	"github.com/tabctl/tabctl/internal/cdptest"
	"github.com/tabctl/tabctl/internal/config"
	"github.com/tabctl/tabctl/internal/reconcile"
	"github.com/tabctl/tabctl/internal/state"
)

func testGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	c := &CLI{Format: "ndjson", Host: "127.0.0.1"}
	g := NewGlobalsWithConfig(c, config.Default())
	var buf bytes.Buffer
	g.Stdout = &buf
	g.Stderr = &bytes.Buffer{}
	g.StateDir = t.TempDir()
	return g, &buf
}

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), "line: %s", line)
		out = append(out, rec)
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"no browser", &browser.NoBrowserError{Tried: []string{"127.0.0.1:9222"}}, "NO_BROWSER"},
		{"unreachable", &browser.UnreachableError{Where: "127.0.0.1:9333", Cause: errors.New("refused")}, "BROWSER_UNREACHABLE"},
		{"target not found", &browser.TargetNotFoundError{Selector: "T9"}, "TARGET_NOT_FOUND"},
		{"ref not found", &refNotFoundError{Ref: "e3"}, "REF_NOT_FOUND"},
		{"timeout", &capture.TimeoutError{Event: "Page.frameStoppedLoading", Deadline: time.Second}, "TIMEOUT"},
		{"activation", &reconcile.ActivationError{TargetID: "T1", Attempts: 5}, "ACTIVATION_UNVERIFIED"},
		{"connection closed", cdp.ErrConnClosed, "CONNECTION_CLOSED"},
		{"state corrupt", state.ErrCorrupt, "STATE_CORRUPT"},
		{"protocol", &cdp.ProtocolError{Code: -32000, Message: "boom"}, "PROTOCOL_ERROR"},
		{"anything else", errors.New("boom"), "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := classify(tt.err)
			assert.Equal(t, tt.code, code)
		})
	}

	t.Run("wrapped errors classify the same", func(t *testing.T) {
		wrapped := errors.Join(errors.New("outer"), &browser.TargetNotFoundError{Selector: "x"})
		code, hint := classify(wrapped)
		assert.Equal(t, "TARGET_NOT_FOUND", code)
		assert.Contains(t, hint, "tabctl targets")
	})
}

func TestFail(t *testing.T) {
	t.Run("ndjson error record", func(t *testing.T) {
		g, buf := testGlobals(t)
		err := fail(g, &browser.NoBrowserError{Tried: []string{"127.0.0.1:9222"}})
		require.Error(t, err)

		recs := decodeRecords(t, buf)
		require.Len(t, recs, 1)
		assert.Equal(t, "error", recs[0]["type"])
		assert.Equal(t, "NO_BROWSER", recs[0]["code"])
		assert.Contains(t, recs[0]["hint"], "tabctl connect")
	})

	t.Run("text goes to stderr", func(t *testing.T) {
		g, buf := testGlobals(t)
		g.Format = "text"
		stderr := g.Stderr.(*bytes.Buffer)

		fail(g, &refNotFoundError{Ref: "e3"})
		assert.Empty(t, buf.String())
		assert.Contains(t, stderr.String(), "Error [REF_NOT_FOUND]")
		assert.Contains(t, stderr.String(), "tabctl snapshot")
	})
}

func TestGlobalsNDJSON(t *testing.T) {
	g, _ := testGlobals(t)

	g.Format = "ndjson"
	assert.True(t, g.NDJSON())
	g.Format = "text"
	assert.False(t, g.NDJSON())
	// Auto with a non-terminal writer is machine-readable.
	g.Format = "auto"
	assert.True(t, g.NDJSON())
}

func TestGlobalsDurations(t *testing.T) {
	g, _ := testGlobals(t)

	assert.Equal(t, 10*time.Second, g.CommandTimeout())
	assert.Equal(t, 30*time.Second, g.NavTimeout())
	assert.Equal(t, 500*time.Millisecond, g.IdleInterval())

	g.Config.Defaults.Timeout = "3s"
	assert.Equal(t, 3*time.Second, g.CommandTimeout())

	// Garbage in the config falls back rather than breaking the command.
	g.Config.Defaults.Timeout = "not-a-duration"
	assert.Equal(t, 10*time.Second, g.CommandTimeout())
	g.Config.Defaults.DrainCeiling = "-5s"
	assert.Equal(t, 10*time.Second, g.DrainCeiling())
}

func TestDrainWindow(t *testing.T) {
	g, _ := testGlobals(t)

	t.Run("config defaults", func(t *testing.T) {
		idle, ceiling, err := drainWindow(g, "", "")
		require.NoError(t, err)
		assert.Equal(t, 500*time.Millisecond, idle)
		assert.Equal(t, 10*time.Second, ceiling)
	})

	t.Run("flags override", func(t *testing.T) {
		idle, ceiling, err := drainWindow(g, "1s", "30s")
		require.NoError(t, err)
		assert.Equal(t, time.Second, idle)
		assert.Equal(t, 30*time.Second, ceiling)
	})

	t.Run("bad flag is an error", func(t *testing.T) {
		_, _, err := drainWindow(g, "soon", "")
		require.Error(t, err)
	})
}

func TestDecodeRuntimeEvent(t *testing.T) {
	t.Run("console call joins argument values", func(t *testing.T) {
		ev := cdp.Event{
			Method: "Runtime.consoleAPICalled",
			Params: json.RawMessage(`{
				"type": "warning",
				"args": [
					{"type": "string", "value": "retrying"},
					{"type": "number", "value": 3},
					{"type": "object", "description": "Response"}
				],
				"timestamp": 1724900000000
			}`),
		}
		e := decodeRuntimeEvent(ev)
		assert.Equal(t, "warning", e.level)
		assert.Equal(t, "console", e.source)
		assert.Equal(t, "retrying 3 Response", e.text)
		assert.Equal(t, 1724900000000.0, e.ts)
	})

	t.Run("exception uses description", func(t *testing.T) {
		ev := cdp.Event{
			Method: "Runtime.exceptionThrown",
			Params: json.RawMessage(`{
				"timestamp": 1,
				"exceptionDetails": {
					"text": "Uncaught",
					"exception": {"description": "TypeError: x is undefined"}
				}
			}`),
		}
		e := decodeRuntimeEvent(ev)
		assert.Equal(t, "error", e.level)
		assert.Equal(t, "exception", e.source)
		assert.Equal(t, "TypeError: x is undefined", e.text)
	})

	t.Run("exception falls back to summary text", func(t *testing.T) {
		ev := cdp.Event{
			Method: "Runtime.exceptionThrown",
			Params: json.RawMessage(`{"exceptionDetails": {"text": "Uncaught (in promise)"}}`),
		}
		e := decodeRuntimeEvent(ev)
		assert.Equal(t, "Uncaught (in promise)", e.text)
	})
}

func TestDecodeLogEvent(t *testing.T) {
	ev := cdp.Event{
		Method: "Log.entryAdded",
		Params: json.RawMessage(`{
			"entry": {
				"source": "network",
				"level": "error",
				"text": "Failed to load resource: 404",
				"timestamp": 1724900000001
			}
		}`),
	}
	e := decodeLogEvent(ev)
	assert.Equal(t, "error", e.level)
	assert.Equal(t, "network", e.source)
	assert.Equal(t, "Failed to load resource: 404", e.text)
}

func TestConnectCommand(t *testing.T) {
	srv := cdptest.NewServer(t)
	g, buf := testGlobals(t)
	g.Endpoint = srv.WSURL()

	require.NoError(t, (&ConnectCmd{}).Run(g))

	recs := decodeRecords(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "connected", recs[0]["type"])
	assert.Equal(t, "FakeBrowser/1.0", recs[0]["browser"])
	assert.Equal(t, srv.WSURL(), recs[0]["ws_endpoint"])

	// The record a later invocation resolves through is on disk.
	store, err := state.Open(g.StateDir)
	require.NoError(t, err)
	conn, err := store.LoadConnection()
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, srv.WSURL(), conn.WSEndpoint)
	assert.Equal(t, "FakeBrowser/1.0", conn.Browser)
	assert.NotEmpty(t, conn.ConnectedAt)
	assert.Equal(t, 1, srv.Calls("Browser.getVersion"))
}

func TestDisconnectCommand(t *testing.T) {
	g, buf := testGlobals(t)

	store, err := state.Open(g.StateDir)
	require.NoError(t, err)
	require.NoError(t, store.SaveConnection(&state.Connection{Host: "127.0.0.1", Port: 9222}))

	require.NoError(t, (&DisconnectCmd{}).Run(g))

	conn, err := store.LoadConnection()
	require.NoError(t, err)
	assert.Nil(t, conn)

	recs := decodeRecords(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "disconnected", recs[0]["type"])
}

func TestTargetsCommand(t *testing.T) {
	srv := cdptest.NewServer(t)
	srv.SetTargets(
		cdptest.TargetStub{ID: "T1", Type: "page", Title: "Docs", URL: "https://example.com/docs"},
		cdptest.TargetStub{ID: "T2", Type: "service_worker", URL: "https://example.com/sw.js"},
		cdptest.TargetStub{ID: "T3", Type: "page", Title: "App", URL: "https://example.com/app"},
	)

	t.Run("pages only by default", func(t *testing.T) {
		g, buf := testGlobals(t)
		g.Endpoint = srv.WSURL()

		require.NoError(t, (&TargetsCmd{}).Run(g))
		recs := decodeRecords(t, buf)
		require.Len(t, recs, 2)
		assert.Equal(t, "T1", recs[0]["id"])
		assert.Equal(t, "T3", recs[1]["id"])
		// Index is the position in the full listing, usable as a selector.
		assert.Equal(t, float64(2), recs[1]["index"])
	})

	t.Run("all includes workers", func(t *testing.T) {
		g, buf := testGlobals(t)
		g.Endpoint = srv.WSURL()

		require.NoError(t, (&TargetsCmd{All: true}).Run(g))
		assert.Len(t, decodeRecords(t, buf), 3)
	})
}

func TestOpenCommand(t *testing.T) {
	srv := cdptest.NewServer(t)
	srv.Handle("Target.createTarget", func(conn *cdptest.Conn, req cdptest.Request) (any, string) {
		return map[string]any{"targetId": "T-new"}, ""
	})

	g, buf := testGlobals(t)
	g.Endpoint = srv.WSURL()

	require.NoError(t, (&OpenCmd{URL: "https://example.com"}).Run(g))

	recs := decodeRecords(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "opened", recs[0]["type"])
	assert.Equal(t, "T-new", recs[0]["id"])

	// The new tab becomes the remembered active target.
	store, err := state.Open(g.StateDir)
	require.NoError(t, err)
	conn, err := store.LoadConnection()
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "T-new", conn.ActiveTargetID)
}

func TestConsoleCommandRecoversBacklog(t *testing.T) {
	srv := cdptest.NewServer(t)
	srv.SetTargets(cdptest.TargetStub{ID: "T1", Type: "page", Title: "App", URL: "https://example.com"})
	srv.BufferReplay("Runtime", "Runtime.consoleAPICalled", map[string]any{
		"type":      "log",
		"args":      []map[string]any{{"type": "string", "value": "app booted"}},
		"timestamp": 1.0,
	})
	srv.BufferReplay("Log", "Log.entryAdded", map[string]any{
		"entry": map[string]any{
			"source": "network", "level": "error",
			"text": "Failed to load resource: 404", "timestamp": 2.0,
		},
	})

	g, buf := testGlobals(t)
	g.Endpoint = srv.WSURL()

	cmd := &ConsoleCmd{Idle: "100ms", Max: "2s"}
	require.NoError(t, cmd.Run(g))

	recs := decodeRecords(t, buf)
	require.Len(t, recs, 3)
	assert.Equal(t, "console", recs[0]["type"])
	assert.Equal(t, "app booted", recs[0]["text"])
	assert.Equal(t, "Failed to load resource: 404", recs[1]["text"])
	assert.Equal(t, "console_done", recs[2]["type"])
	assert.Equal(t, float64(2), recs[2]["count"])
}

func TestConsoleCommandWhere(t *testing.T) {
	srv := cdptest.NewServer(t)
	srv.SetTargets(cdptest.TargetStub{ID: "T1", Type: "page", URL: "https://example.com"})
	for _, msg := range []string{"tick", "tick", "boom"} {
		level := "log"
		if msg == "boom" {
			level = "error"
		}
		srv.BufferReplay("Runtime", "Runtime.consoleAPICalled", map[string]any{
			"type": level,
			"args": []map[string]any{{"type": "string", "value": msg}},
		})
	}

	g, buf := testGlobals(t)
	g.Endpoint = srv.WSURL()

	cmd := &ConsoleCmd{Idle: "100ms", Max: "2s", Where: []string{"level=error"}}
	require.NoError(t, cmd.Run(g))

	recs := decodeRecords(t, buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "boom", recs[0]["text"])
	assert.Equal(t, float64(1), recs[1]["count"])
}

func TestActivateCommand(t *testing.T) {
	srv := cdptest.NewServer(t)
	srv.SetTargets(cdptest.TargetStub{ID: "T1", Type: "page", Title: "App", URL: "https://example.com"})
	srv.Handle("Runtime.evaluate", func(conn *cdptest.Conn, req cdptest.Request) (any, string) {
		return map[string]any{"result": map[string]any{"type": "string", "value": "visible"}}, ""
	})

	g, buf := testGlobals(t)
	g.Endpoint = srv.WSURL()

	require.NoError(t, (&ActivateCmd{Target: "T1"}).Run(g))

	recs := decodeRecords(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "activated", recs[0]["type"])
	assert.Equal(t, "T1", recs[0]["id"])
	assert.Equal(t, 1, srv.Calls("Target.activateTarget"))

	store, err := state.Open(g.StateDir)
	require.NoError(t, err)
	conn, err := store.LoadConnection()
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "T1", conn.ActiveTargetID)
}

func TestCorruptStateSurfacesInCommands(t *testing.T) {
	srv := cdptest.NewServer(t)
	g, buf := testGlobals(t)
	g.Endpoint = srv.WSURL()

	store, err := state.Open(g.StateDir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "connection.json"), []byte("{broken"), 0o600))

	err = (&ConnectCmd{}).Run(g)
	require.Error(t, err)

	recs := decodeRecords(t, buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "STATE_CORRUPT", recs[0]["code"])
}

func TestAttachRepliesEmulation(t *testing.T) {
	srv := cdptest.NewServer(t)
	srv.SetTargets(cdptest.TargetStub{ID: "T1", Type: "page", URL: "https://example.com"})

	g, _ := testGlobals(t)
	g.Endpoint = srv.WSURL()

	store, err := state.Open(g.StateDir)
	require.NoError(t, err)
	tz := "Asia/Tokyo"
	require.NoError(t, store.SaveEmulation(&state.Emulation{TimezoneID: &tz}))

	ctx := context.Background()
	b, err := openBridge(ctx, g)
	require.NoError(t, err)
	defer b.close()

	_, target, err := b.attach(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "T1", target.ID)
	assert.Equal(t, 1, srv.Calls("Emulation.setTimezoneOverride"))
}
