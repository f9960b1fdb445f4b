package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultPort is the conventional remote-debugging port.
const DefaultPort = 9222

// Target is one automatable unit the browser exposes on its discovery
// endpoint. Targets are owned by the browser; this tool only enumerates
// them.
type Target struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// VersionInfo is the /json/version metadata reply.
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Version fetches /json/version within the probe timeout. A TCP listener
// that answers with anything other than well-formed version metadata is
// not a browser, so this doubles as the liveness check.
func Version(ctx context.Context, host string, port int, timeout time.Duration) (*VersionInfo, error) {
	var info VersionInfo
	if err := getJSON(ctx, host, port, "/json/version", timeout, &info); err != nil {
		return nil, err
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, fmt.Errorf("http://%s:%d/json/version: no webSocketDebuggerUrl in response", host, port)
	}
	return &info, nil
}

// ListTargets fetches /json/list. The ordering of the result is whatever
// the browser felt like; it does not reflect which tab is active.
func ListTargets(ctx context.Context, host string, port int, timeout time.Duration) ([]Target, error) {
	var targets []Target
	if err := getJSON(ctx, host, port, "/json/list", timeout, &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

func getJSON(ctx context.Context, host string, port int, path string, timeout time.Duration, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	url := fmt.Sprintf("http://%s:%d%s", host, port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: %w", url, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: malformed response: %w", url, err)
	}
	return nil
}
