package state

// Every field in these documents is optional. Absence means "no value" /
// "no override", never an error; that is the whole forward-compatibility
// mechanism. There is no schema version and no migration step.

// Connection records how the last `connect` reached the browser.
type Connection struct {
	WSEndpoint     string `json:"ws_endpoint,omitempty"`
	Host           string `json:"host,omitempty"`
	Port           int    `json:"port,omitempty"`
	Browser        string `json:"browser,omitempty"`
	BrowserPID     int    `json:"browser_pid,omitempty"`
	ActiveTargetID string `json:"active_target_id,omitempty"`
	ConnectedAt    string `json:"connected_at,omitempty"`
}

// Snapshot is the reference map of the last structural snapshot: short
// agent-facing ref ids to browser backend node ids, so a later invocation
// can act on an element the snapshot named.
type Snapshot struct {
	URL        string         `json:"url,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	CapturedAt string         `json:"captured_at,omitempty"`
	Refs       map[string]int `json:"refs,omitempty"`
}

// Emulation holds the active environment overrides, replayed into every
// new session. Pointer fields distinguish "not set" from zero values.
type Emulation struct {
	UserAgent *string `json:"user_agent,omitempty"`
	// OriginalUserAgent is the browser's own UA captured before the first
	// override, so reset can restore it.
	OriginalUserAgent *string `json:"original_user_agent,omitempty"`

	Viewport *Viewport `json:"viewport,omitempty"`

	Offline            *bool    `json:"offline,omitempty"`
	LatencyMs          *float64 `json:"latency_ms,omitempty"`
	DownloadThroughput *float64 `json:"download_throughput,omitempty"`
	UploadThroughput   *float64 `json:"upload_throughput,omitempty"`

	Geolocation *Geolocation `json:"geolocation,omitempty"`
	TimezoneID  *string      `json:"timezone_id,omitempty"`
	ColorScheme *string      `json:"color_scheme,omitempty"`
	CPURate     *float64     `json:"cpu_rate,omitempty"`
}

// Empty reports whether no override is set at all.
func (e *Emulation) Empty() bool {
	if e == nil {
		return true
	}
	return e.UserAgent == nil && e.Viewport == nil && e.Offline == nil &&
		e.LatencyMs == nil && e.DownloadThroughput == nil && e.UploadThroughput == nil &&
		e.Geolocation == nil && e.TimezoneID == nil && e.ColorScheme == nil && e.CPURate == nil
}

// Viewport is a device-metrics override.
type Viewport struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale,omitempty"`
	Mobile bool    `json:"mobile,omitempty"`
}

// Geolocation is a position override.
type Geolocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}
