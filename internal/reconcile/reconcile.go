// Package reconcile re-applies persisted cross-invocation state to the
// fresh sessions each invocation creates. The browser remembers overrides
// only per connection, and connections never outlive the process, so every
// new session starts bare until the persisted documents are replayed into
// it.
package reconcile

import (
	"context"

	"github.com/tabctl/tabctl/internal/state"
)

// Executor issues one protocol command. Both cdp.Client (browser scope)
// and cdp.Session (target scope) satisfy it.
type Executor interface {
	Execute(ctx context.Context, method string, params, out any) error
}

// Session is the slice of a protocol session reconciliation needs.
type Session interface {
	Executor
	Ensure(ctx context.Context, domain string) error
}

// Apply replays the persisted emulation overrides into a new session. Only
// fields present in the document are touched: a document written by an
// older schema simply applies fewer overrides. A nil or empty document is
// a no-op.
func Apply(ctx context.Context, sess Session, em *state.Emulation) error {
	if em.Empty() {
		return nil
	}

	if em.UserAgent != nil {
		params := map[string]any{"userAgent": *em.UserAgent}
		if err := sess.Execute(ctx, "Emulation.setUserAgentOverride", params, nil); err != nil {
			return err
		}
	}

	if v := em.Viewport; v != nil {
		scale := v.Scale
		if scale == 0 {
			scale = 1
		}
		params := map[string]any{
			"width":             v.Width,
			"height":            v.Height,
			"deviceScaleFactor": scale,
			"mobile":            v.Mobile,
		}
		if err := sess.Execute(ctx, "Emulation.setDeviceMetricsOverride", params, nil); err != nil {
			return err
		}
	}

	if em.Offline != nil || em.LatencyMs != nil || em.DownloadThroughput != nil || em.UploadThroughput != nil {
		if err := sess.Ensure(ctx, "Network"); err != nil {
			return err
		}
		params := map[string]any{
			"offline":            em.Offline != nil && *em.Offline,
			"latency":            deref(em.LatencyMs, 0),
			"downloadThroughput": deref(em.DownloadThroughput, -1),
			"uploadThroughput":   deref(em.UploadThroughput, -1),
		}
		if err := sess.Execute(ctx, "Network.emulateNetworkConditions", params, nil); err != nil {
			return err
		}
	}

	if g := em.Geolocation; g != nil {
		params := map[string]any{
			"latitude":  g.Latitude,
			"longitude": g.Longitude,
			"accuracy":  g.Accuracy,
		}
		if err := sess.Execute(ctx, "Emulation.setGeolocationOverride", params, nil); err != nil {
			return err
		}
	}

	if em.TimezoneID != nil {
		params := map[string]any{"timezoneId": *em.TimezoneID}
		if err := sess.Execute(ctx, "Emulation.setTimezoneOverride", params, nil); err != nil {
			return err
		}
	}

	if em.ColorScheme != nil {
		params := map[string]any{
			"features": []map[string]any{
				{"name": "prefers-color-scheme", "value": *em.ColorScheme},
			},
		}
		if err := sess.Execute(ctx, "Emulation.setEmulatedMedia", params, nil); err != nil {
			return err
		}
	}

	if em.CPURate != nil {
		params := map[string]any{"rate": *em.CPURate}
		if err := sess.Execute(ctx, "Emulation.setCPUThrottlingRate", params, nil); err != nil {
			return err
		}
	}

	return nil
}

func deref(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}
