package reconcile

import (
	"context"

	"github.com/tabctl/tabctl/internal/state"
)

// Reset undoes whichever overrides the document says are active. Only the
// set fields are touched, mirroring Apply: a reset against an older
// document clears exactly what that document set.
func Reset(ctx context.Context, sess Session, em *state.Emulation) error {
	if em.Empty() {
		return nil
	}

	if em.UserAgent != nil {
		ua := ""
		if em.OriginalUserAgent != nil {
			ua = *em.OriginalUserAgent
		}
		params := map[string]any{"userAgent": ua}
		if err := sess.Execute(ctx, "Emulation.setUserAgentOverride", params, nil); err != nil {
			return err
		}
	}

	if em.Viewport != nil {
		if err := sess.Execute(ctx, "Emulation.clearDeviceMetricsOverride", nil, nil); err != nil {
			return err
		}
	}

	if em.Offline != nil || em.LatencyMs != nil || em.DownloadThroughput != nil || em.UploadThroughput != nil {
		if err := sess.Ensure(ctx, "Network"); err != nil {
			return err
		}
		params := map[string]any{
			"offline":            false,
			"latency":            0,
			"downloadThroughput": -1,
			"uploadThroughput":   -1,
		}
		if err := sess.Execute(ctx, "Network.emulateNetworkConditions", params, nil); err != nil {
			return err
		}
	}

	if em.Geolocation != nil {
		if err := sess.Execute(ctx, "Emulation.clearGeolocationOverride", nil, nil); err != nil {
			return err
		}
	}

	if em.TimezoneID != nil {
		params := map[string]any{"timezoneId": ""}
		if err := sess.Execute(ctx, "Emulation.setTimezoneOverride", params, nil); err != nil {
			return err
		}
	}

	if em.ColorScheme != nil {
		params := map[string]any{"features": []map[string]any{}}
		if err := sess.Execute(ctx, "Emulation.setEmulatedMedia", params, nil); err != nil {
			return err
		}
	}

	if em.CPURate != nil {
		params := map[string]any{"rate": 1}
		if err := sess.Execute(ctx, "Emulation.setCPUThrottlingRate", params, nil); err != nil {
			return err
		}
	}

	return nil
}
