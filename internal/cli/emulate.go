package cli

import (
	"context"
	"fmt"

	"github.com/tabctl/tabctl/internal/reconcile"
	"github.com/tabctl/tabctl/internal/state"
)

// EmulateCmd manages the environment overrides that are replayed into
// every new session until reset.
type EmulateCmd struct {
	Set   EmulateSetCmd   `cmd:"" help:"Set overrides (merged with existing ones)"`
	Show  EmulateShowCmd  `cmd:"" help:"Show the persisted overrides"`
	Reset EmulateResetCmd `cmd:"" help:"Clear all overrides and restore browser defaults"`
}

// EmulateSetCmd merges the given overrides into the persisted document and
// applies the combined result to the current session. Fields not given are
// left alone.
type EmulateSetCmd struct {
	Target string `short:"t" help:"Target id or list index"`

	UserAgent *string `help:"User agent override"`

	Width  *int     `help:"Viewport width"`
	Height *int     `help:"Viewport height"`
	Scale  *float64 `help:"Device scale factor"`
	Mobile *bool    `help:"Emulate a mobile device"`

	Offline  *bool    `help:"Emulate being offline"`
	Latency  *float64 `help:"Added round-trip latency in ms"`
	Download *float64 `help:"Download throughput in bytes/s"`
	Upload   *float64 `help:"Upload throughput in bytes/s"`

	Lat      *float64 `help:"Geolocation latitude"`
	Long     *float64 `help:"Geolocation longitude"`
	Accuracy *float64 `help:"Geolocation accuracy in meters"`

	Timezone    *string  `help:"Timezone id, e.g. Europe/Berlin"`
	ColorScheme *string  `help:"prefers-color-scheme value" enum:"light,dark"`
	CPURate     *float64 `name:"cpu-rate" help:"CPU slowdown multiplier"`
}

func (c *EmulateSetCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), globals.CommandTimeout())
	defer cancel()

	b, err := openBridge(ctx, globals)
	if err != nil {
		return fail(globals, err)
	}
	defer b.close()

	sess, _, err := b.attach(ctx, c.Target)
	if err != nil {
		return fail(globals, err)
	}

	em, err := b.store.LoadEmulation()
	if err != nil {
		return fail(globals, err)
	}
	if em == nil {
		em = &state.Emulation{}
	}

	if c.UserAgent != nil && em.OriginalUserAgent == nil {
		// Capture the browser's own UA once, so reset can put it back.
		var version struct {
			UserAgent string `json:"userAgent"`
		}
		if err := b.client.Execute(ctx, "Browser.getVersion", nil, &version); err != nil {
			return fail(globals, err)
		}
		em.OriginalUserAgent = &version.UserAgent
	}

	c.merge(em)

	if err := reconcile.Apply(ctx, sess, em); err != nil {
		return fail(globals, err)
	}
	if err := b.store.SaveEmulation(em); err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("emulation", map[string]any{"state": em})
	}
	fmt.Fprintln(globals.Stdout, "Emulation overrides applied")
	return nil
}

func (c *EmulateSetCmd) merge(em *state.Emulation) {
	if c.UserAgent != nil {
		em.UserAgent = c.UserAgent
	}
	if c.Width != nil || c.Height != nil {
		v := em.Viewport
		if v == nil {
			v = &state.Viewport{}
		}
		if c.Width != nil {
			v.Width = *c.Width
		}
		if c.Height != nil {
			v.Height = *c.Height
		}
		if c.Scale != nil {
			v.Scale = *c.Scale
		}
		if c.Mobile != nil {
			v.Mobile = *c.Mobile
		}
		em.Viewport = v
	}
	if c.Offline != nil {
		em.Offline = c.Offline
	}
	if c.Latency != nil {
		em.LatencyMs = c.Latency
	}
	if c.Download != nil {
		em.DownloadThroughput = c.Download
	}
	if c.Upload != nil {
		em.UploadThroughput = c.Upload
	}
	if c.Lat != nil && c.Long != nil {
		g := &state.Geolocation{Latitude: *c.Lat, Longitude: *c.Long}
		if c.Accuracy != nil {
			g.Accuracy = *c.Accuracy
		}
		em.Geolocation = g
	}
	if c.Timezone != nil {
		em.TimezoneID = c.Timezone
	}
	if c.ColorScheme != nil {
		em.ColorScheme = c.ColorScheme
	}
	if c.CPURate != nil {
		em.CPURate = c.CPURate
	}
}

// EmulateShowCmd prints the persisted overrides without touching the
// browser.
type EmulateShowCmd struct{}

func (c *EmulateShowCmd) Run(globals *Globals) error {
	store, err := openStore(globals)
	if err != nil {
		return fail(globals, err)
	}
	em, err := store.LoadEmulation()
	if err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("emulation", map[string]any{"state": em})
	}
	if em.Empty() {
		fmt.Fprintln(globals.Stdout, "No emulation overrides set")
		return nil
	}
	if em.UserAgent != nil {
		fmt.Fprintf(globals.Stdout, "user-agent: %s\n", *em.UserAgent)
	}
	if em.Viewport != nil {
		fmt.Fprintf(globals.Stdout, "viewport: %dx%d\n", em.Viewport.Width, em.Viewport.Height)
	}
	if em.Offline != nil {
		fmt.Fprintf(globals.Stdout, "offline: %v\n", *em.Offline)
	}
	if em.TimezoneID != nil {
		fmt.Fprintf(globals.Stdout, "timezone: %s\n", *em.TimezoneID)
	}
	if em.ColorScheme != nil {
		fmt.Fprintf(globals.Stdout, "color-scheme: %s\n", *em.ColorScheme)
	}
	return nil
}

// EmulateResetCmd restores browser defaults in the live session and
// deletes the persisted document.
type EmulateResetCmd struct {
	Target string `short:"t" help:"Target id or list index"`
}

func (c *EmulateResetCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), globals.CommandTimeout())
	defer cancel()

	b, err := openBridge(ctx, globals)
	if err != nil {
		return fail(globals, err)
	}
	defer b.close()

	sess, _, err := b.attach(ctx, c.Target)
	if err != nil {
		return fail(globals, err)
	}

	em, err := b.store.LoadEmulation()
	if err != nil {
		return fail(globals, err)
	}
	if err := reconcile.Reset(ctx, sess, em); err != nil {
		return fail(globals, err)
	}
	if err := b.store.DeleteEmulation(); err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("emulation_reset", nil)
	}
	fmt.Fprintln(globals.Stdout, "Emulation overrides cleared")
	return nil
}
