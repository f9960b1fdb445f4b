package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tabctl/tabctl/internal/capture"
)

// NavCmd navigates a tab and waits for the load to settle.
type NavCmd struct {
	URL     string `arg:"" help:"URL to navigate to"`
	Target  string `short:"t" help:"Target id or list index (default: last active, else first page)"`
	Timeout string `help:"Navigation deadline (default from config)"`
}

func (c *NavCmd) Run(globals *Globals) error {
	deadline := globals.NavTimeout()
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fail(globals, fmt.Errorf("invalid timeout: %w", err))
		}
		deadline = d
	}

	// The outer context exceeds the event deadline so expiry surfaces as
	// the typed timeout, not a context error.
	ctx, cancel := context.WithTimeout(context.Background(), deadline+globals.CommandTimeout())
	defer cancel()

	b, err := openBridge(ctx, globals)
	if err != nil {
		return fail(globals, err)
	}
	defer b.close()

	sess, target, err := b.attach(ctx, c.Target)
	if err != nil {
		return fail(globals, err)
	}
	if err := sess.Ensure(ctx, "Page"); err != nil {
		return fail(globals, err)
	}

	// Page.frameStoppedLoading fires for same- and cross-origin
	// navigations alike; load-event variants do not survive a
	// cross-origin process swap. Subscribe before issuing the command or
	// a fast same-origin load can finish unobserved.
	const doneEvent = "Page.frameStoppedLoading"
	sub := sess.Subscribe(doneEvent)
	defer sub.Close()

	var nav struct {
		FrameID   string `json:"frameId"`
		ErrorText string `json:"errorText"`
	}
	params := map[string]any{"url": c.URL}
	if err := sess.Execute(ctx, "Page.navigate", params, &nav); err != nil {
		return fail(globals, err)
	}
	if nav.ErrorText != "" {
		return fail(globals, fmt.Errorf("navigation failed: %s", nav.ErrorText))
	}

	start := time.Now()
	for {
		ev, err := capture.WaitForEvent(ctx, globals.Clock, sub.C, doneEvent, deadline)
		if err != nil {
			return fail(globals, err)
		}
		// Subframes stop loading too; wait for the frame we navigated.
		if gjson.GetBytes(ev.Params, "frameId").String() == nav.FrameID {
			break
		}
		remaining := deadline - time.Since(start)
		if remaining <= 0 {
			return fail(globals, &capture.TimeoutError{Event: doneEvent, Deadline: deadline})
		}
		deadline = remaining
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("navigated", map[string]any{
			"id":  target.ID,
			"url": c.URL,
		})
	}
	fmt.Fprintf(globals.Stdout, "Navigated %s to %s\n", target.ID, c.URL)
	return nil
}
