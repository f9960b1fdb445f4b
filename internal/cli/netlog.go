package cli

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/tabctl/tabctl/internal/capture"
)

// NetCmd collects a burst of network activity until it goes idle. Network
// has no replay buffer and no terminal event, so this is the plain
// idle-drain strategy: whatever fires between enable and quiet is the
// result.
type NetCmd struct {
	Target string `short:"t" help:"Target id or list index"`
	Idle   string `help:"Stop after this quiet interval (default from config)"`
	Max    string `help:"Absolute collection ceiling (default from config)"`
}

func (c *NetCmd) Run(globals *Globals) error {
	idle, ceiling, err := drainWindow(globals, c.Idle, c.Max)
	if err != nil {
		return fail(globals, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ceiling+globals.CommandTimeout())
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

	sub := sess.Subscribe("Network.requestWillBeSent", "Network.responseReceived", "Network.loadingFailed")
	defer sub.Close()
	if err := sess.Ensure(ctx, "Network"); err != nil {
		return fail(globals, err)
	}

	events := capture.DrainIdle(ctx, globals.Clock, sub.C, idle, ceiling)

	em := globals.Emitter()
	count := 0
	for _, ev := range events {
		p := gjson.ParseBytes(ev.Params)
		var rec map[string]any
		switch ev.Method {
		case "Network.requestWillBeSent":
			rec = map[string]any{
				"event":      "request",
				"request_id": p.Get("requestId").String(),
				"method":     p.Get("request.method").String(),
				"url":        p.Get("request.url").String(),
			}
		case "Network.responseReceived":
			rec = map[string]any{
				"event":      "response",
				"request_id": p.Get("requestId").String(),
				"status":     p.Get("response.status").Int(),
				"mime":       p.Get("response.mimeType").String(),
				"url":        p.Get("response.url").String(),
			}
		case "Network.loadingFailed":
			rec = map[string]any{
				"event":      "failed",
				"request_id": p.Get("requestId").String(),
				"error":      p.Get("errorText").String(),
			}
		}
		count++
		if globals.NDJSON() {
			rec["target_id"] = target.ID
			if err := em.WriteRecord("net", rec); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(globals.Stdout, "%s %v\n", ev.Method, rec["url"])
		}
	}

	if globals.NDJSON() {
		return em.WriteRecord("net_done", map[string]any{
			"target_id": target.ID,
			"count":     count,
		})
	}
	fmt.Fprintf(globals.Stdout, "%d events\n", count)
	return nil
}
