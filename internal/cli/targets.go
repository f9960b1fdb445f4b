package cli

import (
	"context"
	"fmt"

	"github.com/olekukonko/tablewriter"

	"github.com/tabctl/tabctl/internal/browser"
	"github.com/tabctl/tabctl/internal/reconcile"
)

// TargetsCmd lists the browser's targets. The listing order is the
// browser's own and says nothing about which tab is front-most.
type TargetsCmd struct {
	All bool `help:"Include non-page targets (workers, extensions)"`
}

func (c *TargetsCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), globals.CommandTimeout())
	defer cancel()

	b, err := openBridge(ctx, globals)
	if err != nil {
		return fail(globals, err)
	}
	defer b.close()

	targets, err := b.targets(ctx)
	if err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		em := globals.Emitter()
		for i, t := range targets {
			if !c.All && t.Type != "page" {
				continue
			}
			if err := em.WriteRecord("target", map[string]any{
				"index": i,
				"id":    t.ID,
				"kind":  t.Type,
				"title": t.Title,
				"url":   t.URL,
			}); err != nil {
				return err
			}
		}
		return nil
	}

	table := tablewriter.NewWriter(globals.Stdout)
	table.Header("#", "ID", "Type", "Title", "URL")
	for i, t := range targets {
		if !c.All && t.Type != "page" {
			continue
		}
		table.Append(fmt.Sprintf("%d", i), t.ID, t.Type, t.Title, t.URL)
	}
	return table.Render()
}

// ActivateCmd raises a target and does not report success until the target
// itself corroborates the change.
type ActivateCmd struct {
	Target string `arg:"" optional:"" help:"Target id or list index"`
}

func (c *ActivateCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), globals.CommandTimeout())
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

	opts := reconcile.ActivateOptions{
		Retries:  globals.Config.Defaults.ActivateRetries,
		Interval: globals.ActivateInterval(),
	}
	if err := reconcile.Activate(ctx, globals.Clock, b.client, sess, target.ID, opts); err != nil {
		return fail(globals, err)
	}
	if err := b.rememberActiveTarget(target.ID); err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("activated", map[string]any{
			"id":    target.ID,
			"title": target.Title,
			"url":   target.URL,
		})
	}
	fmt.Fprintf(globals.Stdout, "Activated %s (%s)\n", target.ID, target.URL)
	return nil
}

// OpenCmd opens a new tab.
type OpenCmd struct {
	URL string `arg:"" help:"URL to open"`
}

func (c *OpenCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), globals.CommandTimeout())
	defer cancel()

	b, err := openBridge(ctx, globals)
	if err != nil {
		return fail(globals, err)
	}
	defer b.close()

	var res struct {
		TargetID string `json:"targetId"`
	}
	params := map[string]any{"url": c.URL}
	if err := b.client.Execute(ctx, "Target.createTarget", params, &res); err != nil {
		return fail(globals, err)
	}
	if err := b.rememberActiveTarget(res.TargetID); err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("opened", map[string]any{
			"id":  res.TargetID,
			"url": c.URL,
		})
	}
	fmt.Fprintf(globals.Stdout, "Opened %s (%s)\n", res.TargetID, c.URL)
	return nil
}

// CloseCmd closes a tab.
type CloseCmd struct {
	Target string `arg:"" help:"Target id or list index"`
}

func (c *CloseCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), globals.CommandTimeout())
	defer cancel()

	b, err := openBridge(ctx, globals)
	if err != nil {
		return fail(globals, err)
	}
	defer b.close()

	targets, err := b.targets(ctx)
	if err != nil {
		return fail(globals, err)
	}
	target, err := browser.ResolveTarget(targets, c.Target, "")
	if err != nil {
		return fail(globals, err)
	}

	params := map[string]any{"targetId": target.ID}
	if err := b.client.Execute(ctx, "Target.closeTarget", params, nil); err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("closed", map[string]any{"id": target.ID})
	}
	fmt.Fprintf(globals.Stdout, "Closed %s\n", target.ID)
	return nil
}
