package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tabctl/tabctl/internal/a11y"
	"github.com/tabctl/tabctl/internal/state"
)

// SnapshotCmd captures the page's accessibility tree and persists the
// ref to backend-node map so later invocations can act on what it named.
type SnapshotCmd struct {
	Target string `short:"t" help:"Target id or list index"`
	Limit  int    `help:"Node ceiling; a partial tree is a valid result" default:"${config_node_limit}"`
}

func (c *SnapshotCmd) Run(globals *Globals) error {
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
	if err := sess.Ensure(ctx, "Accessibility"); err != nil {
		return fail(globals, err)
	}

	var res struct {
		Nodes []a11y.Node `json:"nodes"`
	}
	if err := sess.Execute(ctx, "Accessibility.getFullAXTree", nil, &res); err != nil {
		return fail(globals, err)
	}

	tree := a11y.BuildTree(res.Nodes, c.Limit)

	doc := &state.Snapshot{
		URL:        target.URL,
		TargetID:   target.ID,
		CapturedAt: time.Now().UTC().Format(time.RFC3339),
		Refs:       tree.Refs,
	}
	if err := b.store.SaveSnapshot(doc); err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("snapshot", map[string]any{
			"url":         target.URL,
			"target_id":   target.ID,
			"total_nodes": tree.TotalNodes,
			"truncated":   tree.Truncated,
			"tree":        tree.Root,
		})
	}

	fmt.Fprintf(globals.Stdout, "Snapshot of %s (%d nodes", target.URL, tree.TotalNodes)
	if tree.Truncated {
		fmt.Fprint(globals.Stdout, ", truncated")
	}
	fmt.Fprintln(globals.Stdout, ")")
	renderTree(globals, tree.Root, 0)
	return nil
}

func renderTree(globals *Globals, n *a11y.TreeNode, depth int) {
	if n == nil {
		return
	}
	line := strings.Repeat("  ", depth) + n.Role
	if n.Name != "" {
		line += fmt.Sprintf(" %q", n.Name)
	}
	if n.Ref != "" {
		line += " [" + n.Ref + "]"
	}
	fmt.Fprintln(globals.Stdout, line)
	for _, child := range n.Children {
		renderTree(globals, child, depth+1)
	}
}

// InspectCmd resolves a snapshot ref back to a live element. A ref whose
// owning target has since closed fails with a typed not-found, never a
// protocol crash.
type InspectCmd struct {
	Ref string `arg:"" help:"Snapshot ref (e.g. e3)"`
}

func (c *InspectCmd) Run(globals *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), globals.CommandTimeout())
	defer cancel()

	b, err := openBridge(ctx, globals)
	if err != nil {
		return fail(globals, err)
	}
	defer b.close()

	snap, err := b.store.LoadSnapshot()
	if err != nil {
		return fail(globals, err)
	}
	if snap == nil {
		return fail(globals, &refNotFoundError{Ref: c.Ref})
	}
	backendID, ok := snap.Refs[c.Ref]
	if !ok {
		return fail(globals, &refNotFoundError{Ref: c.Ref})
	}

	targets, err := b.targets(ctx)
	if err != nil {
		return fail(globals, err)
	}
	owner := ""
	for _, t := range targets {
		if t.ID == snap.TargetID {
			owner = t.ID
			break
		}
	}
	if owner == "" {
		// The tab that produced the snapshot is gone; its refs die with
		// it.
		return fail(globals, &refNotFoundError{Ref: c.Ref})
	}

	sess, _, err := b.attach(ctx, owner)
	if err != nil {
		return fail(globals, err)
	}

	var res struct {
		Node struct {
			NodeName   string   `json:"nodeName"`
			Attributes []string `json:"attributes"`
		} `json:"node"`
	}
	params := map[string]any{"backendNodeId": backendID}
	if err := sess.Execute(ctx, "DOM.describeNode", params, &res); err != nil {
		return fail(globals, err)
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("node", map[string]any{
			"ref":             c.Ref,
			"backend_node_id": backendID,
			"node_name":       res.Node.NodeName,
			"attributes":      res.Node.Attributes,
		})
	}
	fmt.Fprintf(globals.Stdout, "%s -> <%s> (backend node %d)\n", c.Ref, strings.ToLower(res.Node.NodeName), backendID)
	return nil
}
