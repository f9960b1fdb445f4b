package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"

	"github.com/tabctl/tabctl/internal/browser"
)

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true)
	statusDimStyle    = lipgloss.NewStyle().Faint(true)
)

// StatusCmd reports how the invocation would reach the browser and what
// the browser currently holds.
type StatusCmd struct{}

func (c *StatusCmd) Run(globals *Globals) error {
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
	pages := lo.CountBy(targets, func(t browser.Target) bool { return t.Type == "page" })

	active := ""
	if b.persisted != nil {
		active = b.persisted.ActiveTargetID
	}

	if globals.NDJSON() {
		return globals.Emitter().WriteRecord("status", map[string]any{
			"browser":          b.endpoint.Browser,
			"ws_endpoint":      b.endpoint.WSURL,
			"host":             b.endpoint.Host,
			"port":             b.endpoint.Port,
			"targets":          len(targets),
			"pages":            pages,
			"active_target_id": active,
		})
	}

	fmt.Fprintln(globals.Stdout, statusHeaderStyle.Render("Browser"))
	fmt.Fprintf(globals.Stdout, "  %s at %s:%d\n", b.endpoint.Browser, b.endpoint.Host, b.endpoint.Port)
	fmt.Fprintf(globals.Stdout, "  %d targets (%d pages)\n", len(targets), pages)
	if active != "" {
		fmt.Fprintf(globals.Stdout, "  last activated: %s\n", statusDimStyle.Render(active))
	}
	return nil
}
