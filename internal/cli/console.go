package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tabctl/tabctl/internal/capture"
	"github.com/tabctl/tabctl/internal/cdp"
	"github.com/tabctl/tabctl/internal/filter"
)

// ConsoleCmd collects console and log activity. Runtime and Log both
// buffer events from before any client existed and flush that backlog the
// moment a subscriber is registered and the domain is enabled, so this
// recovers output printed long before this invocation started, including
// interaction-triggered output a page reload could never regenerate.
type ConsoleCmd struct {
	Target string   `short:"t" help:"Target id or list index"`
	Idle   string   `help:"Stop after this quiet interval (default from config)"`
	Max    string   `help:"Absolute collection ceiling (default from config)"`
	Where  []string `short:"w" help:"Filter entries, e.g. 'level=error' or 'text~timeout' (can be repeated)"`
	Dedupe bool     `help:"Collapse consecutive identical messages"`
}

func (c *ConsoleCmd) Run(globals *Globals) error {
	idle, ceiling, err := drainWindow(globals, c.Idle, c.Max)
	if err != nil {
		return fail(globals, err)
	}

	var clauses []*filter.WhereClause
	for _, w := range c.Where {
		wc, err := filter.ParseWhereClause(w)
		if err != nil {
			return fail(globals, err)
		}
		clauses = append(clauses, wc)
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

	runtimeEvents, err := capture.DrainReplay(ctx, globals.Clock, sess, "Runtime",
		[]string{"Runtime.consoleAPICalled", "Runtime.exceptionThrown"}, idle, ceiling)
	if err != nil {
		return fail(globals, err)
	}
	logEvents, err := capture.DrainReplay(ctx, globals.Clock, sess, "Log",
		[]string{"Log.entryAdded"}, idle, ceiling)
	if err != nil {
		return fail(globals, err)
	}

	entries := make([]consoleEntry, 0, len(runtimeEvents)+len(logEvents))
	for _, ev := range runtimeEvents {
		entries = append(entries, decodeRuntimeEvent(ev))
	}
	for _, ev := range logEvents {
		entries = append(entries, decodeLogEvent(ev))
	}

	if len(clauses) > 0 {
		kept := entries[:0]
		for _, e := range entries {
			if filter.MatchAll(clauses, filter.Entry{Level: e.level, Source: e.source, Text: e.text}) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if c.Dedupe {
		dd := filter.NewDedupeFilter()
		kept := entries[:0]
		for _, e := range entries {
			if dd.Check(e.text).ShouldEmit {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	if globals.NDJSON() {
		em := globals.Emitter()
		for _, e := range entries {
			if err := em.WriteRecord("console", map[string]any{
				"target_id": target.ID,
				"level":     e.level,
				"source":    e.source,
				"text":      e.text,
				"ts":        e.ts,
			}); err != nil {
				return err
			}
		}
		return em.WriteRecord("console_done", map[string]any{
			"target_id": target.ID,
			"count":     len(entries),
		})
	}

	for _, e := range entries {
		fmt.Fprintf(globals.Stdout, "[%s] %s\n", e.level, e.text)
	}
	fmt.Fprintf(globals.Stdout, "%d entries\n", len(entries))
	return nil
}

type consoleEntry struct {
	level  string
	source string
	text   string
	ts     float64
}

func decodeRuntimeEvent(ev cdp.Event) consoleEntry {
	p := gjson.ParseBytes(ev.Params)
	if ev.Method == "Runtime.exceptionThrown" {
		text := p.Get("exceptionDetails.exception.description").String()
		if text == "" {
			text = p.Get("exceptionDetails.text").String()
		}
		return consoleEntry{
			level:  "error",
			source: "exception",
			text:   text,
			ts:     p.Get("timestamp").Float(),
		}
	}
	var parts []string
	for _, arg := range p.Get("args").Array() {
		if v := arg.Get("value"); v.Exists() {
			parts = append(parts, v.String())
		} else if d := arg.Get("description"); d.Exists() {
			parts = append(parts, d.String())
		}
	}
	return consoleEntry{
		level:  p.Get("type").String(),
		source: "console",
		text:   strings.Join(parts, " "),
		ts:     p.Get("timestamp").Float(),
	}
}

func decodeLogEvent(ev cdp.Event) consoleEntry {
	e := gjson.GetBytes(ev.Params, "entry")
	return consoleEntry{
		level:  e.Get("level").String(),
		source: e.Get("source").String(),
		text:   e.Get("text").String(),
		ts:     e.Get("timestamp").Float(),
	}
}

// drainWindow resolves the idle interval and ceiling from flags with
// config fallbacks.
func drainWindow(globals *Globals, idleFlag, maxFlag string) (idle, ceiling time.Duration, err error) {
	idle = globals.IdleInterval()
	ceiling = globals.DrainCeiling()
	if idleFlag != "" {
		if idle, err = time.ParseDuration(idleFlag); err != nil {
			return 0, 0, fmt.Errorf("invalid idle interval: %w", err)
		}
	}
	if maxFlag != "" {
		if ceiling, err = time.ParseDuration(maxFlag); err != nil {
			return 0, 0, fmt.Errorf("invalid ceiling: %w", err)
		}
	}
	return idle, ceiling, nil
}
