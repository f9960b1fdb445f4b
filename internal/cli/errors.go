package cli

import (
	"errors"
	"fmt"

	"github.com/tabctl/tabctl/internal/browser"
	"github.com/tabctl/tabctl/internal/capture"
	"github.com/tabctl/tabctl/internal/cdp"
	"github.com/tabctl/tabctl/internal/reconcile"
	"github.com/tabctl/tabctl/internal/state"
)

// classify maps an error to its stable category code and remediation hint.
func classify(err error) (code, hint string) {
	var (
		noBrowser   *browser.NoBrowserError
		unreachable *browser.UnreachableError
		noTarget    *browser.TargetNotFoundError
		timeout     *capture.TimeoutError
		protocol    *cdp.ProtocolError
		activation  *reconcile.ActivationError
		noRef       *refNotFoundError
	)
	switch {
	case errors.As(err, &noBrowser):
		return "NO_BROWSER", "start the browser with --remote-debugging-port=9222 and run `tabctl connect`"
	case errors.As(err, &unreachable):
		return "BROWSER_UNREACHABLE", "check the port or run `tabctl connect` to rediscover"
	case errors.As(err, &noTarget):
		return "TARGET_NOT_FOUND", "run `tabctl targets` to list open targets"
	case errors.As(err, &noRef):
		return "REF_NOT_FOUND", "run `tabctl snapshot` to capture fresh refs"
	case errors.As(err, &timeout):
		return "TIMEOUT", ""
	case errors.As(err, &activation):
		return "ACTIVATION_UNVERIFIED", "run `tabctl status` to see which target is active"
	case errors.Is(err, cdp.ErrConnClosed):
		return "CONNECTION_CLOSED", "run `tabctl connect` to re-establish the connection"
	case errors.Is(err, state.ErrCorrupt):
		return "STATE_CORRUPT", "delete the named file under ~/.tabctl and reconnect"
	case errors.As(err, &protocol):
		return "PROTOCOL_ERROR", ""
	default:
		return "ERROR", ""
	}
}

// fail normalizes error emission across commands, respecting ndjson vs
// text formats so agents always get machine-readable failures.
func fail(globals *Globals, err error) error {
	code, hint := classify(err)
	if globals != nil && globals.NDJSON() {
		globals.Emitter().WriteError(code, err.Error(), hint)
	} else if globals != nil {
		fmt.Fprintf(globals.Stderr, "Error [%s]: %s", code, err.Error())
		if hint != "" {
			fmt.Fprintf(globals.Stderr, " (hint: %s)", hint)
		}
		fmt.Fprintln(globals.Stderr)
	}
	return err
}

// refNotFoundError is raised when a persisted snapshot ref no longer
// resolves, e.g. because its owning target closed.
type refNotFoundError struct {
	Ref string
}

func (e *refNotFoundError) Error() string {
	return fmt.Sprintf("ref %q not found in the last snapshot", e.Ref)
}
