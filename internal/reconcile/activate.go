package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// ActivationError means the browser accepted the activate command but the
// target never corroborated it within the retry budget.
type ActivationError struct {
	TargetID string
	Attempts int
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("target %s did not become visible after %d checks", e.TargetID, e.Attempts)
}

// ActivateOptions bound the verify loop.
type ActivateOptions struct {
	Retries  int
	Interval time.Duration
}

// Activate raises the target and then verifies the result from the target
// itself. The discovery endpoint's list ordering does not reflect
// activation, and two invocations can race on the state files, so the only
// trustworthy confirmation is the page reporting itself visible. This
// bounded re-query is the one built-in retry in the whole core; it exists
// for eventual consistency, not error recovery.
func Activate(ctx context.Context, clk clock.Clock, client Executor, sess Session, targetID string, opts ActivateOptions) error {
	params := map[string]any{"targetId": targetID}
	if err := client.Execute(ctx, "Target.activateTarget", params, nil); err != nil {
		return err
	}

	attempts := opts.Retries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		visible, err := isVisible(ctx, sess)
		if err != nil {
			return err
		}
		if visible {
			return nil
		}
		if i < attempts-1 {
			clk.Sleep(opts.Interval)
		}
	}
	return &ActivationError{TargetID: targetID, Attempts: attempts}
}

func isVisible(ctx context.Context, sess Session) (bool, error) {
	var res struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	params := map[string]any{
		"expression":    "document.visibilityState",
		"returnByValue": true,
	}
	if err := sess.Execute(ctx, "Runtime.evaluate", params, &res); err != nil {
		return false, err
	}
	return res.Result.Value == "visible", nil
}
