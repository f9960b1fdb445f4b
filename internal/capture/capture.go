// Package capture implements the three timing strategies for observing
// protocol events: racing one named event against a deadline, draining a
// burst until it goes idle, and draining a domain's replay buffer. All
// waiting is bounded; nothing here blocks forever.
package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tabctl/tabctl/internal/cdp"
)

// TimeoutError names the event class a wait gave up on. The browser-side
// effect that was supposed to produce the event may still complete after
// the CLI stops watching; expiry only ends the observation.
type TimeoutError struct {
	Event    string
	Deadline time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Deadline, e.Event)
}

// WaitForEvent blocks until the channel yields an event, the deadline
// expires, or the connection drops (observed as channel closure).
// Subscribe and issue the triggering command before calling this.
func WaitForEvent(ctx context.Context, clk clock.Clock, events <-chan cdp.Event, event string, deadline time.Duration) (cdp.Event, error) {
	timer := clk.Timer(deadline)
	defer timer.Stop()

	select {
	case ev, ok := <-events:
		if !ok {
			return cdp.Event{}, cdp.ErrConnClosed
		}
		return ev, nil
	case <-timer.C:
		return cdp.Event{}, &TimeoutError{Event: event, Deadline: deadline}
	case <-ctx.Done():
		return cdp.Event{}, ctx.Err()
	}
}

// DrainIdle accumulates events until the idle interval elapses with no new
// arrival, or the absolute ceiling is hit, whichever is first. An empty
// result is a valid result; there is no error for "nothing happened".
func DrainIdle(ctx context.Context, clk clock.Clock, in <-chan cdp.Event, idle, ceiling time.Duration) []cdp.Event {
	var events []cdp.Event

	ceilTimer := clk.Timer(ceiling)
	defer ceilTimer.Stop()
	idleTimer := clk.Timer(idle)
	defer idleTimer.Stop()

	for {
		select {
		case ev, ok := <-in:
			if !ok {
				return events
			}
			events = append(events, ev)
			idleTimer.Reset(idle)
		case <-idleTimer.C:
			return events
		case <-ceilTimer.C:
			return events
		case <-ctx.Done():
			return events
		}
	}
}

// Session is the slice of a protocol session the replay drain needs.
type Session interface {
	Subscribe(methods ...string) *cdp.Subscription
	Ensure(ctx context.Context, domain string) error
}

// DrainReplay subscribes to the given event methods and only then enables
// the domain, then drains until idle. Ordering is the whole point: domains
// like Runtime and Log buffer events from before any listener existed and
// flush that backlog once a subscriber exists and the domain turns on.
// Enable-then-subscribe silently discards the backlog. Unlike reloading
// the page to regenerate events, this recovers interaction-triggered
// activity too, and mutates nothing.
func DrainReplay(ctx context.Context, clk clock.Clock, sess Session, domain string, methods []string, idle, ceiling time.Duration) ([]cdp.Event, error) {
	sub := sess.Subscribe(methods...)
	defer sub.Close()

	if err := sess.Ensure(ctx, domain); err != nil {
		return nil, err
	}
	return DrainIdle(ctx, clk, sub.C, idle, ceiling), nil
}
