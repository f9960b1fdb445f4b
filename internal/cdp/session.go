package cdp

import (
	"context"
	"sync"
)

// subBuffer bounds one subscription's backlog. Replay-heavy domains can
// flush hundreds of buffered events the moment they are enabled.
const subBuffer = 1024

// Session is this invocation's protocol attachment to one target. Sessions
// are never persisted; a new process always attaches fresh and re-enables
// whatever domains it needs.
type Session struct {
	client   *Client
	id       string
	targetID string

	mu      sync.Mutex
	enabled map[string]bool
	subs    map[*Subscription]struct{}
	closed  bool
}

func newSession(c *Client, id, targetID string) *Session {
	return &Session{
		client:   c,
		id:       id,
		targetID: targetID,
		enabled:  make(map[string]bool),
		subs:     make(map[*Subscription]struct{}),
	}
}

// ID returns the protocol session id ("" for the root browser session).
func (s *Session) ID() string { return s.id }

// TargetID returns the id of the attached target.
func (s *Session) TargetID() string { return s.targetID }

// Execute sends a command scoped to this session.
func (s *Session) Execute(ctx context.Context, method string, params, out any) error {
	return s.client.call(ctx, s.id, method, params, out)
}

// Ensure enables a protocol domain exactly once for this session. Repeated
// calls for the same domain are no-ops, so independent call sites can each
// demand the capability they need without extra round trips. The enabled
// set only grows; there is no disable path.
func (s *Session) Ensure(ctx context.Context, domain string) error {
	s.mu.Lock()
	if s.enabled[domain] {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.Execute(ctx, domain+".enable", nil, nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.enabled[domain] = true
	s.mu.Unlock()
	return nil
}

// Enabled reports whether a domain has been enabled on this session.
func (s *Session) Enabled(domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[domain]
}

// Subscribe registers for the named event methods. The returned channel is
// buffered; register before enabling a replay-buffering domain or the
// browser flushes its backlog into the void.
func (s *Session) Subscribe(methods ...string) *Subscription {
	sub := &Subscription{
		C:       make(chan Event, subBuffer),
		session: s,
		methods: make(map[string]struct{}, len(methods)),
	}
	for _, m := range methods {
		sub.methods[m] = struct{}{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.C)
		return sub
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub
}

func (s *Session) dispatch(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		if _, ok := sub.methods[ev.Method]; !ok {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			// Receiver fell too far behind; dropping beats deadlocking
			// the socket read loop.
			sub.dropped++
			s.client.log.Warnf("cdp: subscription for %s dropped event (%d total)", ev.Method, sub.dropped)
		}
	}
}

func (s *Session) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	delete(s.subs, sub)
	s.mu.Unlock()
	if ok {
		close(sub.C)
	}
}

// close tears down the session. Live subscriptions are closed, not
// replayed; only the persisted documents carry state across connections.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
		delete(s.subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		close(sub.C)
	}
}

// Subscription delivers matching events on C. C is closed when the
// subscription, session, or connection closes.
type Subscription struct {
	C chan Event

	session *Session
	methods map[string]struct{}
	dropped int64

	closeOnce sync.Once
}

// Close unregisters the subscription and closes C.
func (sub *Subscription) Close() {
	sub.closeOnce.Do(func() {
		sub.session.unsubscribe(sub)
	})
}
