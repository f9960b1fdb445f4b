package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteBufferSize = 1 << 20
	sendQueueSize     = 32
)

// Client owns the one WebSocket connection an invocation holds to the
// browser. It correlates command replies to callers through a pending table
// keyed by message id and fans events out to per-session subscribers. Many
// sessions are multiplexed over the single socket; frames without a
// sessionId belong to the root browser session.
type Client struct {
	wsURL string
	log   *zap.SugaredLogger
	conn  *websocket.Conn

	sendCh    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	msgID atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan *Message

	sessionsMu sync.RWMutex
	sessions   map[string]*Session
	root       *Session
}

// Dial connects to the browser's WebSocket debugger endpoint.
func Dial(ctx context.Context, wsURL string, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
		WriteBufferSize:  wsWriteBufferSize,
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c := &Client{
		wsURL:    wsURL,
		log:      log,
		conn:     conn,
		sendCh:   make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
		pending:  make(map[int64]chan *Message),
		sessions: make(map[string]*Session),
	}
	c.root = newSession(c, "", "")
	c.sessions[""] = c.root

	go c.recvLoop()
	go c.sendLoop()

	return c, nil
}

// Root returns the browser-level session (frames without a sessionId).
func (c *Client) Root() *Session { return c.root }

// Execute sends a browser-level command and decodes its reply into out.
func (c *Client) Execute(ctx context.Context, method string, params, out any) error {
	return c.call(ctx, "", method, params, out)
}

// Attach opens a flat-mode session on the given target.
func (c *Client) Attach(ctx context.Context, targetID string) (*Session, error) {
	var res struct {
		SessionID string `json:"sessionId"`
	}
	params := map[string]any{"targetId": targetID, "flatten": true}
	if err := c.Execute(ctx, "Target.attachToTarget", params, &res); err != nil {
		return nil, fmt.Errorf("attach to target %s: %w", targetID, err)
	}
	return c.getOrCreateSession(res.SessionID, targetID), nil
}

// Close shuts the socket down. Every pending command fails with
// ErrConnClosed and all subscriptions are dropped.
func (c *Client) Close() error {
	c.shutdown(ErrConnClosed)
	return nil
}

func (c *Client) call(ctx context.Context, sessionID, method string, params, out any) error {
	id := c.msgID.Add(1)

	var raw json.RawMessage
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal %s params: %w", method, err)
		}
	}
	buf, err := json.Marshal(&Message{ID: id, SessionID: sessionID, Method: method, Params: raw})
	if err != nil {
		return err
	}

	ch := make(chan *Message, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	defer c.forget(id)

	select {
	case c.sendCh <- buf:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case <-c.done:
		return fmt.Errorf("%s: %w", method, ErrConnClosed)
	}

	select {
	case reply := <-ch:
		if reply == nil {
			return fmt.Errorf("%s: %w", method, ErrConnClosed)
		}
		if reply.Error != nil {
			return fmt.Errorf("%s: %w", method, reply.Error)
		}
		if out != nil && len(reply.Result) > 0 {
			if err := json.Unmarshal(reply.Result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", method, ctx.Err())
	case <-c.done:
		return fmt.Errorf("%s: %w", method, ErrConnClosed)
	}
}

func (c *Client) forget(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Client) getOrCreateSession(sessionID, targetID string) *Session {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	if s, ok := c.sessions[sessionID]; ok {
		return s
	}
	s := newSession(c, sessionID, targetID)
	c.sessions[sessionID] = s
	return s
}

func (c *Client) dropSession(sessionID string) {
	if sessionID == "" {
		return
	}
	c.sessionsMu.Lock()
	s, ok := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.sessionsMu.Unlock()
	if ok {
		s.close()
	}
}

func (c *Client) recvLoop() {
	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.log.Debugf("cdp recv: %s", buf)

		var msg Message
		if err := json.Unmarshal(buf, &msg); err != nil {
			c.log.Warnf("cdp: dropping malformed frame: %v", err)
			continue
		}

		switch {
		case msg.Method != "":
			c.routeEvent(&msg)
		case msg.ID != 0:
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.pendingMu.Unlock()
			if ok {
				ch <- &msg
			}
		default:
			c.log.Warnf("cdp: frame with neither id nor method: %s", buf)
		}
	}
}

func (c *Client) routeEvent(msg *Message) {
	// The browser tells us about session teardown; until then the session
	// registry only grows through Attach.
	if msg.Method == "Target.detachedFromTarget" {
		var p struct {
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(msg.Params, &p); err == nil {
			c.dropSession(p.SessionID)
		}
		return
	}

	c.sessionsMu.RLock()
	s, ok := c.sessions[msg.SessionID]
	c.sessionsMu.RUnlock()
	if !ok {
		return
	}
	s.dispatch(Event{Method: msg.Method, SessionID: msg.SessionID, Params: msg.Params})
}

func (c *Client) sendLoop() {
	for {
		select {
		case buf := <-c.sendCh:
			c.log.Debugf("cdp send: %s", buf)
			if err := c.conn.WriteMessage(websocket.TextMessage, buf); err != nil {
				c.shutdown(err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// shutdown closes the socket once and fails everything waiting on it.
func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.closeErr = cause
		if websocket.IsUnexpectedCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.log.Warnf("cdp: connection lost: %v", cause)
		}
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
		close(c.done)

		c.pendingMu.Lock()
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()

		c.sessionsMu.Lock()
		for id, s := range c.sessions {
			s.close()
			delete(c.sessions, id)
		}
		c.sessionsMu.Unlock()
	})
}
