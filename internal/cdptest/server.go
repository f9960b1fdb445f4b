// Package cdptest runs an in-process stand-in for a DevTools browser:
// an HTTP discovery surface (/json/version, /json/list) plus a WebSocket
// endpoint speaking just enough of the protocol for tests.
package cdptest

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// Request is one decoded command frame.
type Request struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Handler computes a result (marshaled as the reply's result field) or an
// error string for one command.
type Handler func(conn *Conn, req Request) (result any, errMsg string)

// TargetStub is one entry the fake browser reports.
type TargetStub struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Server is the fake browser.
type Server struct {
	tb   testing.TB
	HTTP *httptest.Server

	mu       sync.Mutex
	handlers map[string]Handler
	targets  []TargetStub
	calls    map[string]int
	conns    []*Conn

	nextSession int

	// PendingReplay holds events flushed when a domain is enabled,
	// keyed by domain name; simulates the browser-side replay buffer.
	pendingReplay map[string][]eventStub
}

type eventStub struct {
	method string
	params any
}

// NewServer starts the fake browser with sensible built-in behavior:
// Browser.getVersion, Target.getTargets, Target.attachToTarget, and
// <Domain>.enable all succeed; anything else returns an empty result
// unless a handler is registered.
func NewServer(tb testing.TB) *Server {
	s := &Server{
		tb:            tb,
		handlers:      make(map[string]Handler),
		calls:         make(map[string]int),
		pendingReplay: make(map[string][]eventStub),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", s.serveVersion)
	mux.HandleFunc("/json/list", s.serveList)
	mux.HandleFunc("/json", s.serveList)
	mux.HandleFunc("/devtools/browser", s.serveWS)
	s.HTTP = httptest.NewServer(mux)
	tb.Cleanup(s.HTTP.Close)
	return s
}

// WSURL returns the WebSocket debugger URL.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/devtools/browser"
}

// HostPort returns the host and port of the HTTP discovery surface.
func (s *Server) HostPort() (string, int) {
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(s.HTTP.URL, "http://"))
	if err != nil {
		s.tb.Fatalf("cdptest: bad server url %s: %v", s.HTTP.URL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		s.tb.Fatalf("cdptest: bad server port %s: %v", portStr, err)
	}
	return host, port
}

// SetTargets configures what the fake browser enumerates.
func (s *Server) SetTargets(targets ...TargetStub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = targets
}

// Handle registers a handler for a method.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Calls reports how many times a method was received.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// BufferReplay queues an event that is flushed to the session the moment
// the given domain is enabled, like the browser's replay buffer does.
func (s *Server) BufferReplay(domain, method string, params any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingReplay[domain] = append(s.pendingReplay[domain], eventStub{method: method, params: params})
}

func (s *Server) serveVersion(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"Browser":              "FakeBrowser/1.0",
		"Protocol-Version":     "1.3",
		"webSocketDebuggerUrl": s.WSURL(),
	})
}

func (s *Server) serveList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	targets := make([]map[string]any, 0, len(s.targets))
	for _, t := range s.targets {
		targets = append(targets, map[string]any{
			"id": t.ID, "type": t.Type, "title": t.Title, "url": t.URL,
			"webSocketDebuggerUrl": s.WSURL(),
		})
	}
	s.mu.Unlock()
	json.NewEncoder(w).Encode(targets)
}

var upgrader = websocket.Upgrader{}

// Conn is one accepted WebSocket connection.
type Conn struct {
	server *Server
	mu     sync.Mutex
	ws     *websocket.Conn
}

// Event pushes an event frame to the client.
func (c *Conn) Event(sessionID, method string, params any) {
	raw, err := json.Marshal(params)
	if err != nil {
		c.server.tb.Errorf("cdptest: marshal event params: %v", err)
		return
	}
	c.write(map[string]any{
		"sessionId": sessionID,
		"method":    method,
		"params":    json.RawMessage(raw),
	})
}

func (c *Conn) reply(id int64, sessionID string, result any, errMsg string) {
	frame := map[string]any{"id": id}
	if sessionID != "" {
		frame["sessionId"] = sessionID
	}
	if errMsg != "" {
		frame["error"] = map[string]any{"code": -32000, "message": errMsg}
	} else {
		if result == nil {
			result = struct{}{}
		}
		frame["result"] = result
	}
	c.write(frame)
}

func (c *Conn) write(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.WriteJSON(v)
}

// CloseAbruptly drops the socket without a close handshake.
func (c *Conn) CloseAbruptly() {
	_ = c.ws.Close()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := &Conn{server: s, ws: ws}
	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		_, buf, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(buf, &req); err != nil {
			s.tb.Errorf("cdptest: malformed frame: %s", buf)
			continue
		}
		s.dispatch(conn, req)
	}
}

// LastConn returns the most recently accepted connection.
func (s *Server) LastConn() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.conns) == 0 {
		return nil
	}
	return s.conns[len(s.conns)-1]
}

func (s *Server) dispatch(conn *Conn, req Request) {
	s.mu.Lock()
	s.calls[req.Method]++
	h := s.handlers[req.Method]
	s.mu.Unlock()

	if h != nil {
		result, errMsg := h(conn, req)
		conn.reply(req.ID, req.SessionID, result, errMsg)
		return
	}

	switch {
	case req.Method == "Browser.getVersion":
		conn.reply(req.ID, req.SessionID, map[string]any{
			"product":   "FakeBrowser/1.0",
			"userAgent": "Mozilla/5.0 (Fake) TestKit/1.0",
		}, "")

	case req.Method == "Target.getTargets":
		s.mu.Lock()
		infos := make([]map[string]any, 0, len(s.targets))
		for _, t := range s.targets {
			infos = append(infos, map[string]any{
				"targetId": t.ID, "type": t.Type, "title": t.Title, "url": t.URL,
			})
		}
		s.mu.Unlock()
		conn.reply(req.ID, req.SessionID, map[string]any{"targetInfos": infos}, "")

	case req.Method == "Target.attachToTarget":
		s.mu.Lock()
		s.nextSession++
		sessionID := fmt.Sprintf("session-%d", s.nextSession)
		s.mu.Unlock()
		conn.reply(req.ID, req.SessionID, map[string]any{"sessionId": sessionID}, "")

	case strings.HasSuffix(req.Method, ".enable"):
		// Reply first, then flush the domain's replay buffer, matching
		// the browser's observable order.
		conn.reply(req.ID, req.SessionID, nil, "")
		domain := strings.TrimSuffix(req.Method, ".enable")
		s.mu.Lock()
		buffered := s.pendingReplay[domain]
		delete(s.pendingReplay, domain)
		s.mu.Unlock()
		for _, ev := range buffered {
			conn.Event(req.SessionID, ev.method, ev.params)
		}

	default:
		conn.reply(req.ID, req.SessionID, nil, "")
	}
}
