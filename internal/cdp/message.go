package cdp

import (
	"encoding/json"
	"fmt"
)

// Message is one JSON-RPC frame on the DevTools socket. A frame with an ID
// and no Method is a command reply; a frame with a Method is an event.
type Message struct {
	ID        int64           `json:"id,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *ProtocolError  `json:"error,omitempty"`
}

// ProtocolError is the browser's rejection of a command.
type ProtocolError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("protocol error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// Event is a protocol event delivered to a subscription.
type Event struct {
	Method    string
	SessionID string
	Params    json.RawMessage
}
