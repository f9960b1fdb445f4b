package cdp

import "errors"

// ErrConnClosed is returned by every call that was pending, or is attempted,
// after the socket closed. Subscriptions do not survive a closed connection;
// no event replay happens on reconnect.
var ErrConnClosed = errors.New("devtools connection closed")
