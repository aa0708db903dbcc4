package core

import "errors"

var (
	// ErrTransport wraps connect, TLS, read and write failures. The session backs off and reconnects.
	ErrTransport = errors.New("transport error")
	// ErrProtocol wraps fatal stream errors such as an oversized inbound line.
	ErrProtocol = errors.New("protocol error")
	// ErrConnectionClosed is returned after the server sent ERROR (closing link, banned, throttled).
	ErrConnectionClosed = errors.New("connection closed by server")
	// ErrReadTimeout is returned when the server stayed silent longer than the liveness timeout.
	ErrReadTimeout = errors.New("no data from server")
	// ErrNickExhausted is a fatal registration failure after too many nickname collisions.
	ErrNickExhausted = errors.New("nickname retries exhausted")
	// ErrRetriesExhausted is returned when a configured reconnect cap is hit.
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	// ErrQueueFull is returned by the throttle queue under the reject overflow policy.
	ErrQueueFull = errors.New("outbound queue full")
	// ErrNotConnected is returned when sending while no connection is registering or registered.
	ErrNotConnected = errors.New("not connected")
	// ErrQuit ends a connection after an explicit quit.
	ErrQuit = errors.New("quit requested")
)
