// Package transport wraps one gorilla/websocket connection as a Conn handle.
//
// Acceptor.Accept upgrades an HTTP request. The returned Conn owns a writer
// goroutine that drains a bounded send buffer, sets a write deadline per
// frame, and pings the peer every PongWait*9/10. Receive reads the next text
// frame and extends the read deadline whenever a pong arrives.
//
// Send never blocks: it enqueues or fails. Once a Conn has reported closed
// (Close, a write error, or a full buffer) every later Send returns ErrClosed
// without touching the socket. Close is idempotent.
//
// Receive errors are classified:
//
//	ErrUnsupportedFrame  binary frame; recoverable, the caller keeps reading
//	ErrDisconnected      peer close frame or a locally closed socket
//	*TransportError      anything else; the connection is unusable
package transport
