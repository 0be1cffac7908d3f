package transport

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Defaults used when Options fields are zero.
const (
	DefaultReadLimit    = 64 * 1024
	DefaultWriteTimeout = 10 * time.Second
	DefaultPongWait     = 60 * time.Second
	DefaultSendBuffer   = 64
)

// Options tunes per-connection limits.
type Options struct {
	// ReadLimit is the largest inbound frame in bytes.
	ReadLimit int64

	// WriteTimeout is the deadline for a single frame write.
	WriteTimeout time.Duration

	// PongWait is how long the peer may stay silent before the read fails.
	// Pings go out every PongWait*9/10.
	PongWait time.Duration

	// SendBuffer is the outgoing queue depth per connection.
	SendBuffer int

	// AllowedOrigins restricts the Origin header. Empty allows all origins.
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = DefaultPongWait
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = DefaultSendBuffer
	}
	return o
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Acceptor upgrades HTTP requests to WebSocket connections.
type Acceptor struct {
	opts     Options
	upgrader websocket.Upgrader
}

// NewAcceptor creates an Acceptor with opts; zero fields take the defaults.
func NewAcceptor(opts Options) *Acceptor {
	opts = opts.withDefaults()
	a := &Acceptor{opts: opts}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     a.checkOrigin,
	}
	return a
}

func (a *Acceptor) checkOrigin(r *http.Request) bool {
	if len(a.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range a.opts.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Accept completes the WebSocket handshake. On failure the upgrader has
// already written an HTTP error response.
func (a *Acceptor) Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	return newConn(ws, a.opts), nil
}

// Conn is one live WebSocket connection.
type Conn struct {
	id   string
	ws   *websocket.Conn
	opts Options

	mu     sync.Mutex
	closed bool
	send   chan string

	done chan struct{} // closed when the writer goroutine has exited
}

func newConn(ws *websocket.Conn, opts Options) *Conn {
	c := &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		opts: opts,
		send: make(chan string, opts.SendBuffer),
		done: make(chan struct{}),
	}

	ws.SetReadLimit(opts.ReadLimit)
	ws.SetReadDeadline(time.Now().Add(opts.PongWait)) //nolint:errcheck
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	go c.writePump()
	return c
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Done is closed once the connection's writer has stopped and the socket is
// closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send queues message for delivery. It never blocks.
func (c *Conn) Send(message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- message:
		return nil
	default:
		c.closeLocked()
		return ErrSlowConsumer
	}
}

// Close shuts the connection down. Queued messages are flushed before the
// close frame is written. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
	return nil
}

func (c *Conn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Receive blocks until the next text frame arrives.
func (c *Conn) Receive() (string, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", c.classify(err)
	}
	if mt != websocket.TextMessage {
		return "", ErrUnsupportedFrame
	}
	return string(data), nil
}

func (c *Conn) classify(err error) error {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure):
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	case c.closedLocally():
		// gorilla hides net.ErrClosed behind its own error type.
		return fmt.Errorf("%w: closed locally: %v", ErrDisconnected, err)
	default:
		return &TransportError{Op: "read", Err: err}
	}
}

func (c *Conn) closedLocally() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// writePump drains the send buffer and owns every socket write. It also sends
// periodic pings. Runs in its own goroutine per connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)) //nolint:errcheck
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, //nolint:errcheck
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				c.Close() //nolint:errcheck
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)) //nolint:errcheck
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close() //nolint:errcheck
				return
			}
		}
	}
}
