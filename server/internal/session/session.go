package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/devicehub/devicehub/server/internal/broadcast"
	"github.com/devicehub/devicehub/server/internal/metrics"
	"github.com/devicehub/devicehub/server/internal/registry"
	"github.com/devicehub/devicehub/server/internal/transport"
)

// maxLoggedPayload caps how much of a rejected message is logged.
const maxLoggedPayload = 256

// Conn is the connection a Session drives. *transport.Conn implements it.
type Conn interface {
	registry.Subscriber
	Receive() (string, error)
	Close() error
}

// Publisher hands messages to the broadcast engine.
type Publisher interface {
	PublishFrom(origin, topic, message string) broadcast.Result
}

// State is a Session lifecycle stage.
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is one connection's control loop.
type Session struct {
	role    Role
	reg     *registry.Registry
	pub     Publisher
	metrics *metrics.Metrics

	conn  Conn
	log   *slog.Logger
	state atomic.Int32

	mu     sync.Mutex
	topics map[string]struct{}
}

// New creates a Session in StateConnecting. Attach a Conn with Attach (or
// use Hub) before calling Run.
func New(role Role, reg *registry.Registry, pub Publisher, m *metrics.Metrics) *Session {
	return &Session{
		role:    role,
		reg:     reg,
		pub:     pub,
		metrics: m,
		log:     slog.With("role", role.Name),
		topics:  make(map[string]struct{}),
	}
}

// Attach binds the accepted connection.
func (s *Session) Attach(conn Conn) {
	s.conn = conn
	s.log = slog.With("role", s.role.Name, "conn", conn.ID())
}

// Fail records that the connection could not be accepted. The session moves
// straight to StateClosed; nothing was registered so nothing is cleaned up.
func (s *Session) Fail(err error) {
	s.state.Store(int32(StateClosed))
	s.metrics.AcceptFailures.WithLabelValues(s.role.Name).Inc()
	s.log.Warn("session: accept failed", "err", err)
}

// State returns the current lifecycle stage.
func (s *Session) State() State { return State(s.state.Load()) }

// Role returns the role the session was created for.
func (s *Session) Role() Role { return s.role }

// Topics returns the sorted topics this session is subscribed to.
func (s *Session) Topics() []string {
	s.mu.Lock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out
}

// Run drives the session until the connection ends or ctx is cancelled, then
// releases every subscription and closes the connection. Run returns
// immediately if the session is not in StateConnecting with a Conn attached.
func (s *Session) Run(ctx context.Context) {
	if s.conn == nil || !s.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		return
	}

	// Closing the conn is what unblocks a pending Receive on cancellation.
	stop := context.AfterFunc(ctx, func() { s.conn.Close() }) //nolint:errcheck
	defer func() {
		stop()
		if r := recover(); r != nil {
			s.log.Error("session: panic in receive loop", "panic", r)
		}
		s.cleanup()
	}()

	s.log.Info("session: active", "remote", remoteAddr(s.conn))
	s.loop()
}

func (s *Session) loop() {
	for {
		text, err := s.conn.Receive()
		if err != nil {
			if transport.IsRecoverable(err) {
				s.log.Warn("session: skipping frame", "err", err)
				continue
			}
			if errors.Is(err, transport.ErrDisconnected) {
				s.log.Info("session: peer disconnected")
			} else {
				s.log.Warn("session: transport error", "err", err)
			}
			return
		}
		s.handle(text)
	}
}

// handle applies one control message.
func (s *Session) handle(text string) {
	msg, err := ParseControl(text)
	if err == nil && !s.role.Allows(msg.Action) {
		err = fmt.Errorf("%w: action %q not accepted on %s endpoint", ErrMalformed, msg.Action, s.role.Name)
	}
	if err != nil {
		s.metrics.MalformedMessages.WithLabelValues(s.role.Name).Inc()
		s.log.Warn("session: ignoring message", "err", err, "raw", truncate(text, maxLoggedPayload))
		return
	}

	switch msg.Action {
	case ActionSubscribe:
		s.subscribe(msg.Topic)
	case ActionUnsubscribe:
		s.unsubscribe(msg.Topic)
	case ActionPublish:
		res := s.pub.PublishFrom(metrics.OriginSession, msg.Topic, msg.Message)
		s.log.Debug("session: published",
			"topic", msg.Topic,
			"delivered", res.Delivered,
			"failed", res.Failed,
		)
	}
}

func (s *Session) subscribe(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.topics[topic]; ok {
		return
	}
	s.reg.Subscribe(topic, s.conn)
	s.topics[topic] = struct{}{}
	s.log.Info("session: subscribed", "topic", topic, "topics", len(s.topics))
}

func (s *Session) unsubscribe(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.topics[topic]; !ok {
		return
	}
	s.reg.Unsubscribe(topic, s.conn)
	delete(s.topics, topic)
	s.log.Info("session: unsubscribed", "topic", topic, "topics", len(s.topics))
}

// cleanup runs once, on every exit from Active.
func (s *Session) cleanup() {
	s.state.Store(int32(StateClosing))

	s.mu.Lock()
	n := len(s.topics)
	for topic := range s.topics {
		s.reg.Unsubscribe(topic, s.conn)
		delete(s.topics, topic)
	}
	s.mu.Unlock()

	if err := s.conn.Close(); err != nil {
		s.log.Debug("session: close", "err", err)
	}
	s.state.Store(int32(StateClosed))
	s.log.Info("session: closed", "released_topics", n)
}

func remoteAddr(c Conn) string {
	if ra, ok := c.(interface{ RemoteAddr() string }); ok {
		return ra.RemoteAddr()
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
