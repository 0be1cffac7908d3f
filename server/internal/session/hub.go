package session

import (
	"context"
	"net/http"
	"sync"

	"github.com/devicehub/devicehub/server/internal/metrics"
	"github.com/devicehub/devicehub/server/internal/registry"
	"github.com/devicehub/devicehub/server/internal/transport"
)

// AcceptFunc upgrades an HTTP request into a Conn. On failure it has already
// written an HTTP error response.
type AcceptFunc func(w http.ResponseWriter, r *http.Request) (Conn, error)

// WebSocketAcceptor adapts a transport.Acceptor to an AcceptFunc.
func WebSocketAcceptor(a *transport.Acceptor) AcceptFunc {
	return func(w http.ResponseWriter, r *http.Request) (Conn, error) {
		c, err := a.Accept(w, r)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Hub serves role endpoints and tracks the sessions they create so a
// shutdown can close all of them.
type Hub struct {
	reg     *registry.Registry
	pub     Publisher
	metrics *metrics.Metrics
	accept  AcceptFunc

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closing  bool
	wg       sync.WaitGroup
}

// NewHub creates a Hub. Sessions subscribe in reg and publish through pub.
func NewHub(reg *registry.Registry, pub Publisher, m *metrics.Metrics, accept AcceptFunc) *Hub {
	return &Hub{
		reg:      reg,
		pub:      pub,
		metrics:  m,
		accept:   accept,
		sessions: make(map[*Session]struct{}),
	}
}

// Handler returns the endpoint for role. Each request becomes one Session
// that runs until the connection ends; the handler blocks for that long.
func (h *Hub) Handler(role Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := New(role, h.reg, h.pub, h.metrics)

		conn, err := h.accept(w, r)
		if err != nil {
			s.Fail(err)
			return
		}
		s.Attach(conn)

		if !h.track(s) {
			s.log.Info("session: rejected, hub closing")
			conn.Close() //nolint:errcheck
			s.state.Store(int32(StateClosed))
			return
		}
		defer h.untrack(s)

		s.Run(r.Context())
	})
}

// Run blocks until ctx is cancelled, then closes every live session.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.CloseAll()
}

// CloseAll closes the connection of every live session and refuses new
// ones. Each session then runs its own cleanup.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closing = true
	targets := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		s.conn.Close() //nolint:errcheck
	}
}

// Wait blocks until every tracked session has finished cleanup or ctx is
// done, whichever comes first.
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of live sessions.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// CountByRole returns live sessions grouped by role name.
func (h *Hub) CountByRole() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int)
	for s := range h.sessions {
		out[s.role.Name]++
	}
	return out
}

// --- internal ---------------------------------------------------------------

func (h *Hub) track(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions[s] = struct{}{}
	h.wg.Add(1)
	h.metrics.SessionsOpened.WithLabelValues(s.role.Name).Inc()
	h.metrics.SessionsActive.WithLabelValues(s.role.Name).Inc()
	return true
}

func (h *Hub) untrack(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
	h.metrics.SessionsActive.WithLabelValues(s.role.Name).Dec()
	h.wg.Done()
}
