package subscriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Options configures a Subscriber.
type Options struct {
	// URL is the ws:// or wss:// endpoint, e.g. ws://localhost:8080/ws/app.
	URL string

	// Topics are subscribed on every (re)connect.
	Topics []string

	// Header is sent with the handshake. Optional.
	Header http.Header

	// MaxAttempts stops Run after that many consecutive failed dials.
	// 0 retries forever.
	MaxAttempts int
}

// ErrGaveUp is returned by Run when MaxAttempts consecutive dials failed.
var ErrGaveUp = errors.New("subscriber: gave up reconnecting")

type dialFunc func(ctx context.Context, url string, header http.Header) (*websocket.Conn, error)

// Subscriber keeps a subscription alive across reconnects.
type Subscriber struct {
	opts Options
	dial dialFunc // injectable for tests

	backoffInitial time.Duration
	backoffMax     time.Duration
}

// New creates a Subscriber.
func New(opts Options) *Subscriber {
	return &Subscriber{
		opts:           opts,
		dial:           defaultDial,
		backoffInitial: backoffInitial,
		backoffMax:     backoffMax,
	}
}

// Run delivers every message received to handle until ctx is cancelled.
// It returns nil on cancellation and ErrGaveUp when MaxAttempts is exceeded.
func (s *Subscriber) Run(ctx context.Context, handle func(message string)) error {
	bo := newBackoff(s.backoffInitial, s.backoffMax)
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := s.dial(ctx, s.opts.URL, s.opts.Header)
		if err != nil {
			failures++
			if s.opts.MaxAttempts > 0 && failures >= s.opts.MaxAttempts {
				return fmt.Errorf("%w after %d attempts: %w", ErrGaveUp, failures, err)
			}
			wait := bo.next()
			slog.Warn("subscriber: dial failed, will retry",
				"url", s.opts.URL,
				"err", err,
				"retry_in", wait)
			if !sleep(ctx, wait) {
				return nil
			}
			continue
		}

		slog.Info("subscriber: connected", "url", s.opts.URL, "topics", s.opts.Topics)
		failures = 0
		bo.reset()

		err = s.serve(ctx, conn, handle)
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.next()
		slog.Warn("subscriber: connection lost, will reconnect",
			"url", s.opts.URL,
			"err", err,
			"retry_in", wait)
		if !sleep(ctx, wait) {
			return nil
		}
	}
}

// serve subscribes on conn and reads until the connection fails.
func (s *Subscriber) serve(ctx context.Context, conn *websocket.Conn, handle func(string)) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for _, topic := range s.opts.Topics {
		msg, err := json.Marshal(map[string]string{"action": "subscribe", "topic": topic})
		if err != nil {
			return fmt.Errorf("encode subscribe: %w", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("subscribe %q: %w", topic, err)
		}
	}

	// Frames already buffered by the reader can still arrive after ctx ends;
	// none of them reach handle.
	for {
		if ctx.Err() != nil {
			return nil
		}
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		handle(string(data))
	}
}

func defaultDial(ctx context.Context, url string, header http.Header) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	return conn, err
}

// sleep waits for d or ctx, reporting false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
