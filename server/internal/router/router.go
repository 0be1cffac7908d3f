package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/devicehub/devicehub/server/internal/api"
	"github.com/devicehub/devicehub/server/internal/config"
	"github.com/devicehub/devicehub/server/internal/metrics"
	"github.com/devicehub/devicehub/server/internal/session"
)

// Roles converts configured endpoints to session roles.
func Roles(endpoints []config.Endpoint) []session.Role {
	out := make([]session.Role, 0, len(endpoints))
	for _, ep := range endpoints {
		actions := make([]session.Action, 0, len(ep.Actions))
		for _, a := range ep.Actions {
			actions = append(actions, session.Action(a))
		}
		out = append(out, session.Role{Name: ep.Role, Path: ep.Path, Actions: actions})
	}
	return out
}

// New builds the HTTP handler. Each role's endpoint is served by hub.
func New(hub *session.Hub, roles []session.Role, apiHandler *api.Handler, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	for _, role := range roles {
		r.Get(role.Path, hub.Handler(role).ServeHTTP)
		slog.Debug("router: endpoint mounted", "role", role.Name, "path", role.Path)
	}

	apiHandler.RegisterRoutes(r)
	r.Method(http.MethodGet, "/metrics", m.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok")) //nolint:errcheck
	})

	return r
}

// requestLogger logs each request at debug level once it completes. WebSocket
// requests complete when the session ends.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			slog.Debug("http: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
