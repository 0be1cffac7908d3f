package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/devicehub/devicehub/server/internal/broadcast"
	"github.com/devicehub/devicehub/server/internal/metrics"
	"github.com/devicehub/devicehub/server/internal/registry"
)

// maxBodyBytes bounds a publish request body.
const maxBodyBytes = 1 << 20

// Publisher hands messages to the broadcast engine.
type Publisher interface {
	PublishFrom(origin, topic, message string) broadcast.Result
}

// SessionCounter reports live WebSocket sessions. *session.Hub implements it.
type SessionCounter interface {
	Count() int
	CountByRole() map[string]int
}

// Handler serves the /api/v1 endpoints.
type Handler struct {
	reg      *registry.Registry
	pub      Publisher
	sessions SessionCounter
}

// NewHandler creates a Handler reading topics from reg, publishing through pub
// and reporting session counts from sessions.
func NewHandler(reg *registry.Registry, pub Publisher, sessions SessionCounter) *Handler {
	return &Handler{reg: reg, pub: pub, sessions: sessions}
}

// New returns a standalone http.Handler serving only the API routes.
func New(reg *registry.Registry, pub Publisher, sessions SessionCounter) http.Handler {
	r := chi.NewRouter()
	NewHandler(reg, pub, sessions).RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts the API under /api/v1 on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			jsonErr(w, http.StatusNotFound, "not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		})

		r.Post("/publish", h.publish)
		r.Get("/topics", h.listTopics)
		r.Get("/topics/*", h.getTopic)
		r.Get("/health", h.health)
	})
}

// --- route handlers ---------------------------------------------------------

// publish handles POST /api/v1/publish.
func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Topic == "" {
		jsonErr(w, http.StatusBadRequest, "topic is required")
		return
	}
	if req.Message == nil {
		jsonErr(w, http.StatusBadRequest, "message is required")
		return
	}

	res := h.pub.PublishFrom(metrics.OriginREST, req.Topic, *req.Message)
	jsonResp(w, http.StatusOK, res)
}

// listTopics handles GET /api/v1/topics.
func (h *Handler) listTopics(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, h.reg.Topics())
}

// getTopic handles GET /api/v1/topics/{topic}. The topic is everything after
// the prefix, so "sensor/42" needs no escaping.
func (h *Handler) getTopic(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(topic)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid topic")
			return
		}
		topic = unescaped
	}
	if topic == "" {
		jsonErr(w, http.StatusBadRequest, "invalid topic")
		return
	}

	n := h.reg.Count(topic)
	if n == 0 {
		jsonErr(w, http.StatusNotFound, "topic not found")
		return
	}
	jsonResp(w, http.StatusOK, registry.TopicInfo{Topic: topic, Subscribers: n})
}

// health handles GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, http.StatusOK, HealthResponse{
		State:    "ok",
		Sessions: h.sessions.Count(),
		Topics:   h.reg.Len(),
		ByRole:   h.sessions.CountByRole(),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
