package broadcast

import (
	"log/slog"

	"github.com/devicehub/devicehub/server/internal/metrics"
	"github.com/devicehub/devicehub/server/internal/registry"
)

// Result reports the outcome of one Publish call.
type Result struct {
	Topic       string `json:"topic"`
	Subscribers int    `json:"subscribers"`
	Delivered   int    `json:"delivered"`
	Failed      int    `json:"failed"`
}

// Engine publishes messages to the subscribers held in a registry.
type Engine struct {
	reg     *registry.Registry
	metrics *metrics.Metrics
}

// New creates an Engine reading subscribers from reg.
func New(reg *registry.Registry, m *metrics.Metrics) *Engine {
	return &Engine{reg: reg, metrics: m}
}

// Publish sends message to every current subscriber of topic. Unknown or
// empty topics yield a Result with zero deliveries.
func (e *Engine) Publish(topic, message string) Result {
	return e.PublishFrom(metrics.OriginInternal, topic, message)
}

// PublishFrom is Publish with origin recorded as the metrics label
// (one of the metrics.Origin* constants).
func (e *Engine) PublishFrom(origin, topic, message string) Result {
	subs := e.reg.Snapshot(topic)
	res := Result{Topic: topic, Subscribers: len(subs)}

	for _, s := range subs {
		if err := s.Send(message); err != nil {
			res.Failed++
			slog.Debug("broadcast: send failed",
				"topic", topic,
				"conn", s.ID(),
				"err", err,
			)
			continue
		}
		res.Delivered++
	}

	e.metrics.MessagesPublished.WithLabelValues(origin).Inc()
	e.metrics.MessagesDelivered.Add(float64(res.Delivered))
	e.metrics.SendFailures.Add(float64(res.Failed))

	if res.Failed > 0 {
		slog.Info("broadcast: partial delivery",
			"topic", topic,
			"delivered", res.Delivered,
			"failed", res.Failed,
		)
	}
	return res
}
