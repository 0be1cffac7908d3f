package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "devicehub"

// Publish origins used as the "origin" label on MessagesPublished.
const (
	OriginSession  = "session"
	OriginREST     = "rest"
	OriginGRPC     = "grpc"
	OriginInternal = "internal"
)

// Metrics holds every instrument the hub updates.
type Metrics struct {
	reg *prometheus.Registry

	MessagesPublished *prometheus.CounterVec
	MessagesDelivered prometheus.Counter
	SendFailures      prometheus.Counter
	MalformedMessages *prometheus.CounterVec
	SessionsOpened    *prometheus.CounterVec
	AcceptFailures    *prometheus.CounterVec
	SessionsActive    *prometheus.GaugeVec
}

// New creates a Metrics backed by its own registry. The Go runtime and
// process collectors are included.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		MessagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages handed to the broadcast engine.",
		}, []string{"origin"}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Per-subscriber sends that succeeded.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Per-subscriber sends that failed.",
		}),
		MalformedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_messages_total",
			Help:      "Control messages rejected as malformed.",
		}, []string{"role"}),
		SessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Connections accepted.",
		}, []string{"role"}),
		AcceptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_failures_total",
			Help:      "Connection handshakes that failed.",
		}, []string{"role"}),
		SessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently between accept and cleanup.",
		}, []string{"role"}),
	}

	m.reg.MustRegister(
		m.MessagesPublished,
		m.MessagesDelivered,
		m.SendFailures,
		m.MalformedMessages,
		m.SessionsOpened,
		m.AcceptFailures,
		m.SessionsActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterTopicGauge exposes fn as devicehub_topics. It must be called at most once.
func (m *Metrics) RegisterTopicGauge(fn func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "topics",
		Help:      "Topics with at least one subscriber.",
	}, func() float64 { return float64(fn()) }))
}

// Gather returns the current value of every registered metric family.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.reg.Gather()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
