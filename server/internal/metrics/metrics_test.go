package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/common/expfmt"
)

func TestCounters_Increment(t *testing.T) {
	m := New()
	m.MessagesPublished.WithLabelValues(OriginSession).Inc()
	m.MessagesDelivered.Add(3)
	m.SendFailures.Inc()

	if v := testutil.ToFloat64(m.MessagesPublished.WithLabelValues(OriginSession)); v != 1 {
		t.Errorf("published: got %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.MessagesDelivered); v != 3 {
		t.Errorf("delivered: got %v, want 3", v)
	}
	if v := testutil.ToFloat64(m.SendFailures); v != 1 {
		t.Errorf("send failures: got %v, want 1", v)
	}
}

func TestTopicGauge_ReadsCallback(t *testing.T) {
	m := New()
	n := 4
	m.RegisterTopicGauge(func() int { return n })

	mfs, err := m.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "devicehub_topics" {
			continue
		}
		if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 4 {
			t.Errorf("devicehub_topics: got %v, want 4", v)
		}
		return
	}
	t.Fatal("devicehub_topics: not gathered")
}

func TestHandler_TextExposition(t *testing.T) {
	m := New()
	m.SessionsActive.WithLabelValues("app").Set(2)
	m.SessionsOpened.WithLabelValues("device").Inc()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}

	active, ok := mfs["devicehub_sessions_active"]
	if !ok {
		t.Fatal("devicehub_sessions_active: missing")
	}
	m0 := active.GetMetric()[0]
	if m0.GetLabel()[0].GetValue() != "app" || m0.GetGauge().GetValue() != 2 {
		t.Errorf("sessions_active: got %v", m0)
	}
	if _, ok := mfs["devicehub_sessions_opened_total"]; !ok {
		t.Error("devicehub_sessions_opened_total: missing")
	}
}
