package broadcast_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/devicehub/devicehub/server/internal/broadcast"
	"github.com/devicehub/devicehub/server/internal/metrics"
	"github.com/devicehub/devicehub/server/internal/registry"
)

// --- helpers ----------------------------------------------------------------

var errBroken = errors.New("connection broken")

// recorder is a registry.Subscriber that captures every message sent to it.
type recorder struct {
	id   string
	fail bool

	mu   sync.Mutex
	msgs []string
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(message string) error {
	if r.fail {
		return errBroken
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message)
	return nil
}

func (r *recorder) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func newEngine() (*broadcast.Engine, *registry.Registry, *metrics.Metrics) {
	reg := registry.New()
	m := metrics.New()
	return broadcast.New(reg, m), reg, m
}

// --- tests ------------------------------------------------------------------

func TestPublish_DeliversExactlyOnce(t *testing.T) {
	eng, reg, _ := newEngine()
	c1 := &recorder{id: "c1"}
	reg.Subscribe("sensor/42", c1)

	res := eng.Publish("sensor/42", "100")

	if res.Delivered != 1 || res.Failed != 0 {
		t.Errorf("Result: got %+v, want 1 delivered", res)
	}
	if got := c1.received(); len(got) != 1 || got[0] != "100" {
		t.Errorf("c1 received %v, want [100]", got)
	}
}

func TestPublish_AfterUnsubscribe_NoDelivery(t *testing.T) {
	eng, reg, _ := newEngine()
	c1 := &recorder{id: "c1"}
	reg.Subscribe("sensor/42", c1)
	eng.Publish("sensor/42", "100")

	reg.Unsubscribe("sensor/42", c1)
	res := eng.Publish("sensor/42", "101")

	if res.Subscribers != 0 || res.Delivered != 0 {
		t.Errorf("Result: got %+v, want zero deliveries", res)
	}
	if got := c1.received(); len(got) != 1 {
		t.Errorf("c1 received %v, want only the first message", got)
	}
}

func TestPublish_UnknownTopic_NoOp(t *testing.T) {
	eng, _, _ := newEngine()
	res := eng.Publish("nobody/listens", "x")
	if res != (broadcast.Result{Topic: "nobody/listens"}) {
		t.Errorf("Result: got %+v, want zero value with topic", res)
	}
}

func TestPublish_FailureDoesNotSuppressOthers(t *testing.T) {
	eng, reg, m := newEngine()
	c1 := &recorder{id: "c1"}
	c2 := &recorder{id: "c2", fail: true}
	reg.Subscribe("cam/1", c1)
	reg.Subscribe("cam/1", c2)

	res := eng.Publish("cam/1", "frame")

	if res.Delivered != 1 || res.Failed != 1 {
		t.Errorf("Result: got %+v, want 1 delivered 1 failed", res)
	}
	if got := c1.received(); len(got) != 1 || got[0] != "frame" {
		t.Errorf("c1 received %v, want [frame]", got)
	}
	if v := testutil.ToFloat64(m.SendFailures); v != 1 {
		t.Errorf("send failures metric: got %v, want 1", v)
	}
}

func TestPublish_AllButOneFail(t *testing.T) {
	eng, reg, _ := newEngine()
	const n = 10
	ok := &recorder{id: "ok"}
	reg.Subscribe("t", ok)
	for i := 0; i < n-1; i++ {
		reg.Subscribe("t", &recorder{id: "bad", fail: true})
	}

	res := eng.Publish("t", "m")
	if res.Subscribers != n || res.Delivered != 1 || res.Failed != n-1 {
		t.Errorf("Result: got %+v", res)
	}
	if len(ok.received()) != 1 {
		t.Error("surviving subscriber did not receive the message")
	}
}

func TestPublish_FailureLeavesRegistryUntouched(t *testing.T) {
	eng, reg, _ := newEngine()
	bad := &recorder{id: "bad", fail: true}
	reg.Subscribe("t", bad)

	eng.Publish("t", "m")

	if n := reg.Count("t"); n != 1 {
		t.Errorf("Count: got %d, want 1 (engine must not unsubscribe)", n)
	}
}

func TestPublishFrom_LabelsOrigin(t *testing.T) {
	eng, _, m := newEngine()
	eng.PublishFrom(metrics.OriginREST, "t", "m")
	eng.PublishFrom(metrics.OriginREST, "t", "m")

	if v := testutil.ToFloat64(m.MessagesPublished.WithLabelValues(metrics.OriginREST)); v != 2 {
		t.Errorf("published{origin=rest}: got %v, want 2", v)
	}
}

func TestPublish_ConcurrentWithSubscribe(t *testing.T) {
	eng, reg, _ := newEngine()
	c1 := &recorder{id: "c1"}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		reg.Subscribe("t", c1)
	}()
	var res broadcast.Result
	go func() {
		defer wg.Done()
		res = eng.Publish("t", "m")
	}()
	wg.Wait()

	// Either the publish saw c1 or it did not; never a partial state.
	got := len(c1.received())
	if got != res.Delivered {
		t.Errorf("c1 received %d messages, Result.Delivered=%d", got, res.Delivered)
	}
	if res.Subscribers != res.Delivered {
		t.Errorf("Result: got %+v, subscribers != delivered", res)
	}
}
