package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/devicehub/devicehub/server/internal/api"
	"github.com/devicehub/devicehub/server/internal/broadcast"
	"github.com/devicehub/devicehub/server/internal/metrics"
	"github.com/devicehub/devicehub/server/internal/registry"
)

// --- test helpers -----------------------------------------------------------

type recorder struct {
	id string

	mu   sync.Mutex
	msgs []string
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, message)
	return nil
}

type fixedSessions map[string]int

func (f fixedSessions) Count() int {
	n := 0
	for _, v := range f {
		n += v
	}
	return n
}

func (f fixedSessions) CountByRole() map[string]int { return f }

func newHandler(reg *registry.Registry, sessions fixedSessions) http.Handler {
	return api.New(reg, broadcast.New(reg, metrics.New()), sessions)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func wantJSONError(t *testing.T, rr *httptest.ResponseRecorder, code int) {
	t.Helper()
	if rr.Code != code {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["error"] == "" {
		t.Error("error field is empty")
	}
}

// --- /api/v1/publish --------------------------------------------------------

func TestPublish_DeliversToSubscribers(t *testing.T) {
	reg := registry.New()
	c1 := &recorder{id: "c1"}
	reg.Subscribe("sensor/42", c1)
	h := newHandler(reg, nil)

	rr := do(t, h, http.MethodPost, "/api/v1/publish", `{"topic":"sensor/42","message":"100"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var res broadcast.Result
	decode(t, rr, &res)
	if res.Topic != "sensor/42" || res.Subscribers != 1 || res.Delivered != 1 || res.Failed != 0 {
		t.Errorf("result: got %+v", res)
	}
	if len(c1.msgs) != 1 || c1.msgs[0] != "100" {
		t.Errorf("c1 received %v, want [100]", c1.msgs)
	}
}

func TestPublish_EmptyMessageAllowed(t *testing.T) {
	h := newHandler(registry.New(), nil)
	rr := do(t, h, http.MethodPost, "/api/v1/publish", `{"topic":"t","message":""}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
}

func TestPublish_BadRequests(t *testing.T) {
	h := newHandler(registry.New(), nil)
	for name, body := range map[string]string{
		"invalid json":    `{"topic":`,
		"missing topic":   `{"message":"x"}`,
		"missing message": `{"topic":"t"}`,
		"message number":  `{"topic":"t","message":5}`,
	} {
		t.Run(name, func(t *testing.T) {
			wantJSONError(t, do(t, h, http.MethodPost, "/api/v1/publish", body), http.StatusBadRequest)
		})
	}
}

func TestPublish_BodyTooLarge(t *testing.T) {
	h := newHandler(registry.New(), nil)
	body := `{"topic":"t","message":"` + strings.Repeat("x", 2<<20) + `"}`
	wantJSONError(t, do(t, h, http.MethodPost, "/api/v1/publish", body), http.StatusRequestEntityTooLarge)
}

func TestPublish_WrongMethod(t *testing.T) {
	h := newHandler(registry.New(), nil)
	wantJSONError(t, do(t, h, http.MethodGet, "/api/v1/publish", ""), http.StatusMethodNotAllowed)
}

// --- /api/v1/topics ---------------------------------------------------------

func TestTopics_Empty(t *testing.T) {
	h := newHandler(registry.New(), nil)
	rr := do(t, h, http.MethodGet, "/api/v1/topics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var out []registry.TopicInfo
	decode(t, rr, &out)
	if out == nil || len(out) != 0 {
		t.Errorf("got %v, want empty array", out)
	}
}

func TestTopics_SortedWithCounts(t *testing.T) {
	reg := registry.New()
	reg.Subscribe("sensor/42", &recorder{id: "a"})
	reg.Subscribe("sensor/42", &recorder{id: "b"})
	reg.Subscribe("cam/1", &recorder{id: "c"})
	h := newHandler(reg, nil)

	var out []registry.TopicInfo
	decode(t, do(t, h, http.MethodGet, "/api/v1/topics", ""), &out)

	want := []registry.TopicInfo{{Topic: "cam/1", Subscribers: 1}, {Topic: "sensor/42", Subscribers: 2}}
	if len(out) != len(want) {
		t.Fatalf("got %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("[%d]: got %+v, want %+v", i, out[i], want[i])
		}
	}
}

func TestTopic_WithSlash(t *testing.T) {
	reg := registry.New()
	reg.Subscribe("sensor/42", &recorder{id: "a"})
	h := newHandler(reg, nil)

	rr := do(t, h, http.MethodGet, "/api/v1/topics/sensor/42", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var info registry.TopicInfo
	decode(t, rr, &info)
	if info.Topic != "sensor/42" || info.Subscribers != 1 {
		t.Errorf("got %+v", info)
	}
}

func TestTopic_Escaped(t *testing.T) {
	reg := registry.New()
	reg.Subscribe("room 1", &recorder{id: "a"})
	h := newHandler(reg, nil)

	rr := do(t, h, http.MethodGet, "/api/v1/topics/room%201", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
}

func TestTopic_Unknown_404(t *testing.T) {
	h := newHandler(registry.New(), nil)
	wantJSONError(t, do(t, h, http.MethodGet, "/api/v1/topics/nope", ""), http.StatusNotFound)
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_Counts(t *testing.T) {
	reg := registry.New()
	reg.Subscribe("a", &recorder{id: "x"})
	reg.Subscribe("b", &recorder{id: "y"})
	h := newHandler(reg, fixedSessions{"device": 2, "app": 1})

	rr := do(t, h, http.MethodGet, "/api/v1/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.State != "ok" || resp.Sessions != 3 || resp.Topics != 2 {
		t.Errorf("got %+v", resp)
	}
	if resp.ByRole["device"] != 2 || resp.ByRole["app"] != 1 {
		t.Errorf("by_role: got %v", resp.ByRole)
	}
}

func TestHealth_WrongMethod(t *testing.T) {
	h := newHandler(registry.New(), nil)
	wantJSONError(t, do(t, h, http.MethodPost, "/api/v1/health", ""), http.StatusMethodNotAllowed)
}

func TestUnknownRoute_JSON404(t *testing.T) {
	h := newHandler(registry.New(), nil)
	wantJSONError(t, do(t, h, http.MethodGet, "/api/v1/nothing", ""), http.StatusNotFound)
}
