package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const defaultTimeout = 10 * time.Second

// Metric family names exported by devicehub-server.
const (
	familyPublished = "devicehub_messages_published_total"
	familyDelivered = "devicehub_messages_delivered_total"
	familyFailures  = "devicehub_send_failures_total"
	familyMalformed = "devicehub_malformed_messages_total"
	familyOpened    = "devicehub_sessions_opened_total"
	familyActive    = "devicehub_sessions_active"
	familyTopics    = "devicehub_topics"
)

// HubStats is a point-in-time summary of hub counters.
type HubStats struct {
	Published      float64
	PublishedBy    map[string]float64 // by origin
	Delivered      float64
	SendFailures   float64
	Malformed      float64
	SessionsOpened float64
	SessionsActive float64
	ActiveByRole   map[string]float64
	Topics         float64
}

// NewClient returns an HTTP client with the default scrape timeout.
func NewClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// Stats fetches url and summarizes it.
func Stats(ctx context.Context, client *http.Client, url string) (*HubStats, error) {
	mfs, err := Fetch(ctx, client, url)
	if err != nil {
		return nil, err
	}
	return Summarize(mfs), nil
}

// Fetch performs an HTTP GET to url and returns parsed metric families.
func Fetch(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("scrape: build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scrape: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scrape: unexpected status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func Parse(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("scrape: parse prometheus text: %w", err)
	}
	return mfs, nil
}

// Summarize extracts HubStats from parsed families. Missing families read as 0.
func Summarize(mfs map[string]*dto.MetricFamily) *HubStats {
	return &HubStats{
		Published:      sumFamily(mfs[familyPublished]),
		PublishedBy:    byLabel(mfs[familyPublished], "origin"),
		Delivered:      sumFamily(mfs[familyDelivered]),
		SendFailures:   sumFamily(mfs[familyFailures]),
		Malformed:      sumFamily(mfs[familyMalformed]),
		SessionsOpened: sumFamily(mfs[familyOpened]),
		SessionsActive: sumFamily(mfs[familyActive]),
		ActiveByRole:   byLabel(mfs[familyActive], "role"),
		Topics:         sumFamily(mfs[familyTopics]),
	}
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += value(m)
	}
	return total
}

// byLabel sums mf per value of label.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	out := make(map[string]float64)
	if mf == nil {
		return out
	}
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += value(m)
			}
		}
	}
	return out
}

func value(m *dto.Metric) float64 {
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	return 0
}
