// Package scrape reads a devicehub-server /metrics endpoint and condenses the
// Prometheus exposition into HubStats.
//
// Fetch performs the HTTP GET with an Accept header for the text format and
// parses the body with expfmt. Counters spread over labels (origin, role)
// are summed; per-label breakdowns are kept where they matter.
package scrape
