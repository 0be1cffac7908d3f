// Package router assembles the devicehub HTTP surface on a go-chi router:
// one WebSocket endpoint per configured role, the REST API under /api/v1,
// Prometheus metrics at /metrics and a plain liveness probe at /healthz.
package router
