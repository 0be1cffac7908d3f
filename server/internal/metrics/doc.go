// Package metrics defines the hub's Prometheus instruments.
//
// New builds a private prometheus.Registry (no global state) holding:
//
//	devicehub_messages_published_total      publish calls, by origin
//	devicehub_messages_delivered_total      successful per-subscriber sends
//	devicehub_send_failures_total           per-subscriber send failures
//	devicehub_malformed_messages_total      rejected control messages, by role
//	devicehub_sessions_opened_total         accepted connections, by role
//	devicehub_accept_failures_total         failed handshakes, by role
//	devicehub_sessions_active               live sessions, by role
//	devicehub_topics                        topics with at least one subscriber
//
// Handler serves the text exposition format at /metrics.
package metrics
