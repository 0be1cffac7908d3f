// Package subscriber holds a long-lived WebSocket subscription to a devicehub
// endpoint.
//
// Subscriber.Run dials the endpoint, sends one subscribe control message per
// topic and passes every received text frame to a handler. When the
// connection drops it reconnects with truncated exponential backoff
// (1s→30s, ±25% jitter) and subscribes again, since the hub forgets a
// connection's topics when it closes.
//
// The dial field is injectable for testing.
package subscriber
