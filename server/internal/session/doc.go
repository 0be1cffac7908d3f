// Package session runs the per-connection lifecycle shared by every client role.
//
// A Session moves through Connecting -> Active -> Closing -> Closed. While
// Active it reads control messages from its Conn:
//
//	{"action": "subscribe",   "topic": "sensor/42"}
//	{"action": "unsubscribe", "topic": "sensor/42"}
//	{"action": "publish",     "topic": "sensor/42", "message": "100"}
//
// and applies them to the shared registry (subscribe, unsubscribe) or the
// broadcast engine (publish). A Role decides which actions its endpoint
// accepts; anything else, and anything that is not valid JSON, is logged and
// skipped without ending the session.
//
// The session keeps its own set of subscribed topics. On every exit from
// Active (peer disconnect, transport error, context cancellation, or a panic
// in the loop) it unsubscribes each of those topics and closes the Conn,
// exactly once.
//
// Hub serves one http.Handler per Role, tracks live sessions, and closes all
// of them when its Run context ends.
package session
