// Package broadcast fans a published message out to a topic's subscribers.
//
// Engine.Publish takes a registry snapshot and sends to every subscriber in
// it. A failed send is counted and logged, never returned: delivery is
// best-effort, at most once per live connection, with no ordering across
// subscribers. The engine never mutates the registry; a broken connection is
// removed by its own session's cleanup.
package broadcast
