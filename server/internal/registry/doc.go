// Package registry holds the process-wide topic membership table.
//
// A Registry maps a topic name to the set of Subscribers currently interested
// in it. Every operation takes the registry's own lock, so callers never
// coordinate externally. No connection I/O happens while the lock is held:
// Snapshot hands back a copy that publishers iterate after the lock is released.
//
// Topics are created on first Subscribe and pruned as soon as their last
// subscriber leaves, so Topics only ever lists topics with live members.
package registry
