// Package journal persists an audit trail of relayed messages in SQLite.
//
// The journal is optional: when disabled in configuration, the relay
// runs without it. When enabled, every mirrored message is appended to
// the relay_journal table with its bridge, direction, topic, payload,
// and delivery flags, giving operators a local record of what crossed
// the bridge and when. Prune keeps the file bounded on long-running
// installations.
//
// SQLite is opened with WAL mode and a busy timeout so journal writes
// never block message dispatch for long under contention.
package journal
