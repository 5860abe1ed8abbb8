// Package memory contains concrete core.MemoryStore implementations. Entries
// are keyed by scope (usually "project:<name>") so they outlive the session
// that wrote them. Depend on core.MemoryStore and select an implementation at
// wiring time; a SQLite-backed store lives in store/sqlite.
package memory
