// Package session manages the lifecycle of interactive, scheduled and
// one-shot sessions.
//
// A Manager is built once per process and holds the shared services: the
// agent registry, the integration pool, the dispatch tree and the thread
// store. Each Session owns its own command context, thread, queue and agent
// set, so sessions may run concurrently without sharing mutable state.
//
// Within a session at most one queue drain runs at a time. Closing a
// session is idempotent, tears down its agents and tool factories, and
// never affects other sessions.
package session
