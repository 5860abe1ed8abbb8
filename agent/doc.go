// Package agent binds a model backend, a tool set and instructions into a
// single invocable unit.
//
// A process builds one Registry holding the agent definitions (templates),
// the per-tier model backends and the tool factory constructors. Each
// session owns a Set which lazily instantiates session-scoped agents from the
// registry; closing the Set tears down every agent and the tool factories
// they created without touching other sessions.
//
// Agent.Run interprets the tier escalation prefixes ("+" selects the BIG
// backend, "-" the SMALL one), appends the command to the thread and drives
// the model/tool loop asynchronously. Output, including failures, is
// delivered exclusively through the returned core.Stream.
package agent
