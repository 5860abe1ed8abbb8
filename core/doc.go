// Package core provides the foundational types shared by every layer of
// cmdmesh:
//
//   - Events: the closed set of messages (questions, answers, text, warnings,
//     errors, tool traffic) exchanged with consumers, keyed by a monotonic
//     sequence so answers correlate with their question unambiguously
//   - Stream: a push-based, multi-subscriber event stream with explicit
//     completion and failure states
//   - Interaction: the contract a consumer (terminal, remote bridge,
//     automated caller) satisfies to receive events and answer questions
//   - Content / Part: role-based message content reused by threads and models
//   - Error: coded errors inspected with CodeOf
//
// The package keeps implementation concerns (dispatch, agents, scheduling,
// persistence) out of scope and exposes small interfaces for them.
package core
