// Package thread implements the conversation thread of a session: an
// append-only, ordered message log and the context-window partition that
// selects the oldest-first prefix of the log fitting a character budget.
//
// Partition is recomputed before every model invocation; overflow messages
// stay in the thread and remain addressable through Thread.Overflow.
package thread
