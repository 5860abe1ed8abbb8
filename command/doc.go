// Package command implements the command dispatch tree. A line of text is
// split into its first token and a remainder; composite Groups route the
// token to a child handler, leaf handlers run domain behavior and may append
// follow-up commands to the session Queue. A Processor drains the queue in
// FIFO order, which is the unit of one user turn.
package command
