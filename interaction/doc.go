// Package interaction provides Interaction implementations: Channel for live
// consumers that answer asynchronously, Scripted for unattended sessions and
// Recorder for tests and audits.
package interaction
