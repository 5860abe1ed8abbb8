// Package prompt implements stored command templates. A Prompt is an ordered
// list of command lines with {{name}} placeholders; materializing it with a
// parameter map yields the commands a session executes. Prompts are run
// interactively ("prompt run"), by the scheduler, or through a webhook
// trigger.
package prompt
