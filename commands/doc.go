// Package commands provides the built-in command handlers and assembles
// them into a dispatch tree.
//
//	help                          list commands
//	load file <path>              append a file to the thread
//	load folder <path>            load every file of a directory
//	memory add|search|curate      project memory
//	ask <text>                    run the default agent
//	@<agent> [+|-] <text>         run a named agent
//	prompt list|show|add|run|delete
//	schedule list|add|enable|disable|delete
//	thread show                   context window statistics
package commands
