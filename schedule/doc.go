// Package schedule runs stored prompts on recurring intervals.
//
// A Scheduler pairs a prompt with an IntervalSchedule. Its NextRun is
// computed eagerly on creation and advanced on every Fire:
//
//	PENDING --(now >= NextRun)--> DUE --Fire--> PENDING
//	                                      \---> EXHAUSTED (NextRun == nil)
//
// Intervals use the grammar <n><unit> with units min, h, d and M. Days and
// months use calendar arithmetic. DaysOfWeek (0=Sunday..6=Saturday)
// restricts the weekdays a run may land on; excluded candidates are skipped
// by further interval steps.
//
// Service polls a Store on an injected clock and launches due schedulers
// through a prompt.Launcher.
package schedule
