package schedule

import (
	"time"

	"github.com/hupe1980/cmdmesh/core"
)

// State is the derived state of a scheduler at an instant.
type State string

const (
	StateDisabled  State = "DISABLED"
	StateExhausted State = "EXHAUSTED"
	StateDue       State = "DUE"
	StatePending   State = "PENDING"
)

// Scheduler runs a prompt on an IntervalSchedule.
//
// NextRun is nil once the schedule is exhausted, and strictly after LastRun
// otherwise.
type Scheduler struct {
	ID              string            `json:"id"`
	Enabled         bool              `json:"enabled"`
	PromptID        string            `json:"prompt_id"`
	Params          map[string]string `json:"params,omitempty"`
	Schedule        IntervalSchedule  `json:"schedule"`
	Project         string            `json:"project,omitempty"`
	CreatedBy       string            `json:"created_by,omitempty"`
	LastRun         *time.Time        `json:"last_run,omitempty"`
	NextRun         *time.Time        `json:"next_run,omitempty"`
	OccurrenceCount int               `json:"occurrence_count"`
}

// Options configures New.
type Options struct {
	ID        string
	Params    map[string]string
	Project   string
	CreatedBy string
	// Disabled creates the scheduler frozen.
	Disabled bool
}

// New validates sched and creates an enabled scheduler whose NextRun is the
// first permitted run not before now.
func New(promptID string, sched IntervalSchedule, now time.Time, optFns ...func(o *Options)) (*Scheduler, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.ID == "" {
		opts.ID = core.NewID()
	}
	if promptID == "" {
		return nil, core.Errorf(core.ErrCodeInvalidSchedule, "scheduler needs a prompt")
	}

	s := &Scheduler{
		ID:        opts.ID,
		Enabled:   !opts.Disabled,
		PromptID:  promptID,
		Params:    cloneParams(opts.Params),
		Schedule:  sched.Clone(),
		Project:   opts.Project,
		CreatedBy: opts.CreatedBy,
	}
	if err := s.recompute(now); err != nil {
		return nil, err
	}

	return s, nil
}

// Clone returns a deep copy.
func (s *Scheduler) Clone() *Scheduler {
	c := *s
	c.Params = cloneParams(s.Params)
	c.Schedule = s.Schedule.Clone()
	c.LastRun = cloneTime(s.LastRun)
	c.NextRun = cloneTime(s.NextRun)
	return &c
}

// State derives the scheduler state at now.
func (s *Scheduler) State(now time.Time) State {
	switch {
	case !s.Enabled:
		return StateDisabled
	case s.NextRun == nil:
		return StateExhausted
	case !now.Before(*s.NextRun):
		return StateDue
	default:
		return StatePending
	}
}

// Fire records a run at at and advances NextRun. It fails unless the
// scheduler is DUE. When no permitted run can be found, NextRun becomes nil
// and the error is returned after the run was recorded.
func (s *Scheduler) Fire(at time.Time) error {
	if st := s.State(at); st != StateDue {
		return core.Errorf(core.ErrCodeInvalidSchedule, "scheduler %s is %s, not due", s.ID, st)
	}

	c, err := s.Schedule.compile()
	if err != nil {
		return err
	}

	s.LastRun = &at
	s.OccurrenceCount++

	if c.occurrencesReached(s.OccurrenceCount) {
		s.NextRun = nil
		return nil
	}

	// NextRun sits on the start grid and at is not before it, so the next
	// grid point after at is NextRun plus one interval, or a later point when
	// runs were missed while the process was down.
	return s.settle(c, c.interval.firstAtOrAfter(c.start, at.Add(time.Nanosecond)))
}

// Disable freezes the scheduler.
func (s *Scheduler) Disable() { s.Enabled = false }

// Enable unfreezes the scheduler and recomputes NextRun from now.
func (s *Scheduler) Enable(now time.Time) error {
	s.Enabled = true
	return s.recompute(now)
}

// Reset clears the run history and recomputes NextRun from now.
func (s *Scheduler) Reset(now time.Time) error {
	s.LastRun = nil
	s.OccurrenceCount = 0
	return s.recompute(now)
}

// Update replaces the schedule and recomputes NextRun from now. An invalid
// schedule leaves the scheduler unchanged.
func (s *Scheduler) Update(sched IntervalSchedule, now time.Time) error {
	if err := sched.Validate(); err != nil {
		return err
	}
	prev := s.Schedule
	s.Schedule = sched.Clone()
	if err := s.recompute(now); err != nil {
		s.Schedule = prev
		return err
	}
	return nil
}

func (s *Scheduler) recompute(now time.Time) error {
	c, err := s.Schedule.compile()
	if err != nil {
		return err
	}

	if c.occurrencesReached(s.OccurrenceCount) {
		s.NextRun = nil
		return nil
	}

	from := now
	if s.LastRun != nil && !from.After(*s.LastRun) {
		from = s.LastRun.Add(time.Nanosecond)
	}

	return s.settle(c, c.interval.firstAtOrAfter(c.start, from))
}

// settle applies the weekday filter and the end timestamp to candidate.
func (s *Scheduler) settle(c *compiled, candidate time.Time) error {
	next, ok := c.permittedFrom(candidate)
	if !ok {
		s.NextRun = nil
		return core.Errorf(core.ErrCodeNoPermittedWeekday, "scheduler %s: no permitted weekday after %s", s.ID, candidate.Format(time.RFC3339))
	}
	if c.beyondEnd(next) {
		s.NextRun = nil
		return nil
	}
	s.NextRun = &next
	return nil
}

func cloneParams(p map[string]string) map[string]string {
	if p == nil {
		return nil
	}
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
