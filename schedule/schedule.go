package schedule

import (
	"time"

	"github.com/hupe1980/cmdmesh/core"
)

// EndType selects how a schedule ends.
type EndType string

const (
	EndOccurrences EndType = "occurrences"
	EndTimestamp   EndType = "endTimestamp"
)

// EndCondition stops a schedule after a number of runs or at an instant.
type EndCondition struct {
	Type        EndType   `json:"type" yaml:"type"`
	Occurrences int       `json:"occurrences,omitempty" yaml:"occurrences,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// IntervalSchedule describes when a scheduler runs.
type IntervalSchedule struct {
	Start    time.Time `json:"start" yaml:"start"`
	Interval string    `json:"interval" yaml:"interval"`
	// DaysOfWeek restricts runs to these weekdays (0=Sunday). Empty means
	// every day.
	DaysOfWeek []int         `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty"`
	End        *EndCondition `json:"end_condition,omitempty" yaml:"end_condition,omitempty"`
}

// Clone returns a deep copy.
func (s IntervalSchedule) Clone() IntervalSchedule {
	c := s
	c.DaysOfWeek = append([]int(nil), s.DaysOfWeek...)
	if s.End != nil {
		end := *s.End
		c.End = &end
	}
	return c
}

// Validate checks the interval, the weekday filter and the end condition,
// and that at least one permitted weekday is reachable from Start.
func (s IntervalSchedule) Validate() error {
	_, err := s.compile()
	return err
}

// compiled is a validated schedule ready for next-run computation.
type compiled struct {
	start    time.Time
	interval Interval
	days     [7]bool
	filtered bool
	end      *EndCondition
}

func (s IntervalSchedule) compile() (*compiled, error) {
	if s.Start.IsZero() {
		return nil, core.Errorf(core.ErrCodeInvalidSchedule, "schedule start must be set")
	}

	iv, err := ParseInterval(s.Interval)
	if err != nil {
		return nil, err
	}

	c := &compiled{start: s.Start, interval: iv, filtered: len(s.DaysOfWeek) > 0}
	for _, d := range s.DaysOfWeek {
		if d < 0 || d > 6 {
			return nil, core.Errorf(core.ErrCodeInvalidSchedule, "day of week %d out of range 0..6", d)
		}
		if c.days[d] {
			return nil, core.Errorf(core.ErrCodeInvalidSchedule, "day of week %d listed twice", d)
		}
		c.days[d] = true
	}

	if s.End != nil {
		switch s.End.Type {
		case EndOccurrences:
			if s.End.Occurrences < 1 {
				return nil, core.Errorf(core.ErrCodeInvalidEndCondition, "occurrences must be at least 1, got %d", s.End.Occurrences)
			}
		case EndTimestamp:
			if s.End.Timestamp.IsZero() || !s.End.Timestamp.After(s.Start) {
				return nil, core.Errorf(core.ErrCodeInvalidEndCondition, "end timestamp must be after start")
			}
		default:
			return nil, core.Errorf(core.ErrCodeInvalidEndCondition, "unknown end condition type %q", s.End.Type)
		}
		end := *s.End
		c.end = &end
	}

	if _, ok := c.permittedFrom(c.start); !ok {
		return nil, core.Errorf(core.ErrCodeNoPermittedWeekday, "interval %s starting %s never lands on a permitted weekday", iv, s.Start.Weekday())
	}

	return c, nil
}

func (c *compiled) permitted(t time.Time) bool {
	return !c.filtered || c.days[t.Weekday()]
}

// permittedFrom walks the start grid forward from t, itself a grid point,
// until a permitted weekday. The walk is bounded by one full weekday cycle of
// the interval.
func (c *compiled) permittedFrom(t time.Time) (time.Time, bool) {
	for i := 0; i <= c.interval.weekSteps(); i++ {
		if c.permitted(t) {
			return t, true
		}
		t = c.interval.firstAtOrAfter(c.start, t.Add(time.Nanosecond))
	}
	return time.Time{}, false
}

// beyondEnd reports whether t lies after the end timestamp.
func (c *compiled) beyondEnd(t time.Time) bool {
	return c.end != nil && c.end.Type == EndTimestamp && t.After(c.end.Timestamp)
}

// occurrencesReached reports whether count exhausts the schedule.
func (c *compiled) occurrencesReached(count int) bool {
	return c.end != nil && c.end.Type == EndOccurrences && count >= c.end.Occurrences
}
