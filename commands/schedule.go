package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/hupe1980/cmdmesh/command"
	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/schedule"
)

// Reserved option keys of "schedule add". Every other key=value token is a
// prompt parameter.
const (
	optStart = "start"
	optDays  = "days"
	optTimes = "times"
	optUntil = "until"
)

// NewSchedule creates the "schedule" group.
func NewSchedule() command.Handler {
	requires := []string{IntegrationSchedulers}
	leaf := func(name, summary string, fn command.HandlerFunc, extra ...string) command.Handler {
		return command.NewLeaf(command.Spec{Name: name, Summary: summary, Integrations: append(append([]string(nil), requires...), extra...)}, fn)
	}

	return command.NewGroup(command.Spec{
		Name:         "schedule",
		Summary:      "run prompts on an interval",
		Integrations: requires,
	},
		leaf("list", "list schedulers", scheduleList),
		leaf("add", "add <prompt> <interval> [start=] [days=1,3,5] [times=N] [until=] [key=value ...]", scheduleAdd, command.IntegrationPrompts),
		leaf("enable", "enable a scheduler", scheduleEnable),
		leaf("disable", "disable a scheduler", scheduleDisable),
		leaf("delete", "delete a scheduler", scheduleDelete),
	)
}

func now(cc *command.Context) time.Time {
	if c, err := command.Lookup[clock.PassiveClock](cc.Integrations, IntegrationClock); err == nil {
		return c.Now()
	}
	return clock.RealClock{}.Now()
}

func schedulerStore(cc *command.Context) (schedule.Store, error) {
	return command.Lookup[schedule.Store](cc.Integrations, IntegrationSchedulers)
}

func scheduleList(_ context.Context, cc *command.Context, _ command.Request) (*command.Context, error) {
	store, err := schedulerStore(cc)
	if err != nil {
		return cc, err
	}
	all, err := store.List()
	if err != nil {
		return cc, err
	}
	if len(all) == 0 {
		cc.Say("no schedulers")
		return cc, nil
	}

	t := now(cc)
	var b strings.Builder
	for i, s := range all {
		if i > 0 {
			b.WriteByte('\n')
		}
		next := "-"
		if s.NextRun != nil {
			next = s.NextRun.Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "%s %s every %s next=%s runs=%d", s.ID, s.State(t), s.Schedule.Interval, next, s.OccurrenceCount)
	}
	cc.Say(b.String())

	return cc, nil
}

func scheduleAdd(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	fields := req.Fields()
	if len(fields) < 2 {
		return cc, command.Usage("schedule add", "<prompt> <interval> [start=] [days=1,3,5] [times=N] [until=] [key=value ...]")
	}
	store, err := schedulerStore(cc)
	if err != nil {
		return cc, err
	}
	prompts, err := promptStore(cc)
	if err != nil {
		return cc, err
	}
	p, err := prompts.GetByName(fields[0])
	if err != nil {
		return cc, err
	}

	t := now(cc)
	sched := schedule.IntervalSchedule{Start: t, Interval: fields[1]}
	params := map[string]string{}

	for _, f := range fields[2:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return cc, core.Errorf(core.ErrCodeInvalidArguments, "expected key=value, got %q", f)
		}
		switch k {
		case optStart:
			if sched.Start, err = time.Parse(time.RFC3339, v); err != nil {
				return cc, core.NewError(core.ErrCodeInvalidSchedule, "start must be RFC3339", err)
			}
		case optDays:
			if sched.DaysOfWeek, err = parseDays(v); err != nil {
				return cc, err
			}
		case optTimes:
			n, err := strconv.Atoi(v)
			if err != nil {
				return cc, core.NewError(core.ErrCodeInvalidEndCondition, "times must be a number", err)
			}
			sched.End = &schedule.EndCondition{Type: schedule.EndOccurrences, Occurrences: n}
		case optUntil:
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return cc, core.NewError(core.ErrCodeInvalidEndCondition, "until must be RFC3339", err)
			}
			sched.End = &schedule.EndCondition{Type: schedule.EndTimestamp, Timestamp: ts}
		default:
			params[k] = v
		}
	}

	if _, err := p.Materialize(params); err != nil {
		return cc, err
	}

	s, err := schedule.New(p.ID, sched, t, func(o *schedule.Options) {
		o.Params = params
		o.Project = cc.Project
		o.CreatedBy = cc.Username
	})
	if err != nil {
		return cc, err
	}
	if err := store.Save(s); err != nil {
		return cc, err
	}

	next := "never"
	if s.NextRun != nil {
		next = s.NextRun.Format(time.RFC3339)
	}
	cc.Say(fmt.Sprintf("scheduled %s as %s, next run %s", p.Name, s.ID, next))

	return cc, nil
}

func parseDays(v string) ([]int, error) {
	var days []int
	for _, part := range strings.Split(v, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, core.NewError(core.ErrCodeInvalidSchedule, fmt.Sprintf("invalid day %q", part), err)
		}
		days = append(days, d)
	}
	return days, nil
}

func scheduleEnable(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	return updateScheduler(cc, req, "enable", func(s *schedule.Scheduler) error { return s.Enable(now(cc)) })
}

func scheduleDisable(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	return updateScheduler(cc, req, "disable", func(s *schedule.Scheduler) error {
		s.Disable()
		return nil
	})
}

func updateScheduler(cc *command.Context, req command.Request, verb string, fn func(s *schedule.Scheduler) error) (*command.Context, error) {
	if req.Args == "" {
		return cc, command.Usage("schedule "+verb, "<id>")
	}
	store, err := schedulerStore(cc)
	if err != nil {
		return cc, err
	}
	s, err := store.Update(req.Args, fn)
	if err != nil {
		return cc, err
	}
	cc.Say(fmt.Sprintf("%s %s", s.ID, strings.ToLower(string(s.State(now(cc))))))
	return cc, nil
}

func scheduleDelete(_ context.Context, cc *command.Context, req command.Request) (*command.Context, error) {
	if req.Args == "" {
		return cc, command.Usage("schedule delete", "<id>")
	}
	store, err := schedulerStore(cc)
	if err != nil {
		return cc, err
	}
	if err := store.Delete(req.Args); err != nil {
		return cc, err
	}
	cc.Say("deleted scheduler " + req.Args)
	return cc, nil
}
