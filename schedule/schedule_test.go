package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cmdmesh/core"
)

// 2024-01-07 is a Sunday.
var sunday = time.Date(2024, time.January, 7, 9, 0, 0, 0, time.UTC)

func TestParseInterval(t *testing.T) {
	valid := map[string]Interval{
		"1min":  {1, UnitMinute},
		"15min": {15, UnitMinute},
		"2h":    {2, UnitHour},
		"1d":    {1, UnitDay},
		"3M":    {3, UnitMonth},
		"120d":  {120, UnitDay},
	}
	for s, want := range valid {
		got, err := ParseInterval(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got)
		assert.Equal(t, s, got.String())
	}

	for _, s := range []string{"", "0d", "01d", "-1d", "1", "d", "1m", "1D", "1 d", " 1d", "1.5h", "1w", "1mins"} {
		_, err := ParseInterval(s)
		require.Error(t, err, s)
		assert.Equal(t, core.ErrCodeInvalidInterval, core.CodeOf(err), s)
	}
}

func TestInterval_MonthsAreCalendarArithmetic(t *testing.T) {
	iv, err := ParseInterval("1M")
	require.NoError(t, err)

	jan := time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC)
	feb := iv.AddTo(jan)
	mar := iv.AddTo(feb)

	assert.Equal(t, time.Date(2024, time.February, 15, 8, 0, 0, 0, time.UTC), feb)
	assert.Equal(t, time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC), mar)
	// 29 days in February 2024, 31 in January.
	assert.NotEqual(t, feb.Sub(jan), mar.Sub(feb))
}

func TestInterval_MonthEndClampsToLastDay(t *testing.T) {
	iv, err := ParseInterval("1M")
	require.NoError(t, err)

	jan31 := time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC), iv.AddTo(jan31))
	assert.Equal(t, time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC), iv.addN(jan31, 13))
	assert.Equal(t, time.Date(2024, time.April, 30, 9, 0, 0, 0, time.UTC), iv.addN(jan31, 3))
	assert.Equal(t, time.Date(2023, time.December, 31, 9, 0, 0, 0, time.UTC), iv.addN(jan31, -1))
}

func TestScheduler_MonthEndStaysOnStartGrid(t *testing.T) {
	start := time.Date(2025, time.January, 31, 9, 0, 0, 0, time.UTC)
	s, err := New("p1", IntervalSchedule{Start: start, Interval: "1M"}, start)
	require.NoError(t, err)

	var fired []time.Time
	for i := 0; i < 4; i++ {
		fired = append(fired, *s.NextRun)
		require.NoError(t, s.Fire(*s.NextRun))
	}
	assert.Equal(t, []time.Time{
		start,
		time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC),
		time.Date(2025, time.March, 31, 9, 0, 0, 0, time.UTC),
		time.Date(2025, time.April, 30, 9, 0, 0, 0, time.UTC),
	}, fired)
	assert.Equal(t, time.Date(2025, time.May, 31, 9, 0, 0, 0, time.UTC), *s.NextRun)

	// Recomputing from now lands on the same grid point as the fire chain.
	s.Disable()
	require.NoError(t, s.Enable(time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2025, time.May, 31, 9, 0, 0, 0, time.UTC), *s.NextRun)
}

func TestInterval_FirstAtOrAfter(t *testing.T) {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	h, _ := ParseInterval("5h")
	assert.Equal(t, start, h.firstAtOrAfter(start, start.Add(-time.Hour)))
	assert.Equal(t, start.Add(10*time.Hour), h.firstAtOrAfter(start, start.Add(6*time.Hour)))
	assert.Equal(t, start.Add(10*time.Hour), h.firstAtOrAfter(start, start.Add(10*time.Hour)))

	d, _ := ParseInterval("3d")
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), d.firstAtOrAfter(start, time.Date(2024, time.February, 28, 12, 0, 0, 0, time.UTC)))

	m, _ := ParseInterval("2M")
	assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), m.firstAtOrAfter(start, time.Date(2024, time.November, 2, 0, 0, 0, 0, time.UTC)))
}

func TestIntervalSchedule_Validate(t *testing.T) {
	tests := []struct {
		name  string
		sched IntervalSchedule
		code  string
	}{
		{name: "ok", sched: IntervalSchedule{Start: sunday, Interval: "1d", DaysOfWeek: []int{1, 3, 5}}},
		{name: "zero start", sched: IntervalSchedule{Interval: "1d"}, code: core.ErrCodeInvalidSchedule},
		{name: "bad interval", sched: IntervalSchedule{Start: sunday, Interval: "1 day"}, code: core.ErrCodeInvalidInterval},
		{name: "day out of range", sched: IntervalSchedule{Start: sunday, Interval: "1d", DaysOfWeek: []int{7}}, code: core.ErrCodeInvalidSchedule},
		{name: "duplicate day", sched: IntervalSchedule{Start: sunday, Interval: "1d", DaysOfWeek: []int{1, 1}}, code: core.ErrCodeInvalidSchedule},
		{name: "zero occurrences", sched: IntervalSchedule{Start: sunday, Interval: "1d", End: &EndCondition{Type: EndOccurrences}}, code: core.ErrCodeInvalidEndCondition},
		{name: "end before start", sched: IntervalSchedule{Start: sunday, Interval: "1d", End: &EndCondition{Type: EndTimestamp, Timestamp: sunday.Add(-time.Hour)}}, code: core.ErrCodeInvalidEndCondition},
		{name: "unknown end type", sched: IntervalSchedule{Start: sunday, Interval: "1d", End: &EndCondition{Type: "never"}}, code: core.ErrCodeInvalidEndCondition},
		{name: "weekly never hits monday", sched: IntervalSchedule{Start: sunday, Interval: "7d", DaysOfWeek: []int{1}}, code: core.ErrCodeNoPermittedWeekday},
		{name: "weekly on start day", sched: IntervalSchedule{Start: sunday, Interval: "7d", DaysOfWeek: []int{0}}},
		{name: "hourly reaches every day", sched: IntervalSchedule{Start: sunday, Interval: "5h", DaysOfWeek: []int{4}}},
		{name: "monthly reaches saturday", sched: IntervalSchedule{Start: sunday, Interval: "1M", DaysOfWeek: []int{6}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sched.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, core.CodeOf(err))
		})
	}
}

func TestNew_SkipsExcludedWeekdays(t *testing.T) {
	s, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1d", DaysOfWeek: []int{1, 3, 5}}, sunday)
	require.NoError(t, err)

	require.NotNil(t, s.NextRun)
	assert.Equal(t, time.Monday, s.NextRun.Weekday())
	assert.Equal(t, sunday.AddDate(0, 0, 1), *s.NextRun)
	assert.Equal(t, StateDue, s.State(*s.NextRun))
	assert.Equal(t, StatePending, s.State(sunday))

	// Monday -> Wednesday -> Friday -> Monday.
	var got []time.Weekday
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Fire(*s.NextRun))
		got = append(got, s.NextRun.Weekday())
	}
	assert.Equal(t, []time.Weekday{time.Wednesday, time.Friday, time.Monday}, got)
}

func TestNew_StartInThePast(t *testing.T) {
	now := sunday.Add(26 * time.Hour)
	s, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1d"}, now)
	require.NoError(t, err)
	assert.Equal(t, sunday.AddDate(0, 0, 2), *s.NextRun)
}

func TestNew_RejectsInvalidSchedule(t *testing.T) {
	_, err := New("p1", IntervalSchedule{Start: sunday, Interval: "fortnightly"}, sunday)
	assert.Equal(t, core.ErrCodeInvalidInterval, core.CodeOf(err))

	_, err = New("", IntervalSchedule{Start: sunday, Interval: "1d"}, sunday)
	assert.Equal(t, core.ErrCodeInvalidSchedule, core.CodeOf(err))
}

func TestScheduler_OccurrenceLimit(t *testing.T) {
	s, err := New("p1", IntervalSchedule{
		Start:    sunday,
		Interval: "1d",
		End:      &EndCondition{Type: EndOccurrences, Occurrences: 3},
	}, sunday)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NotNil(t, s.NextRun, "fire %d", i)
		at := *s.NextRun
		require.NoError(t, s.Fire(at))
		assert.Equal(t, i, s.OccurrenceCount)
		assert.Equal(t, at, *s.LastRun)
	}

	assert.Nil(t, s.NextRun)
	assert.Equal(t, 3, s.OccurrenceCount)
	assert.Equal(t, StateExhausted, s.State(sunday.AddDate(1, 0, 0)))

	err = s.Fire(sunday.AddDate(1, 0, 0))
	require.Error(t, err)
	assert.Equal(t, 3, s.OccurrenceCount)
}

func TestScheduler_EndTimestamp(t *testing.T) {
	end := sunday.Add(36 * time.Hour)
	s, err := New("p1", IntervalSchedule{
		Start:    sunday,
		Interval: "1d",
		End:      &EndCondition{Type: EndTimestamp, Timestamp: end},
	}, sunday)
	require.NoError(t, err)

	require.NoError(t, s.Fire(*s.NextRun))
	require.NotNil(t, s.NextRun)
	assert.Equal(t, sunday.AddDate(0, 0, 1), *s.NextRun)

	require.NoError(t, s.Fire(*s.NextRun))
	assert.Nil(t, s.NextRun)

	// An end already in the past exhausts a new scheduler.
	s, err = New("p1", IntervalSchedule{
		Start:    sunday,
		Interval: "1d",
		End:      &EndCondition{Type: EndTimestamp, Timestamp: end},
	}, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, s.NextRun)
}

func TestScheduler_FireCatchesUpAfterDowntime(t *testing.T) {
	s, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1h"}, sunday)
	require.NoError(t, err)

	late := sunday.Add(5*time.Hour + 30*time.Minute)
	require.NoError(t, s.Fire(late))

	assert.Equal(t, 1, s.OccurrenceCount)
	assert.Equal(t, sunday.Add(6*time.Hour), *s.NextRun)
	assert.True(t, s.NextRun.After(*s.LastRun))
}

func TestScheduler_FireRequiresDue(t *testing.T) {
	s, err := New("p1", IntervalSchedule{Start: sunday.Add(time.Hour), Interval: "1h"}, sunday)
	require.NoError(t, err)

	err = s.Fire(sunday)
	require.Error(t, err)
	assert.Equal(t, core.ErrCodeInvalidSchedule, core.CodeOf(err))
	assert.Zero(t, s.OccurrenceCount)
	assert.Nil(t, s.LastRun)
}

func TestScheduler_DisableEnable(t *testing.T) {
	s, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1d"}, sunday)
	require.NoError(t, err)

	s.Disable()
	assert.Equal(t, StateDisabled, s.State(sunday.AddDate(0, 0, 10)))
	assert.Error(t, s.Fire(sunday.AddDate(0, 0, 10)))

	// Re-enabling recomputes from now instead of firing the stale run.
	now := sunday.AddDate(0, 0, 10).Add(time.Hour)
	require.NoError(t, s.Enable(now))
	assert.Equal(t, sunday.AddDate(0, 0, 11), *s.NextRun)
	assert.Equal(t, StatePending, s.State(now))
}

func TestScheduler_EnableAfterRunStaysAfterLastRun(t *testing.T) {
	s, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1d"}, sunday)
	require.NoError(t, err)
	require.NoError(t, s.Fire(sunday))

	s.Disable()
	require.NoError(t, s.Enable(sunday))
	assert.Equal(t, sunday.AddDate(0, 0, 1), *s.NextRun)
}

func TestScheduler_Reset(t *testing.T) {
	s, err := New("p1", IntervalSchedule{
		Start:    sunday,
		Interval: "1d",
		End:      &EndCondition{Type: EndOccurrences, Occurrences: 1},
	}, sunday)
	require.NoError(t, err)
	require.NoError(t, s.Fire(sunday))
	require.Nil(t, s.NextRun)

	now := sunday.AddDate(0, 0, 3)
	require.NoError(t, s.Reset(now))
	assert.Zero(t, s.OccurrenceCount)
	assert.Nil(t, s.LastRun)
	assert.Equal(t, now, *s.NextRun)
}

func TestScheduler_Update(t *testing.T) {
	s, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1d"}, sunday)
	require.NoError(t, err)

	err = s.Update(IntervalSchedule{Start: sunday, Interval: "nope"}, sunday)
	assert.Equal(t, core.ErrCodeInvalidInterval, core.CodeOf(err))
	assert.Equal(t, "1d", s.Schedule.Interval)

	require.NoError(t, s.Update(IntervalSchedule{Start: sunday, Interval: "2h"}, sunday.Add(time.Minute)))
	assert.Equal(t, sunday.Add(2*time.Hour), *s.NextRun)
}

func TestScheduler_CloneIsDeep(t *testing.T) {
	s, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1d", DaysOfWeek: []int{1}}, sunday, func(o *Options) {
		o.Params = map[string]string{"k": "v"}
	})
	require.NoError(t, err)

	c := s.Clone()
	c.Params["k"] = "changed"
	c.Schedule.DaysOfWeek[0] = 2
	*c.NextRun = c.NextRun.Add(time.Hour)

	assert.Equal(t, "v", s.Params["k"])
	assert.Equal(t, []int{1}, s.Schedule.DaysOfWeek)
	assert.Equal(t, sunday.AddDate(0, 0, 1), *s.NextRun)
}

func TestInMemoryStore(t *testing.T) {
	st := NewInMemoryStore()

	a, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1d"}, sunday, func(o *Options) { o.ID = "b" })
	require.NoError(t, err)
	b, err := New("p1", IntervalSchedule{Start: sunday, Interval: "1d"}, sunday, func(o *Options) { o.ID = "a" })
	require.NoError(t, err)
	require.NoError(t, st.Save(a))
	require.NoError(t, st.Save(b))

	list, err := st.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)

	got, err := st.Get("b")
	require.NoError(t, err)
	got.Enabled = false
	again, err := st.Get("b")
	require.NoError(t, err)
	assert.True(t, again.Enabled)

	require.NoError(t, st.Delete("a"))
	_, err = st.Get("a")
	assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(err))
	assert.Equal(t, core.ErrCodeNotFound, core.CodeOf(st.Delete("a")))
}
