package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/hupe1980/cmdmesh/core"
)

// Unit is an interval unit.
type Unit string

const (
	UnitMinute Unit = "min"
	UnitHour   Unit = "h"
	UnitDay    Unit = "d"
	UnitMonth  Unit = "M"
)

var intervalPattern = regexp.MustCompile(`^([1-9][0-9]*)(min|h|d|M)$`)

// Interval is a parsed interval string such as "15min" or "1M".
type Interval struct {
	Value int
	Unit  Unit
}

// ParseInterval parses s. Leading zeros, signs, whitespace and unknown
// units are rejected.
func ParseInterval(s string) (Interval, error) {
	m := intervalPattern.FindStringSubmatch(s)
	if m == nil {
		return Interval{}, core.Errorf(core.ErrCodeInvalidInterval, "invalid interval %q: want <n>(min|h|d|M)", s)
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Interval{}, core.NewError(core.ErrCodeInvalidInterval, fmt.Sprintf("invalid interval %q", s), err)
	}

	return Interval{Value: n, Unit: Unit(m[2])}, nil
}

// String renders the interval in its canonical form.
func (i Interval) String() string { return strconv.Itoa(i.Value) + string(i.Unit) }

// fixed returns the duration of min and h intervals.
func (i Interval) fixed() (time.Duration, bool) {
	switch i.Unit {
	case UnitMinute:
		return time.Duration(i.Value) * time.Minute, true
	case UnitHour:
		return time.Duration(i.Value) * time.Hour, true
	default:
		return 0, false
	}
}

// AddTo returns t advanced by one interval. Schedules step from their start
// (see firstAtOrAfter) so clamped month ends do not drift.
func (i Interval) AddTo(t time.Time) time.Time { return i.addN(t, 1) }

func (i Interval) addN(t time.Time, k int) time.Time {
	if d, ok := i.fixed(); ok {
		return t.Add(time.Duration(k) * d)
	}
	if i.Unit == UnitDay {
		return t.AddDate(0, 0, k*i.Value)
	}
	return addMonths(t, k*i.Value)
}

// addMonths adds n calendar months to t, clamping the day to the last day of
// the target month: Jan 31 + 1M is Feb 28 (or 29), never Mar 3.
func addMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if last := daysIn(first.Year(), first.Month(), t.Location()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// weekSteps bounds the number of steps needed to visit every weekday the
// interval can ever reach.
func (i Interval) weekSteps() int {
	switch i.Unit {
	case UnitMinute:
		return 7 * 24 * 60
	case UnitHour:
		return 7 * 24
	case UnitDay:
		return 7
	default:
		// The Gregorian calendar repeats weekdays every 400 years.
		return 400 * 12
	}
}

// firstAtOrAfter returns the first grid point start + k*i (k >= 0) that is
// not before t.
func (i Interval) firstAtOrAfter(start, t time.Time) time.Time {
	if !start.Before(t) {
		return start
	}

	if d, ok := i.fixed(); ok {
		k := (t.Sub(start) + d - 1) / d
		return start.Add(k * d)
	}

	// Jump close to t, then walk. The estimate never overshoots.
	var k int
	if i.Unit == UnitDay {
		k = int(t.Sub(start)/(24*time.Hour))/i.Value - 1
	} else {
		months := (t.Year()-start.Year())*12 + int(t.Month()) - int(start.Month())
		k = months/i.Value - 1
	}
	if k < 0 {
		k = 0
	}

	c := i.addN(start, k)
	for c.Before(t) {
		k++
		c = i.addN(start, k)
	}
	return c
}
