// Package schedule maps calendar days onto the 64-day review cycle and
// decides which Leitner levels are active on a given day.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/leitner/internal/domain"
)

// CycleLength is the number of days in one full review cycle. Cycle days
// are numbered 1..CycleLength and wrap.
const CycleLength = 64

var (
	// ErrBeforeStart is returned when a schedule is resolved for a date
	// earlier than its start date.
	ErrBeforeStart = errors.New("schedule: date is before the schedule start")
	// ErrEmptySchedule is returned by Validate for a schedule with no day
	// entries at all. Callers wanting a fallback should use Default.
	ErrEmptySchedule = errors.New("schedule: no day entries")
)

// Schedule anchors cycle-day 1 at StartDate and lists, per cycle day, the
// levels reviewed that day. Days absent from DayLevels default to level 1
// so fresh and demoted cards keep circulating.
//
// A loaded schedule is immutable for the life of a session; editors
// replace it wholesale via the store.
type Schedule struct {
	StartDate time.Time
	DayLevels map[int][]int
}

// Default returns a schedule starting at start with every cycle day
// reviewing level 1 only. It is the first-run substitute when no schedule
// has been saved yet.
func Default(start time.Time) Schedule {
	days := make(map[int][]int, CycleLength)
	for d := 1; d <= CycleLength; d++ {
		days[d] = []int{1}
	}
	return Schedule{
		StartDate: midnight(start),
		DayLevels: days,
	}
}

// Validate checks the schedule's structural invariants: at least one day
// entry, day numbers within the cycle, and levels within [1, MaxLevel].
func (s Schedule) Validate() error {
	if len(s.DayLevels) == 0 {
		return ErrEmptySchedule
	}
	for day, levels := range s.DayLevels {
		if day < 1 || day > CycleLength {
			return fmt.Errorf("schedule: day %d outside cycle [1,%d]", day, CycleLength)
		}
		for _, lvl := range levels {
			if lvl < 1 || lvl > domain.MaxLevel {
				return fmt.Errorf("schedule: day %d lists level %d outside [1,%d]", day, lvl, domain.MaxLevel)
			}
		}
	}
	return nil
}

// Resolve turns a calendar date into its cycle day and the set of levels
// active on it. Pure; safe to call repeatedly within an exchange.
func (s Schedule) Resolve(now time.Time) (cycleDay int, activeLevels []int, err error) {
	day := midnight(now)
	start := midnight(s.StartDate)
	if day.Before(start) {
		return 0, nil, fmt.Errorf("%w: %s < %s", ErrBeforeStart, domain.DateOf(day), domain.DateOf(start))
	}

	elapsed := int(day.Sub(start).Hours() / 24)
	cycleDay = elapsed%CycleLength + 1

	levels, ok := s.DayLevels[cycleDay]
	if !ok {
		levels = []int{1}
	}
	return cycleDay, levels, nil
}

// Active reports whether level is reviewed on the given calendar date.
func (s Schedule) Active(now time.Time, level int) (bool, error) {
	_, levels, err := s.Resolve(now)
	if err != nil {
		return false, err
	}
	for _, l := range levels {
		if l == level {
			return true, nil
		}
	}
	return false, nil
}

func midnight(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
