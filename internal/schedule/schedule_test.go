package schedule

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	start := date(2026, 1, 1)
	sched := Schedule{
		StartDate: start,
		DayLevels: map[int][]int{
			1: {1, 2},
			2: {1},
			5: {1, 3, 7},
		},
	}

	testCases := []struct {
		name           string
		now            time.Time
		expectedDay    int
		expectedLevels []int
	}{
		{
			name:           "start date is cycle day 1",
			now:            start,
			expectedDay:    1,
			expectedLevels: []int{1, 2},
		},
		{
			name:           "next day is cycle day 2",
			now:            date(2026, 1, 2),
			expectedDay:    2,
			expectedLevels: []int{1},
		},
		{
			name:           "fifth day",
			now:            date(2026, 1, 5),
			expectedDay:    5,
			expectedLevels: []int{1, 3, 7},
		},
		{
			name:           "unlisted day defaults to level 1",
			now:            date(2026, 1, 3),
			expectedDay:    3,
			expectedLevels: []int{1},
		},
		{
			name:           "day 64 wraps to day 1",
			now:            start.AddDate(0, 0, 64),
			expectedDay:    1,
			expectedLevels: []int{1, 2},
		},
		{
			name:           "last day of the cycle",
			now:            start.AddDate(0, 0, 63),
			expectedDay:    64,
			expectedLevels: []int{1},
		},
		{
			name:           "several cycles later",
			now:            start.AddDate(0, 0, 64*3+4),
			expectedDay:    5,
			expectedLevels: []int{1, 3, 7},
		},
		{
			name:           "time of day is ignored",
			now:            time.Date(2026, 1, 2, 23, 59, 59, 0, time.UTC),
			expectedDay:    2,
			expectedLevels: []int{1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			day, levels, err := sched.Resolve(tc.now)
			if err != nil {
				t.Fatalf("Resolve() returned an unexpected error: %v", err)
			}
			if day != tc.expectedDay {
				t.Errorf("Expected cycle day %d, but got %d", tc.expectedDay, day)
			}
			if len(levels) != len(tc.expectedLevels) {
				t.Fatalf("Expected levels %v, but got %v", tc.expectedLevels, levels)
			}
			for i, lvl := range tc.expectedLevels {
				if levels[i] != lvl {
					t.Errorf("Expected levels %v, but got %v", tc.expectedLevels, levels)
				}
			}
		})
	}
}

func TestResolveBeforeStart(t *testing.T) {
	sched := Default(date(2026, 6, 1))
	_, _, err := sched.Resolve(date(2026, 5, 31))
	if !errors.Is(err, ErrBeforeStart) {
		t.Fatalf("Expected ErrBeforeStart, but got %v", err)
	}
}

func TestResolveAlwaysInCycleRange(t *testing.T) {
	sched := Default(date(2025, 1, 1))
	for i := 0; i < 400; i++ {
		day, _, err := sched.Resolve(sched.StartDate.AddDate(0, 0, i))
		if err != nil {
			t.Fatalf("Resolve() day %d: %v", i, err)
		}
		if day < 1 || day > CycleLength {
			t.Fatalf("cycle day %d outside [1,%d] at offset %d", day, CycleLength, i)
		}
	}
}

func TestValidate(t *testing.T) {
	start := date(2026, 1, 1)

	testCases := []struct {
		name    string
		sched   Schedule
		wantErr bool
	}{
		{
			name:  "default schedule is valid",
			sched: Default(start),
		},
		{
			name:    "empty schedule rejected",
			sched:   Schedule{StartDate: start, DayLevels: map[int][]int{}},
			wantErr: true,
		},
		{
			name:    "day outside cycle rejected",
			sched:   Schedule{StartDate: start, DayLevels: map[int][]int{65: {1}}},
			wantErr: true,
		},
		{
			name:    "level outside range rejected",
			sched:   Schedule{StartDate: start, DayLevels: map[int][]int{1: {8}}},
			wantErr: true,
		},
		{
			name:  "day with no levels is allowed",
			sched: Schedule{StartDate: start, DayLevels: map[int][]int{1: {}, 2: {1}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.sched.Validate()
			if tc.wantErr && err == nil {
				t.Error("Expected a validation error, but got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, but got %v", err)
			}
		})
	}
}

func TestActive(t *testing.T) {
	sched := Schedule{
		StartDate: date(2026, 1, 1),
		DayLevels: map[int][]int{1: {1, 3}},
	}
	active, err := sched.Active(date(2026, 1, 1), 3)
	if err != nil {
		t.Fatalf("Active() returned an unexpected error: %v", err)
	}
	if !active {
		t.Error("Expected level 3 to be active on cycle day 1")
	}
	active, err = sched.Active(date(2026, 1, 1), 2)
	if err != nil {
		t.Fatalf("Active() returned an unexpected error: %v", err)
	}
	if active {
		t.Error("Expected level 2 to be inactive on cycle day 1")
	}
}
