package leitner

import (
	"errors"
	"time"

	"github.com/conorfennell/leitner/internal/domain"
)

// Verdict is the user's response to seeing a card's answer.
type Verdict int

const (
	Incorrect Verdict = 0
	Correct   Verdict = 1
)

func (v Verdict) String() string {
	if v == Correct {
		return "correct"
	}
	return "incorrect"
}

// ErrLevelOutOfRange is returned when a level outside [1, MaxLevel] is
// supplied to a manual override or an import.
var ErrLevelOutOfRange = errors.New("leitner: level out of range")

// ValidLevel reports whether level is a usable Leitner box number.
func ValidLevel(level int) bool {
	return level >= 1 && level <= domain.MaxLevel
}

// Apply computes a card's next state after a review. It is pure: the
// returned card carries the new level, missed count, and review date, and
// the input card is untouched. Persisting the result together with the
// day's ledger entry is the caller's job.
//
// Correct promotes one level, capped at MaxLevel, and clears the missed
// count. Incorrect demotes straight to level 1 and increments it.
func Apply(card domain.Card, verdict Verdict, today time.Time) domain.Card {
	reviewed := today.UTC().Truncate(24 * time.Hour)
	card.LastReviewed = &reviewed

	if verdict == Correct {
		if card.Level < domain.MaxLevel {
			card.Level++
		}
		card.MissedCount = 0
		return card
	}

	card.Level = 1
	card.MissedCount++
	return card
}
