// Package review ties the card store, the day-cycle schedule, and the
// daily ledger together into the operations a client session needs.
package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/leitner/internal/domain"
	"github.com/conorfennell/leitner/internal/leitner"
	"github.com/conorfennell/leitner/internal/schedule"
	"github.com/conorfennell/leitner/internal/storage"
)

// ErrCardNotFound is returned when an operation names a card id that does
// not exist in the store.
var ErrCardNotFound = errors.New("review: card not found")

// Service owns a store handle and the schedule loaded at session start.
// The schedule is immutable for the life of the service; replacing it
// means building a new service.
type Service struct {
	db    *storage.DB
	sched schedule.Schedule
}

// NewService builds a review service over an open store and a schedule.
func NewService(db *storage.DB, sched schedule.Schedule) *Service {
	return &Service{db: db, sched: sched}
}

// LoadSchedule reads the stored schedule, substituting a default
// all-days-level-1 schedule starting today when none has been saved yet.
func LoadSchedule(db *storage.DB, now time.Time) (schedule.Schedule, error) {
	sched, err := db.LoadSchedule()
	if err != nil {
		return schedule.Schedule{}, err
	}
	if sched == nil {
		def := schedule.Default(now)
		if err := db.SaveSchedule(def); err != nil {
			return schedule.Schedule{}, fmt.Errorf("failed to save default schedule: %w", err)
		}
		return def, nil
	}
	return *sched, nil
}

// Schedule returns the schedule the service was built with.
func (s *Service) Schedule() schedule.Schedule {
	return s.sched
}

// Filter narrows the due computation. The zero value means "today's
// active levels, all tags": the normal daily review. Levels overrides the
// schedule with an explicit level set; AllLevels overrides it with every
// level. Tag keeps only cards carrying that tag.
type Filter struct {
	Levels    []int
	AllLevels bool
	Tag       string
}

// TodayInfo describes where "now" falls in the review cycle.
type TodayInfo struct {
	Date         string
	CycleDay     int
	ActiveLevels []int
}

// TodayInfo resolves the cycle day and active levels for now.
func (s *Service) TodayInfo(now time.Time) (TodayInfo, error) {
	day, levels, err := s.sched.Resolve(now)
	if err != nil {
		return TodayInfo{}, err
	}
	return TodayInfo{Date: domain.DateOf(now), CycleDay: day, ActiveLevels: levels}, nil
}

// DueCards returns the cards still owed a review today, in the store's
// insertion order. A card is due when its level is active (per the
// schedule or the filter override) and it has not received a verdict
// today. The order is stable across reloads within a day, which keeps
// skip semantics well defined.
func (s *Service) DueCards(now time.Time, f Filter) ([]domain.Card, error) {
	active, err := s.activeLevels(now, f)
	if err != nil {
		return nil, err
	}

	cards, err := s.db.AllCards()
	if err != nil {
		return nil, err
	}
	reviewed, err := s.db.ReviewedOn(domain.DateOf(now))
	if err != nil {
		return nil, err
	}

	var due []domain.Card
	for _, c := range cards {
		if !active[c.Level] {
			continue
		}
		if reviewed[c.ID] {
			continue
		}
		if f.Tag != "" && c.Tag != f.Tag {
			continue
		}
		due = append(due, c)
	}
	return due, nil
}

func (s *Service) activeLevels(now time.Time, f Filter) (map[int]bool, error) {
	active := make(map[int]bool)
	switch {
	case f.AllLevels:
		for l := 1; l <= domain.MaxLevel; l++ {
			active[l] = true
		}
	case len(f.Levels) > 0:
		for _, l := range f.Levels {
			if !leitner.ValidLevel(l) {
				return nil, fmt.Errorf("%w: %d", leitner.ErrLevelOutOfRange, l)
			}
			active[l] = true
		}
	default:
		_, levels, err := s.sched.Resolve(now)
		if err != nil {
			return nil, err
		}
		for _, l := range levels {
			active[l] = true
		}
	}
	return active, nil
}

// RecordVerdict applies a verdict to a card and persists the new card
// state, the ledger entry, and the history event atomically. A failure
// leaves the card and the ledger exactly as before, so the caller can
// retry the same verdict.
func (s *Service) RecordVerdict(cardID string, correct bool, now time.Time) (domain.Card, error) {
	card, err := s.db.FindCard(cardID)
	if err != nil {
		return domain.Card{}, err
	}
	if card == nil {
		return domain.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}

	verdict := leitner.Incorrect
	if correct {
		verdict = leitner.Correct
	}
	next := leitner.Apply(*card, verdict, now)

	event := domain.ReviewEvent{Date: domain.DateOf(now), CardID: cardID, Correct: correct}
	if err := s.db.ApplyReview(next, event); err != nil {
		return domain.Card{}, err
	}
	return next, nil
}

// AddCard creates a card at the given level (1 for a fresh card) and
// persists it. The id is assigned here, once, and never recomputed.
func (s *Service) AddCard(front, back, tag string, level int) (domain.Card, error) {
	if !leitner.ValidLevel(level) {
		return domain.Card{}, fmt.Errorf("%w: %d", leitner.ErrLevelOutOfRange, level)
	}
	card := domain.Card{
		ID:    uuid.NewString(),
		Front: front,
		Back:  back,
		Tag:   tag,
		Level: level,
	}
	if err := s.db.InsertCard(card); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// SetLevel moves a card to an explicit level, bypassing the transition
// table. The range check still applies.
func (s *Service) SetLevel(cardID string, level int) (domain.Card, error) {
	if !leitner.ValidLevel(level) {
		return domain.Card{}, fmt.Errorf("%w: %d", leitner.ErrLevelOutOfRange, level)
	}
	card, err := s.db.FindCard(cardID)
	if err != nil {
		return domain.Card{}, err
	}
	if card == nil {
		return domain.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	card.Level = level
	if err := s.db.UpdateCard(*card); err != nil {
		return domain.Card{}, err
	}
	return *card, nil
}

// DeleteCard removes a card and its entry in today's ledger.
func (s *Service) DeleteCard(cardID string, now time.Time) error {
	card, err := s.db.FindCard(cardID)
	if err != nil {
		return err
	}
	if card == nil {
		return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	return s.db.DeleteCard(cardID, domain.DateOf(now))
}

// AllCards returns every card in insertion order.
func (s *Service) AllCards() ([]domain.Card, error) {
	return s.db.AllCards()
}

// CardsByLevel returns the cards currently sitting in one box.
func (s *Service) CardsByLevel(level int) ([]domain.Card, error) {
	if !leitner.ValidLevel(level) {
		return nil, fmt.Errorf("%w: %d", leitner.ErrLevelOutOfRange, level)
	}
	cards, err := s.db.AllCards()
	if err != nil {
		return nil, err
	}
	var out []domain.Card
	for _, c := range cards {
		if c.Level == level {
			out = append(out, c)
		}
	}
	return out, nil
}

// LevelHistogram counts cards per level. Every level 1..MaxLevel is
// present in the result, zero or not.
func (s *Service) LevelHistogram() (map[int]int, error) {
	cards, err := s.db.AllCards()
	if err != nil {
		return nil, err
	}
	hist := make(map[int]int, domain.MaxLevel)
	for l := 1; l <= domain.MaxLevel; l++ {
		hist[l] = 0
	}
	for _, c := range cards {
		hist[c.Level]++
	}
	return hist, nil
}

// EventsOn returns the review history for a calendar date.
func (s *Service) EventsOn(date string) ([]domain.ReviewEvent, error) {
	return s.db.EventsOn(date)
}
