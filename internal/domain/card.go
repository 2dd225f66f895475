package domain

import (
	"encoding/json"
	"time"
)

// MaxLevel is the highest Leitner box. Cards enter at level 1 and are
// promoted one level per correct review, up to this cap.
const MaxLevel = 7

// DateFormat is the calendar-date encoding used everywhere a date is
// persisted or keyed (ledger entries, schedule start, review events).
const DateFormat = "2006-01-02"

// Card represents a single front/back memorization entry and its box state.
type Card struct {
	ID           string
	Front        string
	Back         string
	Tag          string
	Level        int
	MissedCount  int
	LastReviewed *time.Time

	// Extra holds record fields this version does not interpret, so a
	// round trip through the store or an export preserves them.
	Extra map[string]json.RawMessage
}

// ReviewEvent records a single verdict applied to a card.
type ReviewEvent struct {
	Date    string
	CardID  string
	Correct bool
}

// DateOf formats t as a calendar date in UTC.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

// cardRecord is the wire shape of a card.
type cardRecord struct {
	ID           string `json:"id"`
	Front        string `json:"front"`
	Back         string `json:"back"`
	Tag          string `json:"tag,omitempty"`
	Level        int    `json:"level"`
	MissedCount  int    `json:"missed_count,omitempty"`
	LastReviewed string `json:"last_reviewed,omitempty"`
}

var knownFields = map[string]bool{
	"id": true, "front": true, "back": true, "tag": true,
	"level": true, "missed_count": true, "last_reviewed": true,
}

// MarshalJSON emits the card record, re-attaching any preserved unknown fields.
func (c Card) MarshalJSON() ([]byte, error) {
	rec := cardRecord{
		ID:          c.ID,
		Front:       c.Front,
		Back:        c.Back,
		Tag:         c.Tag,
		Level:       c.Level,
		MissedCount: c.MissedCount,
	}
	if c.LastReviewed != nil {
		rec.LastReviewed = DateOf(*c.LastReviewed)
	}
	if len(c.Extra) == 0 {
		return json.Marshal(rec)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Extra {
		if !knownFields[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// UnmarshalJSON parses the card record, stashing unknown fields in Extra.
func (c *Card) UnmarshalJSON(data []byte) error {
	var rec cardRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}

	*c = Card{
		ID:          rec.ID,
		Front:       rec.Front,
		Back:        rec.Back,
		Tag:         rec.Tag,
		Level:       rec.Level,
		MissedCount: rec.MissedCount,
	}
	if rec.LastReviewed != "" {
		t, err := time.ParseInLocation(DateFormat, rec.LastReviewed, time.UTC)
		if err != nil {
			return err
		}
		c.LastReviewed = &t
	}
	for k, v := range all {
		if !knownFields[k] {
			if c.Extra == nil {
				c.Extra = make(map[string]json.RawMessage)
			}
			c.Extra[k] = v
		}
	}
	return nil
}
