// Package session holds the multi-step interaction state of one review
// run: which card is up, and whether its answer has been revealed.
package session

import "github.com/conorfennell/leitner/internal/domain"

// Cursor walks a due-sequence snapshot taken at the start of a run. It
// never mutates cards or the ledger itself; Advance is called only after
// a verdict has been persisted, and Skip just re-queues the current card
// at the end. When the queue empties the session is complete.
type Cursor struct {
	queue    []domain.Card
	revealed bool
}

// New builds a cursor over a due snapshot.
func New(due []domain.Card) *Cursor {
	queue := make([]domain.Card, len(due))
	copy(queue, due)
	return &Cursor{queue: queue}
}

// Current returns the card being presented, or ok=false when the session
// is complete.
func (c *Cursor) Current() (domain.Card, bool) {
	if len(c.queue) == 0 {
		return domain.Card{}, false
	}
	return c.queue[0], true
}

// Reveal marks the current card's answer as shown.
func (c *Cursor) Reveal() {
	c.revealed = true
}

// Revealed reports whether the answer side has been shown.
func (c *Cursor) Revealed() bool {
	return c.revealed
}

// Advance drops the current card from the queue. Call it only after the
// verdict for that card has been persisted.
func (c *Cursor) Advance() {
	if len(c.queue) > 0 {
		c.queue = c.queue[1:]
	}
	c.revealed = false
}

// Skip moves the current card to the end of the queue without touching
// the card or the ledger. With one card left it is a no-op.
func (c *Cursor) Skip() {
	if len(c.queue) > 1 {
		card := c.queue[0]
		c.queue = append(c.queue[1:], card)
	}
	c.revealed = false
}

// DeleteCurrent removes the current card from the queue. The caller is
// responsible for deleting it from the store.
func (c *Cursor) DeleteCurrent() {
	c.Advance()
}

// Remaining reports how many cards are still queued.
func (c *Cursor) Remaining() int {
	return len(c.queue)
}

// Done reports whether every queued card has been handled.
func (c *Cursor) Done() bool {
	return len(c.queue) == 0
}
