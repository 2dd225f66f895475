package session

import (
	"testing"

	"github.com/conorfennell/leitner/internal/domain"
)

func cards(ids ...string) []domain.Card {
	out := make([]domain.Card, len(ids))
	for i, id := range ids {
		out[i] = domain.Card{ID: id, Level: 1}
	}
	return out
}

func TestEmptySessionIsComplete(t *testing.T) {
	c := New(nil)
	if _, ok := c.Current(); ok {
		t.Error("Expected no current card for an empty session")
	}
	if !c.Done() {
		t.Error("Expected an empty session to be done")
	}
	// Advancing or skipping past the end must not panic.
	c.Advance()
	c.Skip()
}

func TestAdvance(t *testing.T) {
	c := New(cards("a", "b"))

	cur, ok := c.Current()
	if !ok || cur.ID != "a" {
		t.Fatalf("Expected current card a, but got %v ok=%v", cur.ID, ok)
	}

	c.Advance()
	cur, ok = c.Current()
	if !ok || cur.ID != "b" {
		t.Fatalf("Expected current card b, but got %v ok=%v", cur.ID, ok)
	}

	c.Advance()
	if _, ok := c.Current(); ok {
		t.Error("Expected the session to be complete")
	}
	if !c.Done() {
		t.Error("Expected Done after advancing past the last card")
	}
}

func TestSkipRequeuesAtEnd(t *testing.T) {
	c := New(cards("a", "b", "c"))

	c.Skip()
	expected := []string{"b", "c", "a"}
	for _, id := range expected {
		cur, ok := c.Current()
		if !ok || cur.ID != id {
			t.Fatalf("Expected current card %s, but got %v ok=%v", id, cur.ID, ok)
		}
		c.Advance()
	}
}

func TestSkipLastCardStays(t *testing.T) {
	c := New(cards("a"))
	c.Skip()
	cur, ok := c.Current()
	if !ok || cur.ID != "a" {
		t.Errorf("Expected the only card to stay current after skip, but got %v ok=%v", cur.ID, ok)
	}
}

func TestRevealResetsOnMove(t *testing.T) {
	c := New(cards("a", "b"))

	c.Reveal()
	if !c.Revealed() {
		t.Fatal("Expected revealed after Reveal")
	}
	c.Advance()
	if c.Revealed() {
		t.Error("Expected reveal flag to reset on advance")
	}

	c.Reveal()
	c.Skip()
	if c.Revealed() {
		t.Error("Expected reveal flag to reset on skip")
	}
}

func TestDeleteCurrent(t *testing.T) {
	c := New(cards("a", "b"))
	c.DeleteCurrent()
	cur, ok := c.Current()
	if !ok || cur.ID != "b" {
		t.Errorf("Expected b after deleting a, but got %v ok=%v", cur.ID, ok)
	}
	if c.Remaining() != 1 {
		t.Errorf("Expected 1 remaining, but got %d", c.Remaining())
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	due := cards("a", "b")
	c := New(due)
	due[0].ID = "mutated"
	cur, _ := c.Current()
	if cur.ID != "a" {
		t.Error("Expected the cursor to hold its own snapshot of the due sequence")
	}
}
