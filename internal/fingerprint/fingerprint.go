// Package fingerprint identifies deck content so re-syncing a source does
// not import the same card twice. The fingerprint is derived from the
// card's text, never from its id or box state, so a card keeps matching
// its deck line as it moves between levels.
package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/leitner/internal/domain"
)

// Normalize concatenates the card's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each
// field before joining them.
func Normalize(card domain.Card) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	front := normalizePart(card.Front)
	back := normalizePart(card.Back)
	tag := normalizePart(card.Tag)

	// Joined with a newline so distinct fields cannot collide by
	// concatenation, e.g. "ab"+"c" vs "a"+"bc".
	return strings.Join([]string{front, back, tag}, "\n")
}

// Of takes a card, normalizes it, and returns its SHA-256 hash as a hex
// string.
func Of(card domain.Card) string {
	normalized := Normalize(card)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
