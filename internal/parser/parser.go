// Package parser reads and writes the delimited deck line format:
//
//	front::back::tag::level
//
// Tag and level are optional and default to "" and 1. Lines that are
// blank or start with '#' are ignored. Malformed lines (wrong field
// count, non-numeric level, out-of-range level, empty front or back) are
// skipped and counted separately from successes.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/leitner/internal/domain"
)

const separator = "::"

var validate = validator.New()

// line is the validated shape of one deck line.
type line struct {
	Front string `validate:"required"`
	Back  string `validate:"required"`
	Tag   string
	Level int `validate:"min=1,max=7"`
}

// Result summarizes one parse run.
type Result struct {
	Cards   []domain.Card
	Skipped int
}

// ParseLine converts one deck line into a card. The returned card has no
// ID; the importer assigns one when it decides to keep the card.
func ParseLine(raw string) (domain.Card, error) {
	fields := strings.Split(strings.TrimRight(raw, "\r\n"), separator)
	if len(fields) < 2 || len(fields) > 4 {
		return domain.Card{}, fmt.Errorf("expected 2 to 4 fields, got %d", len(fields))
	}

	rec := line{
		Front: strings.TrimSpace(fields[0]),
		Back:  strings.TrimSpace(fields[1]),
		Level: 1,
	}
	if len(fields) >= 3 {
		rec.Tag = strings.TrimSpace(fields[2])
	}
	if len(fields) == 4 {
		lvl, err := strconv.Atoi(strings.TrimSpace(fields[3]))
		if err != nil {
			return domain.Card{}, fmt.Errorf("level %q is not a number", fields[3])
		}
		rec.Level = lvl
	}

	if err := validate.Struct(rec); err != nil {
		return domain.Card{}, err
	}

	return domain.Card{
		Front: rec.Front,
		Back:  rec.Back,
		Tag:   rec.Tag,
		Level: rec.Level,
	}, nil
}

// Parse reads deck lines from r and extracts all well-formed cards.
func Parse(r io.Reader) (Result, error) {
	scanner := bufio.NewScanner(r)
	var res Result

	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		card, err := ParseLine(text)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Cards = append(res.Cards, card)
	}
	if err := scanner.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// ParseFile reads a deck file from the given path and extracts all cards.
func ParseFile(path string) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer file.Close()

	return Parse(file)
}

// Export writes cards in the same deck line format, one per line.
func Export(w io.Writer, cards []domain.Card) error {
	bw := bufio.NewWriter(w)
	for _, c := range cards {
		if _, err := fmt.Fprintf(bw, "%s%s%s%s%s%s%d\n",
			c.Front, separator, c.Back, separator, c.Tag, separator, c.Level); err != nil {
			return err
		}
	}
	return bw.Flush()
}
