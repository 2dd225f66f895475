package parser

import (
	"strings"
	"testing"

	"github.com/conorfennell/leitner/internal/domain"
)

func TestParseLine(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		wantErr       bool
		expectedFront string
		expectedBack  string
		expectedTag   string
		expectedLevel int
	}{
		{
			name:          "front and back only",
			input:         "capital of France::Paris",
			expectedFront: "capital of France",
			expectedBack:  "Paris",
			expectedTag:   "",
			expectedLevel: 1,
		},
		{
			name:          "with tag",
			input:         "2+2::4::math",
			expectedFront: "2+2",
			expectedBack:  "4",
			expectedTag:   "math",
			expectedLevel: 1,
		},
		{
			name:          "with tag and level",
			input:         "Q::A::math::3",
			expectedFront: "Q",
			expectedBack:  "A",
			expectedTag:   "math",
			expectedLevel: 3,
		},
		{
			name:          "empty tag with level",
			input:         "Q::A::::5",
			expectedFront: "Q",
			expectedBack:  "A",
			expectedTag:   "",
			expectedLevel: 5,
		},
		{
			name:          "fields are trimmed",
			input:         " Q :: A :: math :: 2 ",
			expectedFront: "Q",
			expectedBack:  "A",
			expectedTag:   "math",
			expectedLevel: 2,
		},
		{
			name:    "level out of range",
			input:   "Q::A::math::9",
			wantErr: true,
		},
		{
			name:    "level zero",
			input:   "Q::A::math::0",
			wantErr: true,
		},
		{
			name:    "non-numeric level",
			input:   "Q::A::math::three",
			wantErr: true,
		},
		{
			name:    "too many fields",
			input:   "Q::A::math::3::extra",
			wantErr: true,
		},
		{
			name:    "single field",
			input:   "just text",
			wantErr: true,
		},
		{
			name:    "empty back",
			input:   "Q::",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			card, err := ParseLine(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Expected an error for %q, but got card %+v", tc.input, card)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLine() returned an unexpected error: %v", err)
			}
			if card.Front != tc.expectedFront {
				t.Errorf("Expected front %q, but got %q", tc.expectedFront, card.Front)
			}
			if card.Back != tc.expectedBack {
				t.Errorf("Expected back %q, but got %q", tc.expectedBack, card.Back)
			}
			if card.Tag != tc.expectedTag {
				t.Errorf("Expected tag %q, but got %q", tc.expectedTag, card.Tag)
			}
			if card.Level != tc.expectedLevel {
				t.Errorf("Expected level %d, but got %d", tc.expectedLevel, card.Level)
			}
		})
	}
}

func TestParse(t *testing.T) {
	input := `
# my deck
capital of France::Paris::geo

Q::A::math::3
broken line
Q::A::math::9
`
	res, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	if len(res.Cards) != 2 {
		t.Fatalf("Expected 2 cards, but got %d", len(res.Cards))
	}
	if res.Skipped != 2 {
		t.Errorf("Expected 2 skipped lines, but got %d", res.Skipped)
	}
	if res.Cards[1].Level != 3 {
		t.Errorf("Expected the math card at level 3, but got %d", res.Cards[1].Level)
	}
}

func TestExportRoundTrip(t *testing.T) {
	cards := []domain.Card{
		{Front: "Q1", Back: "A1", Tag: "math", Level: 3},
		{Front: "Q2", Back: "A2", Level: 1},
	}

	var sb strings.Builder
	if err := Export(&sb, cards); err != nil {
		t.Fatalf("Export() returned an unexpected error: %v", err)
	}

	res, err := Parse(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Parse() returned an unexpected error: %v", err)
	}
	if res.Skipped != 0 {
		t.Fatalf("Expected no skipped lines in exported output, but got %d", res.Skipped)
	}
	if len(res.Cards) != len(cards) {
		t.Fatalf("Expected %d cards, but got %d", len(cards), len(res.Cards))
	}
	for i, c := range cards {
		got := res.Cards[i]
		if got.Front != c.Front || got.Back != c.Back || got.Tag != c.Tag || got.Level != c.Level {
			t.Errorf("Card %d did not round trip: expected %+v, got %+v", i, c, got)
		}
	}
}
