package reveal

import (
	"fmt"
	"strings"
)

// Granularity is the size of one reveal step.
type Granularity int

const (
	Word Granularity = iota
	Char
)

func (g Granularity) String() string {
	switch g {
	case Word:
		return "word"
	case Char:
		return "char"
	default:
		return fmt.Sprintf("Granularity(%d)", int(g))
	}
}

// ParseGranularity accepts "word" or "char" (and a few spellings of each).
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "word", "words", "w":
		return Word, nil
	case "char", "chars", "character", "c":
		return Char, nil
	}
	return Word, fmt.Errorf("unknown granularity %q (want word or char)", s)
}

// Units splits text into reveal units. Word units are whitespace separated
// fields; char units are single runes, whitespace included.
func Units(text string, g Granularity) []string {
	if g == Word {
		return strings.Fields(text)
	}
	units := make([]string, 0, len(text))
	for _, r := range text {
		units = append(units, string(r))
	}
	return units
}

func (g Granularity) sep() string {
	if g == Word {
		return " "
	}
	return ""
}

// Join materializes the prefix made of units.
func Join(units []string, g Granularity) string {
	return strings.Join(units, g.sep())
}
