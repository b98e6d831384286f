package challenge

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	defaultFuzzyThreshold    = 0.85
	defaultPhoneticThreshold = 0.70
)

// MatchResult reports how a transcript lines up with the challenge words.
type MatchResult struct {
	Expected []string `json:"expected"`
	// Heard holds the transcript token matched to each expected word, or "".
	Heard   []string `json:"heard"`
	Matched []bool   `json:"matched"`
	Count   int      `json:"count"`
	Passed  bool     `json:"passed"`
}

// Matcher checks transcripts against challenge words. Speech-to-text rarely
// returns the exact spelling of isolated words, so a word also counts when it
// sounds the same (Double Metaphone) and is close enough in spelling
// (Jaro-Winkler), or when it is simply very close in spelling.
type Matcher struct {
	fuzzyThreshold    float64
	phoneticThreshold float64
}

// NewMatcher creates a Matcher; zero thresholds select the defaults
// (0.85 fuzzy, 0.70 phonetic).
func NewMatcher(fuzzyThreshold, phoneticThreshold float64) *Matcher {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = defaultFuzzyThreshold
	}
	if phoneticThreshold <= 0 {
		phoneticThreshold = defaultPhoneticThreshold
	}
	return &Matcher{
		fuzzyThreshold:    fuzzyThreshold,
		phoneticThreshold: phoneticThreshold,
	}
}

// Match looks for every expected word, in order, in the transcript. Words
// the user added in between are ignored; a word out of order does not count.
func (m *Matcher) Match(expected []string, transcript string) MatchResult {
	tokens := Tokenize(transcript)
	res := MatchResult{
		Expected: append([]string(nil), expected...),
		Heard:    make([]string, len(expected)),
		Matched:  make([]bool, len(expected)),
	}

	cursor := 0
	for i, want := range expected {
		want = strings.ToLower(strings.TrimSpace(want))
		for j := cursor; j < len(tokens); j++ {
			if m.same(want, tokens[j]) {
				res.Heard[i] = tokens[j]
				res.Matched[i] = true
				res.Count++
				cursor = j + 1
				break
			}
		}
	}

	res.Passed = len(expected) > 0 && res.Count == len(expected)
	return res
}

func (m *Matcher) same(want, heard string) bool {
	if want == heard {
		return true
	}
	score := matchr.JaroWinkler(want, heard, false)
	if score >= m.fuzzyThreshold {
		return true
	}
	return score >= m.phoneticThreshold && soundAlike(want, heard)
}

// soundAlike reports whether the Double Metaphone codes of a and b overlap.
func soundAlike(a, b string) bool {
	ap, as := matchr.DoubleMetaphone(a)
	bp, bs := matchr.DoubleMetaphone(b)
	for _, x := range []string{ap, as} {
		if x == "" {
			continue
		}
		if x == bp || x == bs {
			return true
		}
	}
	return false
}

// Tokenize lower-cases text and splits it into words, dropping punctuation.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
