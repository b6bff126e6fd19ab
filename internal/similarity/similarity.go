// Package similarity scores how alike two free-text transaction
// descriptions are. It is the foundation for duplicate detection and fuzzy
// vendor matching.
package similarity

import (
	"regexp"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

const (
	// wordMatchThreshold is the per-word similarity needed for the overlap
	// heuristic to count a word as present in the other description.
	wordMatchThreshold = 0.8
	// overlapRatio is the share of long words that must have a near-match
	// for HasWordOverlap to report true.
	overlapRatio = 0.5
	// longWordLen is the minimum length (exclusive) for a word to count in
	// the overlap heuristic.
	longWordLen = 3
)

var (
	dateRe   = regexp.MustCompile(`\d{1,2}[-/]\d{1,2}[-/]\d{2,4}`)
	timeRe   = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\s*(?:am|pm)?\b`)
	refRe    = regexp.MustCompile(`\b(?:ref|no|id)\.?\s*:?\s*[a-z]*\d[a-z\d]*\b|#[a-z\d]+`)
	digitsRe = regexp.MustCompile(`\b\d{4,}\b`)
	verbRe   = regexp.MustCompile(`^(?:payment|purchase|transfer|deposit|withdrawal)\b[\s:-]*`)
)

// Score returns the Levenshtein similarity of a and b in [0,1] after case
// and whitespace normalization. Identical strings score 1; two empty
// strings score 0 by convention (no meaningful comparison).
func Score(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	// DefaultOptionsWithSub is classic Levenshtein (substitution cost 1);
	// DefaultOptions charges 2 per substitution, which would push the
	// normalized score below zero for disjoint strings.
	distance := levenshtein.DistanceForStrings(ra, rb, levenshtein.DefaultOptionsWithSub)
	return 1 - float64(distance)/float64(maxLen)
}

// NormalizedScore strips dates, times, reference numbers and common
// payment-verb prefixes from both strings before scoring, so that
// "PAYMENT NETFLIX 11/02 REF 99182" and "NETFLIX" still surface a match.
func NormalizedScore(a, b string) float64 {
	return Score(StripNoise(a), StripNoise(b))
}

// Best returns the maximum of the raw and noise-stripped scores; either
// signal can surface a match.
func Best(a, b string) float64 {
	raw := Score(a, b)
	if stripped := NormalizedScore(a, b); stripped > raw {
		return stripped
	}
	return raw
}

// StripNoise removes the statement clutter that varies between two records
// of the same real-world event.
func StripNoise(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = verbRe.ReplaceAllString(s, "")
	s = dateRe.ReplaceAllString(s, " ")
	s = timeRe.ReplaceAllString(s, " ")
	s = refRe.ReplaceAllString(s, " ")
	s = digitsRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// HasWordOverlap reports whether at least half of the long words (more than
// three characters) in the shorter description have a near-match in the
// other. It catches descriptions with reordered tokens that edit distance
// scores poorly.
func HasWordOverlap(a, b string) bool {
	a = normalize(a)
	b = normalize(b)

	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}

	longerWords := strings.Fields(longer)
	var long, matched int
	for _, w := range strings.Fields(shorter) {
		if len([]rune(w)) <= longWordLen {
			continue
		}
		long++
		for _, other := range longerWords {
			if Score(w, other) > wordMatchThreshold {
				matched++
				break
			}
		}
	}

	if long == 0 {
		return false
	}
	return float64(matched)/float64(long) >= overlapRatio
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
