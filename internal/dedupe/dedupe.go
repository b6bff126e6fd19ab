// Package dedupe clusters a transaction list into groups of records that
// denote the same real-world event.
package dedupe

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/similarity"
)

const (
	// descSimilarThreshold is the description score at which two
	// transactions count as duplicates.
	descSimilarThreshold = 0.90
	// descIdenticalThreshold is the score at which the descriptions are
	// reported as identical rather than merely similar.
	descIdenticalThreshold = 0.95
	// descOverlapFloor is the lowered acceptance bar used when the
	// word-overlap heuristic fires (reordered tokens).
	descOverlapFloor = 0.50
	// maxDayGap is the maximum date distance, in days, between duplicates.
	maxDayGap = 1
)

// amountTolerance is the maximum amount difference between duplicates.
var amountTolerance = decimal.New(1, -2) // 0.01

// Group is one cluster of duplicates: the first transaction encountered and
// every later transaction that matched it.
type Group struct {
	Original   domain.Transaction   `json:"original"`
	Duplicates []domain.Transaction `json:"duplicates"`
	Reason     string               `json:"reason"`
}

// FindDuplicates clusters transactions in a single left-to-right pass. A
// transaction joins the first group it matches and is never considered
// again, so no index appears in two groups. O(n²), fine at personal-finance
// volumes.
func FindDuplicates(txns []domain.Transaction) []Group {
	consumed := make([]bool, len(txns))
	var groups []Group

	for i := range txns {
		if consumed[i] {
			continue
		}

		var dups []domain.Transaction
		bestScore := 0.0
		best := -1
		for j := i + 1; j < len(txns); j++ {
			if consumed[j] {
				continue
			}
			score, ok := match(&txns[i], &txns[j])
			if !ok {
				continue
			}
			consumed[j] = true
			dups = append(dups, txns[j])
			if score > bestScore || best < 0 {
				bestScore = score
				best = len(dups) - 1
			}
		}

		if len(dups) == 0 {
			continue
		}
		consumed[i] = true
		// Both halves of the reason describe the same best-matching pair;
		// mixing the best score with another member's date would mislead.
		groups = append(groups, Group{
			Original:   txns[i],
			Duplicates: dups,
			Reason:     reason(&txns[i], &dups[best], bestScore),
		})
	}

	return groups
}

// IsDuplicate reports whether b is a duplicate of a under the strict
// criteria: amount within one cent, dates at most one day apart, and
// near-identical descriptions.
func IsDuplicate(a, b *domain.Transaction) bool {
	_, ok := match(a, b)
	return ok
}

// Reason explains why b duplicates a. It is only meaningful when
// IsDuplicate(a, b) holds.
func Reason(a, b *domain.Transaction) string {
	score, _ := match(a, b)
	return reason(a, b, score)
}

func match(a, b *domain.Transaction) (float64, bool) {
	if a.Amount.Sub(b.Amount).Abs().Cmp(amountTolerance) > 0 {
		return 0, false
	}
	if dayGap(a, b) > maxDayGap {
		return 0, false
	}

	score := similarity.Best(a.Description, b.Description)
	if score >= descSimilarThreshold {
		return score, true
	}
	// Reordered tokens can score poorly on edit distance; accept a lower
	// score when enough long words overlap.
	if score >= descOverlapFloor && similarity.HasWordOverlap(a.Description, b.Description) {
		return score, true
	}
	return score, false
}

func dayGap(a, b *domain.Transaction) int {
	gap := b.Date.DaysSince(a.Date)
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// reason assembles the human-readable explanation shown next to a group.
func reason(a, b *domain.Transaction, score float64) string {
	parts := []string{"Same amount"}

	if a.Date == b.Date {
		parts = append(parts, "Same date")
	} else {
		parts = append(parts, "Adjacent dates")
	}

	if score >= descIdenticalThreshold {
		parts = append(parts, "Identical description")
	} else {
		parts = append(parts, "Very similar description")
	}

	return strings.Join(parts, ", ")
}
