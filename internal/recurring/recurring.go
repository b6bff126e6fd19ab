// Package recurring detects subscription-like transaction patterns:
// repeated charges with stable amounts on a weekly, bi-weekly or monthly
// cadence.
package recurring

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/domain"
)

// Frequency is the detected cadence of a recurring pattern.
type Frequency string

const (
	FrequencyWeekly   Frequency = "Weekly"
	FrequencyBiweekly Frequency = "Bi-weekly"
	FrequencyMonthly  Frequency = "Monthly"
)

// amountBand is the allowed deviation of each amount from the group mean.
var amountBand = decimal.NewFromFloat(0.05)

// Pattern is one detected recurring charge.
type Pattern struct {
	Description  string               `json:"description"`
	Transactions []domain.Transaction `json:"transactions"`
	Frequency    Frequency            `json:"frequency"`
	AvgAmount    decimal.Decimal      `json:"avg_amount"`
	Count        int                  `json:"count"`
}

// FindRecurring groups transactions by exact (case-folded, trimmed)
// description and keeps the groups whose amounts stay within 5% of the mean
// and whose mean date interval falls in a known cadence window. Results are
// sorted by occurrence count, descending.
//
// Grouping is deliberately exact-match while duplicate detection is fuzzy:
// a recurring charge repeats its statement text verbatim.
func FindRecurring(txns []domain.Transaction) []Pattern {
	groups := make(map[string][]domain.Transaction)
	labels := make(map[string]string)
	for _, t := range txns {
		key := strings.ToLower(strings.TrimSpace(t.Description))
		if key == "" {
			continue
		}
		if _, ok := labels[key]; !ok {
			labels[key] = strings.TrimSpace(t.Description)
		}
		groups[key] = append(groups[key], t)
	}

	var patterns []Pattern
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		mean, ok := stableMeanAmount(group)
		if !ok {
			continue
		}

		sort.Slice(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })
		freq, ok := classifyInterval(group)
		if !ok {
			continue
		}

		patterns = append(patterns, Pattern{
			Description:  labels[key],
			Transactions: group,
			Frequency:    freq,
			AvgAmount:    mean,
			Count:        len(group),
		})
	}

	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Count != patterns[j].Count {
			return patterns[i].Count > patterns[j].Count
		}
		return patterns[i].Description < patterns[j].Description
	})

	return patterns
}

// stableMeanAmount returns the mean absolute amount of the group and
// whether every amount lies within 5% of it.
func stableMeanAmount(group []domain.Transaction) (decimal.Decimal, bool) {
	sum := decimal.Zero
	for _, t := range group {
		sum = sum.Add(t.Amount.Abs())
	}
	mean := sum.Div(decimal.NewFromInt(int64(len(group))))
	if mean.IsZero() {
		return mean, false
	}

	tolerance := mean.Mul(amountBand)
	for _, t := range group {
		if t.Amount.Abs().Sub(mean).Abs().Cmp(tolerance) > 0 {
			return mean, false
		}
	}
	return mean, true
}

// classifyInterval computes the mean consecutive-day interval of a
// date-sorted group and maps it to a cadence window. Groups outside every
// window are not recurring.
func classifyInterval(group []domain.Transaction) (Frequency, bool) {
	var totalDays int
	for i := 1; i < len(group); i++ {
		totalDays += group[i].Date.DaysSince(group[i-1].Date)
	}
	mean := float64(totalDays) / float64(len(group)-1)

	switch {
	case mean >= 25 && mean <= 35:
		return FrequencyMonthly, true
	case mean >= 6 && mean <= 9:
		return FrequencyWeekly, true
	case mean >= 12 && mean <= 16:
		return FrequencyBiweekly, true
	}
	return "", false
}
