package domain

import "strings"

// Category is one entry of the user's category set. Name is unique.
type Category struct {
	Name string `json:"name"`
	// CostType is the default cost type transactions inherit from this
	// category, or nil when the category has no default.
	CostType *CostType `json:"cost_type,omitempty"`
}

// IsIncome reports whether the category is an income category. This is a
// naming convention: income categories end in "Income" (e.g. "Salary Income").
func (c Category) IsIncome() bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(c.Name)), "income")
}

// CategoryNames extracts the names of a category list, preserving order.
func CategoryNames(categories []Category) []string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names
}
