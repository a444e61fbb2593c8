// Package category maps free-text descriptions to category labels using
// per-user keyword sets. Matching is substring based, case-insensitive and
// strictly first-match: the order of the configured categories decides ties.
package category

import (
	"strings"

	"grana/internal/core"
)

// incomeTable is the fixed classification table for income transactions,
// checked in order before falling back to Outras Receitas.
var incomeTable = []core.Category{
	{Name: core.CategorySalary, Keywords: []string{"salário"}},
	{Name: core.CategoryOtherIncome, Keywords: []string{"recebi", "ganhei", "investimentos"}},
}

// Classify resolves a category label for a description. It always returns a
// non-empty label: income defaults to Outras Receitas, expenses to Outros.
func Classify(description string, txType core.TransactionType, categories []core.Category) string {
	desc := strings.ToLower(description)

	if txType == core.Income {
		for _, c := range incomeTable {
			if matches(desc, c.Keywords) {
				return c.Name
			}
		}
		return core.CategoryOtherIncome
	}

	if txType == core.Expense {
		for _, c := range categories {
			// Income-only categories never match an expense.
			if c.Name == core.CategorySalary || c.Name == core.CategoryOtherIncome {
				continue
			}
			if matches(desc, c.Keywords) {
				return c.Name
			}
		}
	}
	return core.CategoryFallback
}

func matches(desc string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}
