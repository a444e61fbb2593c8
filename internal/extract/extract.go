// Package extract turns chat messages into structured ledger data: the
// free-text transaction extractor and the line-oriented template parsers
// for installment purchases, reminders and goals.
package extract

import (
	"errors"
	"strings"

	"grana/internal/category"
	"grana/internal/core"
)

// ErrNoAmount signals that no numeric run in the message parsed to a value.
// The caller decides which guidance string to surface.
var ErrNoAmount = errors.New("no amount found")

var (
	expenseWords = []string{"comprei", "gastei", "paguei"}
	incomeWords  = []string{"recebi", "ganhei", "salário"}

	creditTokens = []string{"crédito", "cartao", "cartão"}
	debitTokens  = []string{"débito", "pix", "swile"}
)

// Draft is the extractor output before persistence. Card and Account are
// empty when no known name matched.
type Draft struct {
	Type        core.TransactionType
	Amount      float64
	Description string
	Method      core.PaymentMethod
	Card        string
	Account     string
}

// Transaction extracts a transaction draft from free text. It is a pure
// function: classification uses the entire original text as description and
// the caller persists the result.
func Transaction(text string, accounts core.Accounts, categories []core.Category) (Draft, error) {
	lower := strings.ToLower(text)

	d := Draft{
		Type:        core.Unknown,
		Description: text,
		Method:      core.Other,
	}

	if containsAny(lower, expenseWords) {
		d.Type = core.Expense
	} else if containsAny(lower, incomeWords) {
		d.Type = core.Income
	}

	amount, ok := core.FindAmount(text)
	if !ok {
		return Draft{}, ErrNoAmount
	}
	d.Amount = amount

	switch d.Type {
	case core.Income:
		d.Method = core.Debit
		d.Account = matchName(lower, accounts.Accounts)
	case core.Expense:
		if containsAny(lower, creditTokens) {
			d.Method = core.Credit
			d.Card = matchName(lower, accounts.Cards)
		} else if containsAny(lower, debitTokens) {
			d.Method = core.Debit
			d.Account = matchName(lower, accounts.Accounts)
		}
	}

	// Invoice payments are always debit, whatever was resolved above.
	if category.Classify(text, core.Expense, categories) == core.CategoryPayments {
		d.Method = core.Debit
	}

	return d, nil
}

func containsAny(lower string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// matchName returns the first known name appearing in the lowercased text,
// scanned in stored order. Matching is unscoped substring search; a name
// that happens to be part of another word still matches (kept as documented
// behavior).
func matchName(lower string, names []string) string {
	for _, n := range names {
		if strings.Contains(lower, strings.ToLower(n)) {
			return n
		}
	}
	return ""
}
