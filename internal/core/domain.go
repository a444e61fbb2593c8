package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Expense TransactionType = "despesa"
	Income  TransactionType = "receita"
	Unknown TransactionType = "desconhecido"

	Credit PaymentMethod = "crédito"
	Debit  PaymentMethod = "débito"
	Other  PaymentMethod = "outro"
)

// Reserved category names. Salário and Outras Receitas are used only for
// income classification and are never eligible when classifying an expense.
const (
	CategorySalary      = "Salário"
	CategoryOtherIncome = "Outras Receitas"
	CategoryFallback    = "Outros"
	CategoryPayments    = "Pagamentos"
)

// PendingNewAccount marks a yes/no question about adding an unknown account.
const PendingNewAccount = "nova_conta"

type (
	TransactionType string
	PaymentMethod   string

	// Transaction is a single ledger entry. Virtual installment
	// transactions share this shape but are synthesized per dashboard
	// request and never persisted.
	Transaction struct {
		Type        TransactionType `json:"tipo"`
		Description string          `json:"descricao"`
		Amount      float64         `json:"valor"`
		Category    string          `json:"categoria"`
		Method      PaymentMethod   `json:"metodo"`
		Card        string          `json:"cartao,omitempty"`
		Account     string          `json:"conta,omitempty"`
		Timestamp   time.Time       `json:"timestamp"`
	}

	// Purchase is an installment purchase. The per-installment amount is
	// never stored; both the current-month view and the forecast recompute
	// it from the same division.
	Purchase struct {
		Description  string    `json:"descricao"`
		TotalAmount  float64   `json:"valor_total"`
		Installments int       `json:"num_parcelas"`
		Card         string    `json:"cartao"`
		Category     string    `json:"categoria"`
		StartDate    time.Time `json:"data_inicio"`
	}

	// Reminder is a purely informational upcoming payment; it has no link
	// to transactions.
	Reminder struct {
		Description string    `json:"descricao"`
		Amount      float64   `json:"valor"`
		DueDay      int       `json:"dia_vencimento"`
		Timestamp   time.Time `json:"timestamp"`
	}

	// Category pairs a name with its lowercase keyword triggers. User
	// categories are kept as an ordered slice: classification is
	// first-match in this order, which is an observable contract.
	Category struct {
		Name     string   `json:"nome"`
		Keywords []string `json:"palavras"`
	}

	// Accounts holds the user's known account and card names. Names are
	// matched case-insensitively against free text but stored capitalized.
	Accounts struct {
		Accounts []string `json:"contas"`
		Cards    []string `json:"cartoes"`
	}

	// PendingAction is the single pending yes/no interaction for a user.
	// A zero Kind means no question is outstanding.
	PendingAction struct {
		Kind string `json:"tipo"`
		Item string `json:"item"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDueDay    = errors.New("due day must be between 1 and 31")
)

func (p PendingAction) IsZero() bool {
	return p.Kind == ""
}

// PerInstallment returns the floating-point installment amount. No rounding
// is applied here; display rounds to 2 decimals only at render time.
func (p Purchase) PerInstallment() float64 {
	return p.TotalAmount / float64(p.Installments)
}

func (p Purchase) Validate() error {
	if strings.TrimSpace(p.Description) == "" {
		return ErrEmptyDescription
	}
	if p.TotalAmount <= 0 {
		return ErrInvalidAmount
	}
	if p.Installments < 1 {
		return errors.New("installment count must be at least 1")
	}
	if strings.TrimSpace(p.Card) == "" {
		return errors.New("empty card")
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if t.Amount < 0 {
		return ErrInvalidAmount
	}
	if t.Category == "" {
		return errors.New("unresolved category")
	}
	return nil
}

func (r Reminder) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	if r.DueDay < 1 || r.DueDay > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

// Capitalize upper-cases the first rune and lower-cases the rest, matching
// how account, card and category names are normalized before storage.
func Capitalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	runes := []rune(strings.ToLower(s))
	upper := []rune(strings.ToUpper(string(runes[0])))
	runes[0] = upper[0]
	return string(runes)
}

// FormatBRL renders an amount the way chat replies show money, e.g. "R$ 45.90".
func FormatBRL(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}
