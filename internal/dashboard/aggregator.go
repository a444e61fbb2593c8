// Package dashboard assembles the full read model consumed by the
// presentation layer: merged transactions, balances, invoices, forecast
// and goal progress for one user.
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"grana/internal/billing"
	"grana/internal/core"
)

// Store is the slice of the storage layer the aggregator reads from.
type Store interface {
	Transactions(ctx context.Context, userID string) ([]core.Transaction, error)
	Purchases(ctx context.Context, userID string) ([]core.Purchase, error)
	Reminders(ctx context.Context, userID string) ([]core.Reminder, error)
	Categories(ctx context.Context, userID string) ([]core.Category, error)
	Accounts(ctx context.Context, userID string) (core.Accounts, error)
	CardRules(ctx context.Context, userID string) (map[string]int, error)
	Goals(ctx context.Context, userID string) (map[string]float64, error)
}

// AccountBalance is the per-account income/expense split.
type AccountBalance struct {
	Income  float64 `json:"receitas"`
	Expense float64 `json:"despesas"`
	Balance float64 `json:"saldo"`
}

// GoalProgress tracks one category goal for the current month.
type GoalProgress struct {
	Spent   float64 `json:"gasto"`
	Target  float64 `json:"meta"`
	Percent float64 `json:"percentual"`
}

// Data is the aggregate read model. The field set is fixed: it bundles the
// derived views plus the pass-through configuration the presentation layer
// renders verbatim.
type Data struct {
	UserID         string                        `json:"user_id"`
	Transactions   []core.Transaction            `json:"transacoes"`
	TotalIncome    float64                       `json:"total_receitas"`
	TotalExpense   float64                       `json:"total_despesas"`
	Balance        float64                       `json:"balanco"`
	DebitExpenses  []core.Transaction            `json:"despesas_debito"`
	CreditExpenses []core.Transaction            `json:"despesas_credito"`
	TotalDebit     float64                       `json:"total_gastos_debito"`
	TotalCredit    float64                       `json:"total_gastos_credito"`
	Accounts       map[string]AccountBalance     `json:"saldos_por_conta"`
	Invoices       map[string]float64            `json:"faturas"`
	Forecast       map[string]map[string]float64 `json:"previsao_faturas"`
	ForecastLabels []string                      `json:"meses_previsao"`
	Goals          map[string]GoalProgress       `json:"progresso_metas"`
	Categories     []core.Category               `json:"categorias_disponiveis"`
	KnownAccounts  core.Accounts                 `json:"contas_disponiveis"`
	GoalTargets    map[string]float64            `json:"metas"`
	Reminders      []core.Reminder               `json:"lembretes"`
	CardRules      map[string]int                `json:"regras_cartoes"`
}

// Build loads everything the dashboard needs and derives all views. Virtual
// installment transactions for the current month are merged with the real
// ones before any total is computed.
func Build(ctx context.Context, store Store, userID string, now time.Time) (*Data, error) {
	transactions, err := store.Transactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	purchases, err := store.Purchases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	reminders, err := store.Reminders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	categories, err := store.Categories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	accounts, err := store.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	rules, err := store.CardRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load card rules: %w", err)
	}
	goals, err := store.Goals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}

	merged := append(transactions, billing.CurrentInstallments(purchases, rules, now)...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.After(merged[j].Timestamp)
	})

	d := &Data{
		UserID:        userID,
		Transactions:  merged,
		Invoices:      map[string]float64{},
		Categories:    categories,
		KnownAccounts: accounts,
		GoalTargets:   goals,
		Reminders:     reminders,
		CardRules:     rules,
	}

	for _, t := range merged {
		switch t.Type {
		case core.Income:
			d.TotalIncome += t.Amount
		case core.Expense:
			d.TotalExpense += t.Amount
			switch t.Method {
			case core.Debit:
				d.DebitExpenses = append(d.DebitExpenses, t)
				d.TotalDebit += t.Amount
			case core.Credit:
				d.CreditExpenses = append(d.CreditExpenses, t)
				d.TotalCredit += t.Amount
				if t.Card != "" {
					d.Invoices[t.Card] += t.Amount
				}
			}
		}
	}
	d.Balance = d.TotalIncome - d.TotalExpense

	d.Accounts = accountBalances(merged, accounts.Accounts)
	d.Forecast, d.ForecastLabels = billing.Forecast(purchases, accounts.Cards, rules, now)
	d.Goals = goalProgress(merged, goals)

	return d, nil
}

// accountBalances sums income and debit expenses per known account.
// Transactions on unknown accounts stay out of every bucket; they still
// count toward the global totals.
func accountBalances(transactions []core.Transaction, known []string) map[string]AccountBalance {
	balances := make(map[string]AccountBalance, len(known))
	for _, name := range known {
		balances[name] = AccountBalance{}
	}

	for _, t := range transactions {
		if t.Type != core.Income && t.Method != core.Debit {
			continue
		}
		b, ok := balances[t.Account]
		if !ok {
			continue
		}
		switch t.Type {
		case core.Income:
			b.Income += t.Amount
		case core.Expense:
			b.Expense += t.Amount
		}
		balances[t.Account] = b
	}

	for name, b := range balances {
		b.Balance = b.Income - b.Expense
		balances[name] = b
	}
	return balances
}

// goalProgress computes per-category spend against each goal. Percent is
// capped at 100 and forced to 0 for a zero target so the division can
// never blow up.
func goalProgress(transactions []core.Transaction, goals map[string]float64) map[string]GoalProgress {
	spentByCategory := map[string]float64{}
	for _, t := range transactions {
		if t.Type != core.Expense {
			continue
		}
		cat := t.Category
		if cat == "" {
			cat = core.CategoryFallback
		}
		spentByCategory[cat] += t.Amount
	}

	progress := make(map[string]GoalProgress, len(goals))
	for cat, target := range goals {
		spent := spentByCategory[cat]
		percent := 0.0
		if target > 0 {
			percent = spent / target * 100
			if percent > 100 {
				percent = 100
			}
		}
		progress[cat] = GoalProgress{Spent: spent, Target: target, Percent: percent}
	}
	return progress
}
