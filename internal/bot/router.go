// Package bot turns inbound chat messages into replies. The router checks
// the template commands first, then any outstanding question, and treats
// everything else as a free-text transaction.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"grana/internal/category"
	"grana/internal/core"
	"grana/internal/extract"
)

// Store is the slice of the storage layer the router needs.
type Store interface {
	Categories(ctx context.Context, userID string) ([]core.Category, error)
	Accounts(ctx context.Context, userID string) (core.Accounts, error)
	AppendTransaction(ctx context.Context, userID string, t core.Transaction) error
	AppendPurchase(ctx context.Context, userID string, p core.Purchase) error
	AppendReminder(ctx context.Context, userID string, r core.Reminder) error
	SaveGoal(ctx context.Context, userID, cat string, amount float64) error
	PendingAction(ctx context.Context, userID string) (core.PendingAction, error)
	SetPendingAction(ctx context.Context, userID string, p core.PendingAction) error
	ClearPendingAction(ctx context.Context, userID string) error
	AddAccount(ctx context.Context, userID, name string) error
}

// Router dispatches one message to the right handler. Replies are zero, one
// or two messages, sent in order.
type Router struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewRouter(store Store, logger *slog.Logger) *Router {
	return &Router{store: store, logger: logger, now: time.Now}
}

// Handle processes one inbound message. A nil error with no replies means
// the message was understood but calls for no answer.
func (rt *Router) Handle(ctx context.Context, userID, text string) ([]string, error) {
	lower := strings.ToLower(strings.TrimSpace(text))

	switch {
	case strings.HasPrefix(lower, "meta "):
		return rt.handleGoal(ctx, userID, text)
	case lower == "lembrete":
		return []string{
			"Para registar um lembrete, copie o modelo abaixo, preencha e envie:",
			"lembrete: [descrição]\nvalor: [valor]\nvence dia: [dia]",
		}, nil
	case strings.HasPrefix(lower, "lembrete:"):
		return rt.handleReminder(ctx, userID, text)
	case lower == "parcelado":
		return rt.installmentTemplate(ctx, userID)
	case strings.HasPrefix(lower, "parcelado:"):
		return rt.handleInstallment(ctx, userID, text)
	}

	pending, err := rt.store.PendingAction(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pending action: %w", err)
	}
	if !pending.IsZero() {
		return rt.handleAnswer(ctx, userID, lower, pending)
	}

	return rt.handleTransaction(ctx, userID, text)
}

func (rt *Router) handleGoal(ctx context.Context, userID, text string) ([]string, error) {
	name, amount, err := extract.Goal(text)
	if err != nil {
		return []string{"❌ Formato inválido. Use: meta [categoria] [valor]"}, nil
	}

	categories, err := rt.store.Categories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	if !hasCategory(categories, name) {
		names := make([]string, len(categories))
		for i, c := range categories {
			names[i] = c.Name
		}
		return []string{fmt.Sprintf(
			"❌ Categoria '%s' não encontrada.\n\nCategorias disponíveis são: %s",
			name, strings.Join(names, ", "),
		)}, nil
	}

	if err := rt.store.SaveGoal(ctx, userID, name, amount); err != nil {
		return nil, fmt.Errorf("save goal: %w", err)
	}
	return []string{fmt.Sprintf("✅ Meta de %s definida para a categoria '%s'.", core.FormatBRL(amount), name)}, nil
}

func (rt *Router) handleReminder(ctx context.Context, userID, text string) ([]string, error) {
	r, err := extract.Reminder(text, rt.now())
	if errors.Is(err, core.ErrInvalidDueDay) {
		return []string{"❌ O dia do vencimento deve ser um número entre 1 e 31."}, nil
	}
	if err != nil {
		return []string{"❌ Formato do lembrete inválido. Por favor, use o modelo exato que eu enviei."}, nil
	}

	if err := rt.store.AppendReminder(ctx, userID, r); err != nil {
		return nil, fmt.Errorf("save reminder: %w", err)
	}
	return []string{fmt.Sprintf(
		"✅ Lembrete registado: '%s' no valor de %s, com vencimento todo dia %d.",
		r.Description, core.FormatBRL(r.Amount), r.DueDay,
	)}, nil
}

func (rt *Router) installmentTemplate(ctx context.Context, userID string) ([]string, error) {
	accounts, err := rt.store.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	return []string{
		"Para registar uma compra parcelada, por favor, copie o modelo abaixo, preencha os dados e envie:",
		fmt.Sprintf(
			"parcelado: [descrição da compra]\nvalor: [valor total]\nparcelas: [Nº de parcelas]\ncartão: [um de: %s]",
			strings.Join(accounts.Cards, ", "),
		),
	}, nil
}

func (rt *Router) handleInstallment(ctx context.Context, userID, text string) ([]string, error) {
	accounts, err := rt.store.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	categories, err := rt.store.Categories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	p, err := extract.Installment(text, accounts.Cards, categories, rt.now())
	var unknownCard *extract.UnknownCardError
	if errors.As(err, &unknownCard) {
		return []string{fmt.Sprintf(
			"❌ Cartão '%s' não reconhecido. Cartões disponíveis: %s.",
			unknownCard.Card, strings.Join(unknownCard.Known, ", "),
		)}, nil
	}
	if err != nil {
		return []string{"❌ Formato da compra parcelada inválido. Por favor, use o modelo exato que eu enviei."}, nil
	}

	if err := rt.store.AppendPurchase(ctx, userID, p); err != nil {
		return nil, fmt.Errorf("save purchase: %w", err)
	}
	return []string{fmt.Sprintf(
		"✅ Compra parcelada registada: '%s'\nValor: %s em %dx de %s\nCartão: %s",
		p.Description, core.FormatBRL(p.TotalAmount), p.Installments,
		core.FormatBRL(p.PerInstallment()), p.Card,
	)}, nil
}

// handleAnswer consumes the outstanding question together with the answer,
// whatever the answer is.
func (rt *Router) handleAnswer(ctx context.Context, userID, lower string, pending core.PendingAction) ([]string, error) {
	if err := rt.store.ClearPendingAction(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear pending action: %w", err)
	}

	if lower == "sim" && pending.Kind == core.PendingNewAccount {
		if err := rt.store.AddAccount(ctx, userID, pending.Item); err != nil {
			return nil, fmt.Errorf("add account: %w", err)
		}
		return []string{fmt.Sprintf("✅ Conta '%s' adicionada com sucesso!", core.Capitalize(pending.Item))}, nil
	}
	return []string{"Ok, não vou adicionar."}, nil
}

func (rt *Router) handleTransaction(ctx context.Context, userID, text string) ([]string, error) {
	accounts, err := rt.store.Accounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	categories, err := rt.store.Categories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	draft, err := extract.Transaction(text, accounts, categories)
	if errors.Is(err, extract.ErrNoAmount) {
		if core.IsBareNumber(text) {
			return []string{"Não entendi sua mensagem. Para registar, diga algo como 'Gastei 10 reais com pão'."}, nil
		}
		return []string{"Não consegui identificar um valor na sua mensagem. Tente novamente."}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract transaction: %w", err)
	}

	t := core.Transaction{
		Type:        draft.Type,
		Description: draft.Description,
		Amount:      draft.Amount,
		Category:    category.Classify(draft.Description, draft.Type, categories),
		Method:      draft.Method,
		Card:        draft.Card,
		Account:     draft.Account,
		Timestamp:   rt.now(),
	}

	var followUp string
	if t.Type == core.Income && t.Account == "" {
		if name := accountCandidate(text); name != "" {
			pending := core.PendingAction{Kind: core.PendingNewAccount, Item: name}
			if err := rt.store.SetPendingAction(ctx, userID, pending); err != nil {
				return nil, fmt.Errorf("set pending action: %w", err)
			}
			followUp = fmt.Sprintf(
				"Não conheço a conta '%s'. Quer que eu adicione? Responda 'sim' para confirmar.",
				core.Capitalize(name),
			)
		}
	}

	if err := rt.store.AppendTransaction(ctx, userID, t); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}
	rt.logger.InfoContext(ctx, "transaction registered",
		"user_id", userID, "type", string(t.Type), "amount", t.Amount, "category", t.Category)

	var replies []string
	switch t.Type {
	case core.Expense:
		replies = append(replies, fmt.Sprintf("✅ Despesa registada: '%s' (%s).", t.Description, core.FormatBRL(t.Amount)))
	case core.Income:
		replies = append(replies, fmt.Sprintf("✅ Receita registada: '%s' (%s).", t.Description, core.FormatBRL(t.Amount)))
	default:
		// Unknown type is stored but gets no confirmation.
		return nil, nil
	}
	if followUp != "" {
		replies = append(replies, followUp)
	}
	return replies, nil
}

// accountCandidate picks the last word of an income message as a possible
// new account name. Numbers, short fragments and the income trigger words
// themselves never qualify.
func accountCandidate(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return ""
	}
	last := strings.TrimFunc(words[len(words)-1], unicode.IsPunct)
	if len([]rune(last)) < 3 {
		return ""
	}
	for _, r := range last {
		if unicode.IsDigit(r) {
			return ""
		}
	}
	switch last {
	case "recebi", "ganhei", "salário", "reais":
		return ""
	}
	return last
}

func hasCategory(categories []core.Category, name string) bool {
	for _, c := range categories {
		if c.Name == name {
			return true
		}
	}
	return false
}
