package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"grana/internal/core"
)

type fakeStore struct {
	categories   []core.Category
	accounts     core.Accounts
	pending      core.PendingAction
	transactions []core.Transaction
	purchases    []core.Purchase
	reminders    []core.Reminder
	goals        map[string]float64
	added        []string
}

func (f *fakeStore) Categories(ctx context.Context, userID string) ([]core.Category, error) {
	return f.categories, nil
}

func (f *fakeStore) Accounts(ctx context.Context, userID string) (core.Accounts, error) {
	return f.accounts, nil
}

func (f *fakeStore) AppendTransaction(ctx context.Context, userID string, t core.Transaction) error {
	f.transactions = append(f.transactions, t)
	return nil
}

func (f *fakeStore) AppendPurchase(ctx context.Context, userID string, p core.Purchase) error {
	f.purchases = append(f.purchases, p)
	return nil
}

func (f *fakeStore) AppendReminder(ctx context.Context, userID string, r core.Reminder) error {
	f.reminders = append(f.reminders, r)
	return nil
}

func (f *fakeStore) SaveGoal(ctx context.Context, userID, cat string, amount float64) error {
	if f.goals == nil {
		f.goals = map[string]float64{}
	}
	f.goals[cat] = amount
	return nil
}

func (f *fakeStore) PendingAction(ctx context.Context, userID string) (core.PendingAction, error) {
	return f.pending, nil
}

func (f *fakeStore) SetPendingAction(ctx context.Context, userID string, p core.PendingAction) error {
	f.pending = p
	return nil
}

func (f *fakeStore) ClearPendingAction(ctx context.Context, userID string) error {
	f.pending = core.PendingAction{}
	return nil
}

func (f *fakeStore) AddAccount(ctx context.Context, userID, name string) error {
	f.added = append(f.added, core.Capitalize(name))
	return nil
}

func testRouter(store *fakeStore) *Router {
	rt := NewRouter(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rt.now = func() time.Time {
		return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	}
	return rt
}

func defaultFake() *fakeStore {
	return &fakeStore{
		categories: []core.Category{
			{Name: "Alimentação", Keywords: []string{"mercado", "pão"}},
			{Name: "Saúde", Keywords: []string{"farmácia"}},
			{Name: core.CategorySalary, Keywords: []string{"salário"}},
			{Name: core.CategoryOtherIncome, Keywords: []string{}},
		},
		accounts: core.Accounts{
			Accounts: []string{"Nubank", "Itaú"},
			Cards:    []string{"Nubank", "Mercado Pago"},
		},
	}
}

func TestHandleExpense(t *testing.T) {
	store := defaultFake()
	rt := testRouter(store)

	replies, err := rt.Handle(context.Background(), "u1", "gastei 45,90 no mercado")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Despesa registada") {
		t.Fatalf("replies = %q", replies)
	}
	if len(store.transactions) != 1 {
		t.Fatalf("stored %d transactions, want 1", len(store.transactions))
	}
	tx := store.transactions[0]
	if tx.Type != core.Expense || tx.Amount != 45.90 || tx.Category != "Alimentação" {
		t.Errorf("transaction = %+v", tx)
	}
}

func TestHandleIncomeWithKnownAccount(t *testing.T) {
	store := defaultFake()
	rt := testRouter(store)

	replies, err := rt.Handle(context.Background(), "u1", "recebi 2000 no nubank")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Receita registada") {
		t.Fatalf("replies = %q", replies)
	}
	if store.transactions[0].Account != "Nubank" {
		t.Errorf("Account = %q, want Nubank", store.transactions[0].Account)
	}
	if !store.pending.IsZero() {
		t.Errorf("no pending action expected, got %+v", store.pending)
	}
}

func TestHandleIncomeUnknownAccountAsksQuestion(t *testing.T) {
	store := defaultFake()
	rt := testRouter(store)

	replies, err := rt.Handle(context.Background(), "u1", "recebi 500 na caixinha")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 2 {
		t.Fatalf("want confirmation plus question, got %q", replies)
	}
	if !strings.Contains(replies[1], "Caixinha") {
		t.Errorf("question = %q", replies[1])
	}
	if store.pending.Kind != core.PendingNewAccount || store.pending.Item != "caixinha" {
		t.Errorf("pending = %+v", store.pending)
	}
}

func TestHandleAnswerYesAddsAccount(t *testing.T) {
	store := defaultFake()
	store.pending = core.PendingAction{Kind: core.PendingNewAccount, Item: "caixinha"}
	rt := testRouter(store)

	replies, err := rt.Handle(context.Background(), "u1", "sim")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Conta 'Caixinha' adicionada") {
		t.Fatalf("replies = %q", replies)
	}
	if len(store.added) != 1 || store.added[0] != "Caixinha" {
		t.Errorf("added = %q", store.added)
	}
	if !store.pending.IsZero() {
		t.Error("pending action must be cleared")
	}
}

func TestHandleAnswerNoDeclines(t *testing.T) {
	store := defaultFake()
	store.pending = core.PendingAction{Kind: core.PendingNewAccount, Item: "caixinha"}
	rt := testRouter(store)

	replies, err := rt.Handle(context.Background(), "u1", "melhor não")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || replies[0] != "Ok, não vou adicionar." {
		t.Fatalf("replies = %q", replies)
	}
	if len(store.added) != 0 {
		t.Errorf("nothing should be added, got %q", store.added)
	}
	if !store.pending.IsZero() {
		t.Error("pending action must be cleared even on decline")
	}
}

func TestHandleReminderFlow(t *testing.T) {
	store := defaultFake()
	rt := testRouter(store)
	ctx := context.Background()

	replies, err := rt.Handle(ctx, "u1", "lembrete")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 2 || !strings.Contains(replies[1], "vence dia") {
		t.Fatalf("template replies = %q", replies)
	}

	replies, err = rt.Handle(ctx, "u1", "lembrete: aluguel\nvalor: 1500\nvence dia: 5")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "todo dia 5") {
		t.Fatalf("replies = %q", replies)
	}
	if len(store.reminders) != 1 || store.reminders[0].DueDay != 5 {
		t.Errorf("reminders = %+v", store.reminders)
	}

	replies, err = rt.Handle(ctx, "u1", "lembrete: aluguel\nvalor: 1500\nvence dia: 45")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "entre 1 e 31") {
		t.Fatalf("replies = %q", replies)
	}
}

func TestHandleInstallmentFlow(t *testing.T) {
	store := defaultFake()
	rt := testRouter(store)
	ctx := context.Background()

	replies, err := rt.Handle(ctx, "u1", "parcelado")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 2 || !strings.Contains(replies[1], "Nubank, Mercado Pago") {
		t.Fatalf("template replies = %q", replies)
	}

	replies, err = rt.Handle(ctx, "u1", "parcelado: notebook\nvalor: 3000\nparcelas: 10\ncartão: nubank")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "10x de R$ 300.00") {
		t.Fatalf("replies = %q", replies)
	}
	if len(store.purchases) != 1 || store.purchases[0].Card != "Nubank" {
		t.Errorf("purchases = %+v", store.purchases)
	}

	replies, err = rt.Handle(ctx, "u1", "parcelado: notebook\nvalor: 3000\nparcelas: 10\ncartão: visa")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Cartão 'Visa' não reconhecido") {
		t.Fatalf("replies = %q", replies)
	}

	replies, err = rt.Handle(ctx, "u1", "parcelado: notebook\nvalor: abc")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Formato da compra parcelada inválido") {
		t.Fatalf("replies = %q", replies)
	}
}

func TestHandleGoalFlow(t *testing.T) {
	store := defaultFake()
	rt := testRouter(store)
	ctx := context.Background()

	replies, err := rt.Handle(ctx, "u1", "meta saúde 200")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Meta de R$ 200.00") {
		t.Fatalf("replies = %q", replies)
	}
	if store.goals["Saúde"] != 200 {
		t.Errorf("goals = %+v", store.goals)
	}

	replies, err = rt.Handle(ctx, "u1", "meta pets 100")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "não encontrada") {
		t.Fatalf("replies = %q", replies)
	}
	if !strings.Contains(replies[0], "Alimentação") {
		t.Errorf("error must list available categories, got %q", replies[0])
	}

	replies, err = rt.Handle(ctx, "u1", "meta saúde")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Formato inválido") {
		t.Fatalf("replies = %q", replies)
	}
}

func TestHandleNoAmountGuidance(t *testing.T) {
	store := defaultFake()
	rt := testRouter(store)
	ctx := context.Background()

	replies, err := rt.Handle(ctx, "u1", "gastei com mercado")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Não consegui identificar um valor") {
		t.Fatalf("replies = %q", replies)
	}

	// A message that is nothing but separators parses to no amount and gets
	// the "diga algo como" guidance instead.
	replies, err = rt.Handle(ctx, "u1", ",,,")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 1 || !strings.Contains(replies[0], "Gastei 10 reais com pão") {
		t.Fatalf("replies = %q", replies)
	}
}

func TestHandleUnknownTypeStoresSilently(t *testing.T) {
	store := defaultFake()
	rt := testRouter(store)

	replies, err := rt.Handle(context.Background(), "u1", "45,90")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(replies) != 0 {
		t.Fatalf("unknown-type message must get no reply, got %q", replies)
	}
	if len(store.transactions) != 1 || store.transactions[0].Type != core.Unknown {
		t.Errorf("transactions = %+v", store.transactions)
	}
}
