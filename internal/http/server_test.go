package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"grana/internal/bot"
	"grana/internal/core"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	categories   []core.Category
	accounts     core.Accounts
	rules        map[string]int
	goals        map[string]float64
	transactions []core.Transaction
	purchases    []core.Purchase
	reminders    []core.Reminder
	pending      core.PendingAction
}

func newMemStore() *memStore {
	return &memStore{
		categories: []core.Category{
			{Name: "Alimentação", Keywords: []string{"mercado"}},
			{Name: core.CategorySalary, Keywords: []string{"salário"}},
			{Name: core.CategoryOtherIncome, Keywords: []string{}},
		},
		accounts: core.Accounts{Accounts: []string{"Nubank"}, Cards: []string{"Nubank"}},
		rules:    map[string]int{"Nubank": 25},
		goals:    map[string]float64{},
	}
}

func (m *memStore) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	return m.transactions, nil
}
func (m *memStore) Purchases(ctx context.Context, userID string) ([]core.Purchase, error) {
	return m.purchases, nil
}
func (m *memStore) Reminders(ctx context.Context, userID string) ([]core.Reminder, error) {
	return m.reminders, nil
}
func (m *memStore) Categories(ctx context.Context, userID string) ([]core.Category, error) {
	return m.categories, nil
}
func (m *memStore) Accounts(ctx context.Context, userID string) (core.Accounts, error) {
	return m.accounts, nil
}
func (m *memStore) CardRules(ctx context.Context, userID string) (map[string]int, error) {
	return m.rules, nil
}
func (m *memStore) Goals(ctx context.Context, userID string) (map[string]float64, error) {
	return m.goals, nil
}
func (m *memStore) AppendTransaction(ctx context.Context, userID string, t core.Transaction) error {
	m.transactions = append(m.transactions, t)
	return nil
}
func (m *memStore) AppendPurchase(ctx context.Context, userID string, p core.Purchase) error {
	m.purchases = append(m.purchases, p)
	return nil
}
func (m *memStore) AppendReminder(ctx context.Context, userID string, r core.Reminder) error {
	m.reminders = append(m.reminders, r)
	return nil
}
func (m *memStore) SaveGoal(ctx context.Context, userID, cat string, amount float64) error {
	m.goals[cat] = amount
	return nil
}
func (m *memStore) PendingAction(ctx context.Context, userID string) (core.PendingAction, error) {
	return m.pending, nil
}
func (m *memStore) SetPendingAction(ctx context.Context, userID string, p core.PendingAction) error {
	m.pending = p
	return nil
}
func (m *memStore) ClearPendingAction(ctx context.Context, userID string) error {
	m.pending = core.PendingAction{}
	return nil
}
func (m *memStore) AddAccount(ctx context.Context, userID, name string) error {
	m.accounts.Accounts = append(m.accounts.Accounts, core.Capitalize(name))
	m.accounts.Cards = append(m.accounts.Cards, core.Capitalize(name))
	return nil
}
func (m *memStore) AddCategory(ctx context.Context, userID, name, keywords string) error {
	m.categories = append(m.categories, core.Category{Name: core.Capitalize(name)})
	return nil
}
func (m *memStore) DeleteCategory(ctx context.Context, userID, name string) error { return nil }
func (m *memStore) DeleteAccount(ctx context.Context, userID, name string) error  { return nil }
func (m *memStore) DeleteGoal(ctx context.Context, userID, cat string) error {
	delete(m.goals, cat)
	return nil
}
func (m *memStore) SaveCardRules(ctx context.Context, userID string, rules map[string]int) error {
	for card, day := range rules {
		m.rules[card] = day
	}
	return nil
}
func (m *memStore) DeleteReminder(ctx context.Context, userID string, timestamp time.Time) error {
	return nil
}

type recordingSender struct {
	sent []string
}

func (s *recordingSender) SendText(ctx context.Context, to, body string) error {
	s.sent = append(s.sent, to+": "+body)
	return nil
}

type nopSweeper struct{ ran bool }

func (s *nopSweeper) Run(ctx context.Context, now time.Time) error {
	s.ran = true
	return nil
}

func newTestServer(t *testing.T) (*Server, *memStore, *recordingSender, *nopSweeper) {
	t.Helper()
	store := newMemStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sender := &recordingSender{}
	sweeper := &nopSweeper{}
	srv := NewServer(":0", store, bot.NewRouter(store, logger), sender, sweeper, "verify-me", logger)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store, sender, sweeper
}

func TestWebhookVerification(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=verify-me&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("body = %q, want challenge echoed", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 on bad token", rec.Code)
	}
}

func TestWebhookInboundMessage(t *testing.T) {
	srv, store, sender, _ := newTestServer(t)

	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"554399990000","type":"text","text":{"body":"gastei 45,90 no mercado"}}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "EVENT_RECEIVED" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
	if len(store.transactions) != 1 {
		t.Fatalf("stored %d transactions, want 1", len(store.transactions))
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "Despesa registada") {
		t.Errorf("sent = %q", sender.sent)
	}
}

func TestWebhookNonTextEventAcknowledged(t *testing.T) {
	srv, store, sender, _ := newTestServer(t)

	payload := `{"entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(store.transactions) != 0 || len(sender.sent) != 0 {
		t.Error("status event must not produce transactions or replies")
	}
}

func TestDashboardEndpoint(t *testing.T) {
	srv, store, _, _ := newTestServer(t)
	store.transactions = []core.Transaction{
		{Type: core.Income, Description: "Salário", Amount: 3000, Method: core.Debit, Account: "Nubank", Timestamp: time.Now()},
	}

	req := httptest.NewRequest(http.MethodGet, "/dashboard/554399990000", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["user_id"] != "554399990000" {
		t.Errorf("user_id = %v", body["user_id"])
	}
	if body["total_receitas"].(float64) != 3000 {
		t.Errorf("total_receitas = %v", body["total_receitas"])
	}
	if _, ok := body["previsao_faturas"]; !ok {
		t.Error("missing previsao_faturas")
	}
}

func TestCheckRemindersEndpoint(t *testing.T) {
	srv, _, _, sweeper := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/check_reminders", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !sweeper.ran {
		t.Error("sweep was not triggered")
	}
	if rec.Body.String() != "Verificação de lembretes concluída." {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestAdminAddGoal(t *testing.T) {
	srv, store, _, _ := newTestServer(t)

	body := `{"user_id":"u1","categoria":"Alimentação","valor":500}`
	req := httptest.NewRequest(http.MethodPost, "/add_meta", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if store.goals["Alimentação"] != 500 {
		t.Errorf("goals = %+v", store.goals)
	}
}

func TestAdminSaveCardRulesValidation(t *testing.T) {
	srv, store, _, _ := newTestServer(t)

	body := `{"user_id":"u1","regras":{"Visa":40}}`
	req := httptest.NewRequest(http.MethodPost, "/save_card_rules", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for closing day 40", rec.Code)
	}

	body = `{"user_id":"u1","regras":{"Visa":10}}`
	req = httptest.NewRequest(http.MethodPost, "/save_card_rules", strings.NewReader(body))
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if store.rules["Visa"] != 10 {
		t.Errorf("rules = %+v", store.rules)
	}
}

func TestAdminBadRequest(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/add_category", strings.NewReader(`{"user_id":""}`))
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Errorf("%s: status = %d body = %q", path, rec.Code, rec.Body.String())
		}
	}
}
