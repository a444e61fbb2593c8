// Package storage persists per-user ledger data in SQLite as a key/value
// table with JSON values, one row per (user, key). Read-modify-write
// sequences (load list, append, store list) run inside a single SQL
// transaction so concurrent messages from the same user cannot lose
// updates.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"grana/internal/core"

	_ "modernc.org/sqlite"
)

// Storage keys, one per entity collection. They match the vocabulary used
// across the chat interface.
const (
	keyTransactions = "transacoes"
	keyPurchases    = "parceladas"
	keyReminders    = "lembretes"
	keyCategories   = "categorias"
	keyAccounts     = "contas"
	keyCardRules    = "regras_cartoes"
	keyGoals        = "metas"
	keyPending      = "ultima_pergunta"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// get unmarshals the stored value for (user, key) into dest, reporting
// whether a row existed.
func (s *SQLiteStore) get(ctx context.Context, userID, key string, dest any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_data WHERE user_id = ? AND key = ?`,
		userID, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s for %s: %w", key, userID, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("decode %s for %s: %w", key, userID, err)
	}
	return true, nil
}

func (s *SQLiteStore) set(ctx context.Context, userID, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s for %s: %w", key, userID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_data (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("write %s for %s: %w", key, userID, err)
	}
	return nil
}

// update runs a read-modify-write for one (user, key) inside a transaction.
// fn receives the raw stored JSON (nil when absent) and returns the value
// to store.
func (s *SQLiteStore) update(ctx context.Context, userID, key string, fn func(raw []byte) (any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update of %s for %s: %w", key, userID, err)
	}
	defer tx.Rollback()

	var raw []byte
	var stored string
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM user_data WHERE user_id = ? AND key = ?`,
		userID, key).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		raw = nil
	case err != nil:
		return fmt.Errorf("read %s for %s: %w", key, userID, err)
	default:
		raw = []byte(stored)
	}

	next, err := fn(raw)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s for %s: %w", key, userID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_data (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, string(encoded), time.Now().UTC()); err != nil {
		return fmt.Errorf("write %s for %s: %w", key, userID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s for %s: %w", key, userID, err)
	}
	return nil
}

// appendTo appends item to the JSON list stored under key.
func (s *SQLiteStore) appendTo(ctx context.Context, userID, key string, item any) error {
	return s.update(ctx, userID, key, func(raw []byte) (any, error) {
		var list []json.RawMessage
		if raw != nil {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("decode %s for %s: %w", key, userID, err)
			}
		}
		encoded, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encode %s item for %s: %w", key, userID, err)
		}
		return append(list, encoded), nil
	})
}

// --- Transactions ---

func (s *SQLiteStore) Transactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	var out []core.Transaction
	if _, err := s.get(ctx, userID, keyTransactions, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) AppendTransaction(ctx context.Context, userID string, t core.Transaction) error {
	if err := s.appendTo(ctx, userID, keyTransactions, t); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Transaction saved",
		"user_id", userID,
		"type", t.Type,
		"amount", t.Amount,
		"category", t.Category)
	return nil
}

// --- Installment purchases ---

func (s *SQLiteStore) Purchases(ctx context.Context, userID string) ([]core.Purchase, error) {
	var out []core.Purchase
	if _, err := s.get(ctx, userID, keyPurchases, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) AppendPurchase(ctx context.Context, userID string, p core.Purchase) error {
	if err := s.appendTo(ctx, userID, keyPurchases, p); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Installment purchase saved",
		"user_id", userID,
		"total", p.TotalAmount,
		"installments", p.Installments,
		"card", p.Card)
	return nil
}

// --- Reminders ---

func (s *SQLiteStore) Reminders(ctx context.Context, userID string) ([]core.Reminder, error) {
	var out []core.Reminder
	if _, err := s.get(ctx, userID, keyReminders, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) AppendReminder(ctx context.Context, userID string, r core.Reminder) error {
	return s.appendTo(ctx, userID, keyReminders, r)
}

// DeleteReminder removes the reminder with the given timestamp, the only
// stable handle a reminder has.
func (s *SQLiteStore) DeleteReminder(ctx context.Context, userID string, timestamp time.Time) error {
	return s.update(ctx, userID, keyReminders, func(raw []byte) (any, error) {
		var list []core.Reminder
		if raw != nil {
			if err := json.Unmarshal(raw, &list); err != nil {
				return nil, fmt.Errorf("decode %s for %s: %w", keyReminders, userID, err)
			}
		}
		kept := make([]core.Reminder, 0, len(list))
		for _, r := range list {
			if !r.Timestamp.Equal(timestamp) {
				kept = append(kept, r)
			}
		}
		return kept, nil
	})
}

// UsersWithReminders lists every user id holding at least one stored
// reminder, for the notification sweep.
func (s *SQLiteStore) UsersWithReminders(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM user_data WHERE key = ?`, keyReminders)
	if err != nil {
		return nil, fmt.Errorf("list users with reminders: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// --- Categories ---

func (s *SQLiteStore) Categories(ctx context.Context, userID string) ([]core.Category, error) {
	var out []core.Category
	found, err := s.get(ctx, userID, keyCategories, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return defaultCategories(), nil
	}
	return out, nil
}

// AddCategory appends (or replaces) a category. Keywords arrive as a
// comma-separated string from the admin form and are lowercased.
func (s *SQLiteStore) AddCategory(ctx context.Context, userID, name, keywords string) error {
	cat := core.Category{Name: core.Capitalize(name)}
	for _, kw := range strings.Split(keywords, ",") {
		if kw = strings.TrimSpace(strings.ToLower(kw)); kw != "" {
			cat.Keywords = append(cat.Keywords, kw)
		}
	}

	return s.update(ctx, userID, keyCategories, func(raw []byte) (any, error) {
		list, err := categoriesFromRaw(raw)
		if err != nil {
			return nil, err
		}
		for i, c := range list {
			if c.Name == cat.Name {
				list[i] = cat
				return list, nil
			}
		}
		return append(list, cat), nil
	})
}

func (s *SQLiteStore) DeleteCategory(ctx context.Context, userID, name string) error {
	return s.update(ctx, userID, keyCategories, func(raw []byte) (any, error) {
		list, err := categoriesFromRaw(raw)
		if err != nil {
			return nil, err
		}
		kept := make([]core.Category, 0, len(list))
		for _, c := range list {
			if c.Name != name {
				kept = append(kept, c)
			}
		}
		return kept, nil
	})
}

func categoriesFromRaw(raw []byte) ([]core.Category, error) {
	if raw == nil {
		return defaultCategories(), nil
	}
	var list []core.Category
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return list, nil
}

// --- Accounts and cards ---

func (s *SQLiteStore) Accounts(ctx context.Context, userID string) (core.Accounts, error) {
	var out core.Accounts
	found, err := s.get(ctx, userID, keyAccounts, &out)
	if err != nil {
		return core.Accounts{}, err
	}
	if !found {
		return defaultAccounts(), nil
	}
	return out, nil
}

// AddAccount registers a new name as both an account and a card, stored
// capitalized (the chat flow cannot tell which one the user meant).
func (s *SQLiteStore) AddAccount(ctx context.Context, userID, name string) error {
	capitalized := core.Capitalize(name)
	return s.update(ctx, userID, keyAccounts, func(raw []byte) (any, error) {
		accounts, err := accountsFromRaw(raw)
		if err != nil {
			return nil, err
		}
		if !containsString(accounts.Accounts, capitalized) {
			accounts.Accounts = append(accounts.Accounts, capitalized)
		}
		if !containsString(accounts.Cards, capitalized) {
			accounts.Cards = append(accounts.Cards, capitalized)
		}
		return accounts, nil
	})
}

func (s *SQLiteStore) DeleteAccount(ctx context.Context, userID, name string) error {
	return s.update(ctx, userID, keyAccounts, func(raw []byte) (any, error) {
		accounts, err := accountsFromRaw(raw)
		if err != nil {
			return nil, err
		}
		accounts.Accounts = removeString(accounts.Accounts, name)
		accounts.Cards = removeString(accounts.Cards, name)
		return accounts, nil
	})
}

func accountsFromRaw(raw []byte) (core.Accounts, error) {
	if raw == nil {
		return defaultAccounts(), nil
	}
	var accounts core.Accounts
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return core.Accounts{}, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}

// --- Card closing rules ---

func (s *SQLiteStore) CardRules(ctx context.Context, userID string) (map[string]int, error) {
	var out map[string]int
	found, err := s.get(ctx, userID, keyCardRules, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return defaultCardRules(), nil
	}
	return out, nil
}

// SaveCardRules merges the given closing days into the stored rule set.
func (s *SQLiteStore) SaveCardRules(ctx context.Context, userID string, rules map[string]int) error {
	return s.update(ctx, userID, keyCardRules, func(raw []byte) (any, error) {
		current := defaultCardRules()
		if raw != nil {
			if err := json.Unmarshal(raw, &current); err != nil {
				return nil, fmt.Errorf("decode card rules: %w", err)
			}
		}
		for card, day := range rules {
			current[card] = day
		}
		return current, nil
	})
}

// --- Goals ---

func (s *SQLiteStore) Goals(ctx context.Context, userID string) (map[string]float64, error) {
	out := map[string]float64{}
	if _, err := s.get(ctx, userID, keyGoals, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) SaveGoal(ctx context.Context, userID, cat string, amount float64) error {
	return s.update(ctx, userID, keyGoals, func(raw []byte) (any, error) {
		goals := map[string]float64{}
		if raw != nil {
			if err := json.Unmarshal(raw, &goals); err != nil {
				return nil, fmt.Errorf("decode goals: %w", err)
			}
		}
		goals[cat] = amount
		return goals, nil
	})
}

func (s *SQLiteStore) DeleteGoal(ctx context.Context, userID, cat string) error {
	return s.update(ctx, userID, keyGoals, func(raw []byte) (any, error) {
		goals := map[string]float64{}
		if raw != nil {
			if err := json.Unmarshal(raw, &goals); err != nil {
				return nil, fmt.Errorf("decode goals: %w", err)
			}
		}
		delete(goals, cat)
		return goals, nil
	})
}

// --- Conversation state ---

func (s *SQLiteStore) PendingAction(ctx context.Context, userID string) (core.PendingAction, error) {
	var out core.PendingAction
	if _, err := s.get(ctx, userID, keyPending, &out); err != nil {
		return core.PendingAction{}, err
	}
	return out, nil
}

func (s *SQLiteStore) SetPendingAction(ctx context.Context, userID string, p core.PendingAction) error {
	return s.set(ctx, userID, keyPending, p)
}

func (s *SQLiteStore) ClearPendingAction(ctx context.Context, userID string) error {
	return s.set(ctx, userID, keyPending, core.PendingAction{})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
