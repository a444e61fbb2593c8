// Package reminder implements the upcoming-payment sweep: two calendar days
// before each reminder's next due date, the owner gets a notification.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"grana/internal/core"
)

// Store is the slice of the storage layer the sweep reads from.
type Store interface {
	UsersWithReminders(ctx context.Context) ([]string, error)
	Reminders(ctx context.Context, userID string) ([]core.Reminder, error)
}

// Notifier delivers one notification message to one user.
type Notifier interface {
	Notify(ctx context.Context, userID, message string) error
}

type Sweeper struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger
}

func NewSweeper(store Store, notifier Notifier, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, notifier: notifier, logger: logger}
}

// Run checks every reminder of every user and notifies the ones whose
// notify date is today. A failed send is logged and does not stop the
// sweep; the sweep runs at most once per tick, so a reminder notified
// today will be notified again on a second run the same day.
func (s *Sweeper) Run(ctx context.Context, now time.Time) error {
	users, err := s.store.UsersWithReminders(ctx)
	if err != nil {
		return fmt.Errorf("list users with reminders: %w", err)
	}

	for _, userID := range users {
		reminders, err := s.store.Reminders(ctx, userID)
		if err != nil {
			s.logger.ErrorContext(ctx, "load reminders failed", "user_id", userID, "error", err)
			continue
		}
		for _, r := range reminders {
			if !dueForNotice(now, r.DueDay) {
				continue
			}
			msg := fmt.Sprintf(
				"🔔 Lembrete de Pagamento!\n\nConta: %s\nValor: %s\nVence no dia: %d",
				r.Description, core.FormatBRL(r.Amount), r.DueDay,
			)
			if err := s.notifier.Notify(ctx, userID, msg); err != nil {
				s.logger.ErrorContext(ctx, "reminder notification failed",
					"user_id", userID, "reminder", r.Description, "error", err)
				continue
			}
			s.logger.InfoContext(ctx, "reminder notification sent",
				"user_id", userID, "reminder", r.Description, "due_day", r.DueDay)
		}
	}
	return nil
}

// dueForNotice reports whether now is exactly two calendar days before the
// reminder's next due date. The due day is clamped to the length of the
// month it lands in, so day-31 reminders work in short months and the
// two-day subtraction crosses month and year boundaries correctly.
func dueForNotice(now time.Time, dueDay int) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	due := dueDateIn(today.Year(), today.Month(), dueDay, now.Location())
	if due.Before(today) {
		due = dueDateIn(today.Year(), today.Month()+1, dueDay, now.Location())
	}
	return due.AddDate(0, 0, -2).Equal(today)
}

// dueDateIn builds the due date in the given month, clamping the day to the
// month's length. Month may be time.December+1; time.Date normalizes it.
func dueDateIn(year int, month time.Month, day int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
