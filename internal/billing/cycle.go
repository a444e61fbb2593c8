// Package billing computes which invoice month each installment of a
// purchase lands in, based on per-card closing-day rules, and expands
// purchases into virtual transactions for the dashboard.
package billing

import (
	"fmt"
	"time"

	"grana/internal/core"
)

// DefaultClosingDay applies to cards with no configured rule.
const DefaultClosingDay = 30

// ForecastMonths is the length of the invoice forecast window.
const ForecastMonths = 12

// CycleOffset returns 0 when a purchase on startDay still enters the
// invoice of its own calendar month (startDay ≤ closingDay) and 1 when it
// rolls into the next one. The offset is constant for every installment of
// a purchase.
func CycleOffset(startDay, closingDay int) int {
	if startDay <= closingDay {
		return 0
	}
	return 1
}

// ClosingDay resolves a card's closing day from the rule set.
func ClosingDay(rules map[string]int, card string) int {
	if day, ok := rules[card]; ok {
		return day
	}
	return DefaultClosingDay
}

// AddMonths shifts t by n calendar months, clamping the day to the length
// of the target month (Jan 31 + 1 month = Feb 28/29). time.AddDate would
// normalize into the following month instead, shifting installments into
// the wrong invoice.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := lastDayOfMonth(first); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// CurrentInstallments synthesizes at most one virtual expense transaction
// per purchase: the installment whose billing month is now's calendar
// month. The transaction timestamp is the unshifted installment date
// (start + i months), so virtual entries sort chronologically among real
// ones; the description gains an "(i+1/total)" suffix.
func CurrentInstallments(purchases []core.Purchase, rules map[string]int, now time.Time) []core.Transaction {
	var out []core.Transaction
	for _, p := range purchases {
		offset := CycleOffset(p.StartDate.Day(), ClosingDay(rules, p.Card))
		for i := 0; i < p.Installments; i++ {
			billed := AddMonths(p.StartDate, i+offset)
			if billed.Year() != now.Year() || billed.Month() != now.Month() {
				continue
			}
			out = append(out, core.Transaction{
				Type:        core.Expense,
				Description: installmentLabel(p.Description, i+1, p.Installments),
				Amount:      p.PerInstallment(),
				Category:    p.Category,
				Method:      core.Credit,
				Card:        p.Card,
				Timestamp:   AddMonths(p.StartDate, i),
			})
			// Billing months are monotonic in i; no later installment
			// of this purchase can land in the same month.
			break
		}
	}
	return out
}

// Forecast buckets every installment of every purchase into the next
// ForecastMonths invoice months, keyed by card and "Jan/06" month label.
// Buckets exist only for known cards; a purchase on an unrecognized card
// contributes nowhere. The label slice preserves chronological order since
// the map keys do not.
func Forecast(purchases []core.Purchase, knownCards []string, rules map[string]int, now time.Time) (map[string]map[string]float64, []string) {
	labels := make([]string, ForecastMonths)
	window := make(map[string]bool, ForecastMonths)
	for i := range labels {
		labels[i] = MonthLabel(AddMonths(now, i))
		window[labels[i]] = true
	}

	forecast := make(map[string]map[string]float64, len(knownCards))
	for _, card := range knownCards {
		buckets := make(map[string]float64, ForecastMonths)
		for _, label := range labels {
			buckets[label] = 0
		}
		forecast[card] = buckets
	}

	for _, p := range purchases {
		buckets, ok := forecast[p.Card]
		if !ok {
			continue
		}
		offset := CycleOffset(p.StartDate.Day(), ClosingDay(rules, p.Card))
		for i := 0; i < p.Installments; i++ {
			label := MonthLabel(AddMonths(p.StartDate, i+offset))
			if window[label] {
				buckets[label] += p.PerInstallment()
			}
		}
	}
	return forecast, labels
}

// MonthLabel is the short month/year form used by the forecast, e.g. "Jan/24".
func MonthLabel(t time.Time) string {
	return t.Format("Jan/06")
}

func installmentLabel(desc string, n, total int) string {
	return fmt.Sprintf("%s (%d/%d)", desc, n, total)
}
