package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"grana/internal/category"
	"grana/internal/core"
)

// ErrInvalidFormat covers every malformed-template case (missing key,
// non-numeric amount or count). The user gets one generic failure; the
// precise cause only matters for logs.
var ErrInvalidFormat = errors.New("invalid template format")

// UnknownCardError reports a card outside the user's known set, keeping the
// valid options for the reply.
type UnknownCardError struct {
	Card  string
	Known []string
}

func (e *UnknownCardError) Error() string {
	return fmt.Sprintf("unknown card %q (known: %s)", e.Card, strings.Join(e.Known, ", "))
}

// Installment parses the "parcelado:" template:
//
//	parcelado: <descrição>
//	valor: <valor total>
//	parcelas: <nº de parcelas>
//	cartão: <cartão>
//
// The card is capitalized and must belong to knownCards. The category is
// resolved from the description as an expense. StartDate is now.
func Installment(text string, knownCards []string, categories []core.Category, now time.Time) (core.Purchase, error) {
	lines := strings.Split(text, "\n")
	desc := valueAfterColon(lines[0])
	if strings.TrimSpace(desc) == "" {
		return core.Purchase{}, ErrInvalidFormat
	}

	fields := templateFields(lines[1:])

	total, err := core.ParseAmount(fields["valor"])
	if err != nil {
		return core.Purchase{}, ErrInvalidFormat
	}
	count, err := strconv.Atoi(strings.TrimSpace(fields["parcelas"]))
	if err != nil {
		return core.Purchase{}, ErrInvalidFormat
	}
	card := core.Capitalize(fields["cartão"])
	if card == "" {
		return core.Purchase{}, ErrInvalidFormat
	}

	if !containsName(knownCards, card) {
		return core.Purchase{}, &UnknownCardError{Card: card, Known: knownCards}
	}

	p := core.Purchase{
		Description:  desc,
		TotalAmount:  total,
		Installments: count,
		Card:         card,
		Category:     category.Classify(desc, core.Expense, categories),
		StartDate:    now,
	}
	if err := p.Validate(); err != nil {
		return core.Purchase{}, ErrInvalidFormat
	}
	return p, nil
}

// Reminder parses the "lembrete:" template:
//
//	lembrete: <descrição>
//	valor: <valor>
//	vence dia: <dia>
//
// An out-of-range due day surfaces core.ErrInvalidDueDay so the reply can
// say so; everything else collapses into ErrInvalidFormat.
func Reminder(text string, now time.Time) (core.Reminder, error) {
	lines := strings.Split(text, "\n")
	fields := templateFields(lines)

	desc := strings.TrimSpace(fields["lembrete"])
	if desc == "" {
		return core.Reminder{}, ErrInvalidFormat
	}
	amount, err := core.ParseAmount(fields["valor"])
	if err != nil {
		return core.Reminder{}, ErrInvalidFormat
	}
	day, err := strconv.Atoi(strings.TrimSpace(fields["vence dia"]))
	if err != nil {
		return core.Reminder{}, ErrInvalidFormat
	}
	if day < 1 || day > 31 {
		return core.Reminder{}, core.ErrInvalidDueDay
	}

	return core.Reminder{
		Description: desc,
		Amount:      amount,
		DueDay:      day,
		Timestamp:   now,
	}, nil
}

// Goal parses the "meta <categoria> <valor>" command. The category name is
// capitalized; membership in the user's category set is checked by the
// caller, which owns the list of valid options.
func Goal(text string) (string, float64, error) {
	parts := strings.Fields(text)
	if len(parts) < 3 {
		return "", 0, ErrInvalidFormat
	}
	name := core.Capitalize(parts[1])
	amount, err := core.ParseAmount(parts[2])
	if err != nil {
		return "", 0, ErrInvalidFormat
	}
	return name, amount, nil
}

// templateFields collects "chave: valor" lines into a map with lowercased,
// trimmed keys. Lines without a colon are ignored.
func templateFields(lines []string) map[string]string {
	fields := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	return fields
}

func valueAfterColon(line string) string {
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
