package domain

import (
	"strings"
	"time"

	"github.com/smallbiznis/ledgerlink/internal/canonical"
)

const (
	RuleCustomFirstDue  = "custom_first_due"
	RuleDaysAfterEntry  = "days_after_entry"
	RuleFixedDayOfMonth = "fixed_day_of_month"
)

// Generate turns sale terms into a dated sequence of installments. It is a
// pure function of its input: same terms, same schedule.
//
// The principal (total minus entry) is split into floor(principal/N) per
// installment, with the integer remainder folded into the last one so the
// amounts always sum to the principal exactly.
func Generate(in GenerateInput) ([]Scheduled, error) {
	if in.Installments < 1 {
		return nil, ErrInvalidPlanCount
	}
	if in.TotalAmountCents < 0 || in.EntryAmountCents < 0 || in.EntryAmountCents > in.TotalAmountCents {
		return nil, ErrInvalidAmounts
	}

	principal := in.TotalAmountCents - in.EntryAmountCents
	n := int64(in.Installments)
	base := principal / n
	remainder := principal - base*n

	anchor := resolveAnchor(in)
	interval := in.Rule.IntervalMonths
	if interval < 1 {
		interval = 1
	}

	out := make([]Scheduled, 0, in.Installments)
	for i := 1; i <= in.Installments; i++ {
		amount := base
		if i == in.Installments {
			amount += remainder
		}
		out = append(out, Scheduled{
			Number:      i,
			AmountCents: amount,
			DueDate:     dueDate(in.Rule, anchor, i, interval),
			Status:      StatusPending,
		})
	}
	return out, nil
}

// resolveAnchor picks the date the schedule hangs off. Precedence: explicit
// override, then cycle start, then entry payment date, then now.
func resolveAnchor(in GenerateInput) time.Time {
	switch {
	case in.AnchorDate != nil && !in.AnchorDate.IsZero():
		return in.AnchorDate.UTC()
	case in.CycleStart != nil && !in.CycleStart.IsZero():
		return in.CycleStart.UTC()
	case in.EntryPaidAt != nil && !in.EntryPaidAt.IsZero():
		return in.EntryPaidAt.UTC()
	default:
		return in.Now.UTC()
	}
}

func dueDate(rule canonical.ScheduleRule, anchor time.Time, number, interval int) time.Time {
	switch strings.ToLower(strings.TrimSpace(rule.Type)) {
	case RuleCustomFirstDue:
		first := anchor
		if rule.FirstDueDate != nil && !rule.FirstDueDate.IsZero() {
			first = rule.FirstDueDate.UTC()
		}
		return addMonthsClamped(first, (number-1)*interval)

	case RuleDaysAfterEntry:
		first := anchor.AddDate(0, 0, rule.DaysAfterEntry)
		return addMonthsClamped(first, (number-1)*interval)

	default: // fixed day of month
		day := rule.DueDay
		if day < 1 {
			day = anchor.Day()
		}
		firstOfTarget := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, number, 0)
		return clampToDay(firstOfTarget, day)
	}
}

// addMonthsClamped advances by whole months, clamping the day to the target
// month's length instead of letting time.AddDate spill into the next month.
func addMonthsClamped(t time.Time, months int) time.Time {
	if months == 0 {
		return truncateToDate(t)
	}
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	return clampToDay(firstOfTarget, t.Day())
}

// clampToDay sets the day within t's month to min(day, last day of month).
func clampToDay(t time.Time, day int) time.Time {
	last := lastDayOfMonth(t.Year(), t.Month())
	if day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, -1).Day()
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
