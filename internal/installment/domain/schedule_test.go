package domain

import (
	"testing"
	"time"

	"github.com/smallbiznis/ledgerlink/internal/canonical"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerate_EvenSplit(t *testing.T) {
	out, err := Generate(GenerateInput{
		TotalAmountCents: 10000,
		EntryAmountCents: 1000,
		Installments:     3,
		Rule:             canonical.ScheduleRule{Type: RuleFixedDayOfMonth, DueDay: 10},
		Now:              date(2026, time.January, 5),
	})
	assert.NoError(t, err)
	assert.Len(t, out, 3)
	for i, item := range out {
		assert.Equal(t, i+1, item.Number)
		assert.Equal(t, int64(3000), item.AmountCents)
		assert.Equal(t, StatusPending, item.Status)
	}
}

func TestGenerate_RemainderGoesToLast(t *testing.T) {
	out, err := Generate(GenerateInput{
		TotalAmountCents: 10001,
		EntryAmountCents: 0,
		Installments:     3,
		Rule:             canonical.ScheduleRule{Type: RuleFixedDayOfMonth, DueDay: 10},
		Now:              date(2026, time.January, 5),
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(3333), out[0].AmountCents)
	assert.Equal(t, int64(3333), out[1].AmountCents)
	assert.Equal(t, int64(3335), out[2].AmountCents)

	var sum int64
	for _, item := range out {
		sum += item.AmountCents
	}
	assert.Equal(t, int64(10001), sum)
}

func TestGenerate_FixedDayClampsShortMonths(t *testing.T) {
	out, err := Generate(GenerateInput{
		TotalAmountCents: 40000,
		EntryAmountCents: 0,
		Installments:     4,
		Rule:             canonical.ScheduleRule{Type: RuleFixedDayOfMonth, DueDay: 31},
		Now:              date(2026, time.January, 15),
	})
	assert.NoError(t, err)
	assert.Equal(t, date(2026, time.February, 28), out[0].DueDate)
	assert.Equal(t, date(2026, time.March, 31), out[1].DueDate)
	assert.Equal(t, date(2026, time.April, 30), out[2].DueDate)
	assert.Equal(t, date(2026, time.May, 31), out[3].DueDate)
}

func TestGenerate_CustomFirstDue(t *testing.T) {
	first := date(2026, time.March, 15)
	out, err := Generate(GenerateInput{
		TotalAmountCents: 30000,
		EntryAmountCents: 0,
		Installments:     3,
		Rule: canonical.ScheduleRule{
			Type:           RuleCustomFirstDue,
			FirstDueDate:   &first,
			IntervalMonths: 2,
		},
		Now: date(2026, time.January, 1),
	})
	assert.NoError(t, err)
	assert.Equal(t, date(2026, time.March, 15), out[0].DueDate)
	assert.Equal(t, date(2026, time.May, 15), out[1].DueDate)
	assert.Equal(t, date(2026, time.July, 15), out[2].DueDate)
}

func TestGenerate_DaysAfterEntry(t *testing.T) {
	entryPaid := date(2026, time.January, 10)
	out, err := Generate(GenerateInput{
		TotalAmountCents: 20000,
		EntryAmountCents: 5000,
		Installments:     2,
		Rule: canonical.ScheduleRule{
			Type:           RuleDaysAfterEntry,
			DaysAfterEntry: 14,
		},
		EntryPaidAt: &entryPaid,
		Now:         date(2026, time.February, 1),
	})
	assert.NoError(t, err)
	assert.Equal(t, date(2026, time.January, 24), out[0].DueDate)
	assert.Equal(t, date(2026, time.February, 24), out[1].DueDate)
}

func TestGenerate_AnchorPrecedence(t *testing.T) {
	anchor := date(2026, time.June, 1)
	cycleStart := date(2026, time.April, 1)
	entryPaid := date(2026, time.February, 1)

	cases := []struct {
		name  string
		input GenerateInput
		want  time.Time
	}{
		{
			"explicit anchor wins",
			GenerateInput{AnchorDate: &anchor, CycleStart: &cycleStart, EntryPaidAt: &entryPaid},
			date(2026, time.July, 1),
		},
		{
			"cycle start beats entry paid",
			GenerateInput{CycleStart: &cycleStart, EntryPaidAt: &entryPaid},
			date(2026, time.May, 1),
		},
		{
			"entry paid beats now",
			GenerateInput{EntryPaidAt: &entryPaid},
			date(2026, time.March, 1),
		},
		{
			"now is the fallback",
			GenerateInput{},
			date(2026, time.February, 1),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.input.TotalAmountCents = 1000
			tc.input.Installments = 1
			tc.input.Rule = canonical.ScheduleRule{Type: RuleFixedDayOfMonth, DueDay: 1}
			tc.input.Now = date(2026, time.January, 1)
			out, err := Generate(tc.input)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, out[0].DueDate)
		})
	}
}

func TestGenerate_Validation(t *testing.T) {
	_, err := Generate(GenerateInput{TotalAmountCents: 1000, Installments: 0})
	assert.ErrorIs(t, err, ErrInvalidPlanCount)

	_, err = Generate(GenerateInput{TotalAmountCents: 1000, EntryAmountCents: 2000, Installments: 2})
	assert.ErrorIs(t, err, ErrInvalidAmounts)
}

func TestGenerate_SumAlwaysEqualsPrincipal(t *testing.T) {
	totals := []int64{1, 99, 10000, 10001, 999999, 123457}
	entries := []int64{0, 1, 500}
	counts := []int{1, 2, 3, 7, 12}

	for _, total := range totals {
		for _, entry := range entries {
			if entry > total {
				continue
			}
			for _, n := range counts {
				out, err := Generate(GenerateInput{
					TotalAmountCents: total,
					EntryAmountCents: entry,
					Installments:     n,
					Rule:             canonical.ScheduleRule{Type: RuleFixedDayOfMonth, DueDay: 15},
					Now:              date(2026, time.January, 1),
				})
				assert.NoError(t, err)

				var sum int64
				for _, item := range out {
					sum += item.AmountCents
				}
				assert.Equal(t, total-entry, sum)
			}
		}
	}
}
