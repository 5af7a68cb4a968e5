// Package analytics turns a list of expenses into the derived spending views.
//
// Everything here is a pure transform: callers fetch the expenses for the
// window they need and the functions group, sum and rank them. Calendar keys
// and windows are computed in UTC.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
)

// TopDaysLimit is the number of days reported by the top spending days view.
const TopDaysLimit = 3

// ForecastMonths is the number of complete months averaged by the forecast.
const ForecastMonths = 3

var hundred = decimal.NewFromInt(100)

// KeyFunc derives a grouping key from an expense.
type KeyFunc func(core.Expense) string

// DayKey groups by UTC calendar day.
func DayKey(e core.Expense) string {
	return e.Date.UTC().Format(time.DateOnly)
}

// MonthKey groups by UTC calendar month.
func MonthKey(e core.Expense) string {
	return e.Date.UTC().Format("2006-01")
}

// Group partitions expenses by key, keeping input order inside each group.
func Group(expenses []core.Expense, key KeyFunc) map[string][]core.Expense {
	out := make(map[string][]core.Expense)
	for _, e := range expenses {
		k := key(e)
		out[k] = append(out[k], e)
	}
	return out
}

// Sum adds up the amounts of expenses. An empty list sums to zero.
func Sum(expenses []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// SumBy groups expenses by key and sums every group.
func SumBy(expenses []core.Expense, key KeyFunc) map[string]decimal.Decimal {
	groups := Group(expenses, key)
	out := make(map[string]decimal.Decimal, len(groups))
	for k, g := range groups {
		out[k] = Sum(g)
	}
	return out
}

// TopDays returns the n days with the highest totals, highest first. Equal
// totals are ordered by day ascending.
func TopDays(expenses []core.Expense, n int) []core.DayTotal {
	sums := SumBy(expenses, DayKey)
	days := make([]core.DayTotal, 0, len(sums))
	for day, total := range sums {
		days = append(days, core.DayTotal{Day: day, Total: total})
	}
	sort.Slice(days, func(i, j int) bool {
		if c := days[i].Total.Cmp(days[j].Total); c != 0 {
			return c > 0
		}
		return days[i].Day < days[j].Day
	})
	if n >= 0 && len(days) > n {
		days = days[:n]
	}
	return days
}

// Window is a half-open time range [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthStart returns the first instant of t's UTC calendar month.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthWindow returns the full UTC calendar month that lies monthsBack months
// before now's month. monthsBack 0 is the current month.
func MonthWindow(now time.Time, monthsBack int) Window {
	start := MonthStart(now).AddDate(0, -monthsBack, 0)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// CompleteMonths returns the n most recent fully elapsed months before now,
// most recent first.
func CompleteMonths(now time.Time, n int) []Window {
	out := make([]Window, n)
	for i := range out {
		out[i] = MonthWindow(now, i+1)
	}
	return out
}

// PercentChange is (current-previous)/previous*100 rounded to two places.
// A zero baseline saturates: 0 when current is also zero, 100 otherwise.
func PercentChange(previous, current decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsZero() {
			return decimal.Zero
		}
		return hundred
	}
	return core.RoundCents(current.Sub(previous).Div(previous).Mul(hundred))
}

// Average is the mean of totals rounded to two places. Every entry counts,
// including zero months.
func Average(totals []decimal.Decimal) decimal.Decimal {
	if len(totals) == 0 {
		return decimal.Zero
	}
	return core.RoundCents(decimal.Sum(decimal.Zero, totals...).Div(decimal.NewFromInt(int64(len(totals)))))
}

// MonthOverMonth builds the comparison view from the two window totals.
func MonthOverMonth(previous, current decimal.Decimal) core.MonthChange {
	return core.MonthChange{
		Previous:      previous,
		Current:       current,
		PercentChange: PercentChange(previous, current),
	}
}
