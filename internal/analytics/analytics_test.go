package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger/internal/core"
)

func exp(amount string, date time.Time) core.Expense {
	return core.Expense{Amount: decimal.RequireFromString(amount), Date: date}
}

func day(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestGroupAndSum(t *testing.T) {
	list := []core.Expense{
		exp("10", day(2025, 1, 1, 9)),
		exp("5.5", day(2025, 1, 1, 20)),
		exp("-2", day(2025, 1, 2, 9)),
		exp("7", day(2025, 2, 2, 9)),
	}

	groups := Group(list, DayKey)
	assert.Len(t, groups["2025-01-01"], 2)
	assert.Len(t, groups["2025-01-02"], 1)

	byDay := SumBy(list, DayKey)
	assert.Equal(t, "15.5", byDay["2025-01-01"].String())
	assert.Equal(t, "-2", byDay["2025-01-02"].String())

	byMonth := SumBy(list, MonthKey)
	assert.Equal(t, "13.5", byMonth["2025-01"].String())
	assert.Equal(t, "7", byMonth["2025-02"].String())

	assert.True(t, Sum(nil).IsZero())
}

func TestDayKeyUsesUTC(t *testing.T) {
	rome := time.FixedZone("CET", 3600)
	e := core.Expense{Date: time.Date(2025, 1, 2, 0, 30, 0, 0, rome)}
	assert.Equal(t, "2025-01-01", DayKey(e))
}

func TestTopDays(t *testing.T) {
	list := []core.Expense{
		exp("30", day(2025, 1, 1, 10)),
		exp("20", day(2025, 1, 2, 10)),
		exp("30", day(2025, 1, 2, 11)),
		exp("10", day(2025, 1, 3, 10)),
	}
	got := TopDays(list, TopDaysLimit)
	require.Len(t, got, 3)
	assert.Equal(t, "2025-01-02", got[0].Day)
	assert.Equal(t, "50", got[0].Total.String())
	assert.Equal(t, "2025-01-01", got[1].Day)
	assert.Equal(t, "30", got[1].Total.String())
	assert.Equal(t, "2025-01-03", got[2].Day)
	assert.Equal(t, "10", got[2].Total.String())
}

func TestTopDays_TieBreakAndTruncation(t *testing.T) {
	list := []core.Expense{
		exp("5", day(2025, 1, 4, 10)),
		exp("5", day(2025, 1, 2, 10)),
		exp("5", day(2025, 1, 3, 10)),
		exp("5", day(2025, 1, 1, 10)),
	}
	got := TopDays(list, 3)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"2025-01-01", "2025-01-02", "2025-01-03"}, []string{got[0].Day, got[1].Day, got[2].Day})

	assert.Len(t, TopDays(list[:1], 3), 1)
	assert.Empty(t, TopDays(nil, 3))
}

func TestMonthWindow(t *testing.T) {
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	cur := MonthWindow(now, 0)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), cur.Start)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), cur.End)

	prev := MonthWindow(now, 1)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), prev.Start)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), prev.End)

	jan := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	dec := MonthWindow(jan, 1)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), dec.Start)

	months := CompleteMonths(jan, 3)
	require.Len(t, months, 3)
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), months[0].Start)
	assert.Equal(t, time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), months[1].Start)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), months[2].Start)
	assert.Equal(t, months[1].End, months[0].Start)
}

func TestPercentChange(t *testing.T) {
	d := decimal.RequireFromString
	cases := []struct {
		prev, cur string
		want      string
	}{
		{"100", "150", "50"},
		{"0", "0", "0"},
		{"0", "50", "100"},
		{"0", "-5", "100"},
		{"100", "50", "-50"},
		{"3", "4", "33.33"},
		{"3", "5", "66.67"},
	}
	for _, tc := range cases {
		got := PercentChange(d(tc.prev), d(tc.cur))
		assert.True(t, got.Equal(d(tc.want)), "prev=%s cur=%s got=%s", tc.prev, tc.cur, got)
	}

	mom := MonthOverMonth(d("100"), d("150"))
	assert.Equal(t, "50.00", mom.PercentChange.StringFixed(2))
	assert.Equal(t, "100", mom.Previous.String())
	assert.Equal(t, "150", mom.Current.String())
}

func TestAverage(t *testing.T) {
	d := decimal.RequireFromString
	assert.Equal(t, "33.33", Average([]decimal.Decimal{d("0"), d("0"), d("100")}).String())
	assert.True(t, Average([]decimal.Decimal{d("0"), d("0"), d("0")}).IsZero())
	assert.Equal(t, "20", Average([]decimal.Decimal{d("10"), d("20"), d("30")}).String())
	assert.True(t, Average(nil).IsZero())
}
