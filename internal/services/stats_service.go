package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"ledger/internal/access"
	"ledger/internal/analytics"
	"ledger/internal/core"
	"ledger/internal/store"
)

// StatsService computes spending analytics for a subject user.
type StatsService struct {
	expenses store.ExpenseStore
	now      func() time.Time
}

func NewStatsService(expenses store.ExpenseStore) *StatsService {
	return &StatsService{expenses: expenses, now: time.Now}
}

// WithClock replaces the time source used to place the monthly windows.
func (s *StatsService) WithClock(now func() time.Time) *StatsService {
	s.now = now
	return s
}

// TopDays returns the subject's highest spending days.
func (s *StatsService) TopDays(ctx context.Context, p core.Principal, target string) ([]core.DayTotal, error) {
	subject, err := access.Subject(p, target)
	if err != nil {
		return nil, err
	}
	expenses, err := s.expenses.ListExpenses(ctx, store.ExpenseFilter{OwnerID: subject})
	if err != nil {
		return nil, core.Internal("list expenses", err)
	}
	return analytics.TopDays(expenses, analytics.TopDaysLimit), nil
}

// MonthOverMonth compares the current month to date with the full previous
// month.
func (s *StatsService) MonthOverMonth(ctx context.Context, p core.Principal, target string) (core.MonthChange, error) {
	subject, err := access.Subject(p, target)
	if err != nil {
		return core.MonthChange{}, err
	}

	now := s.now().UTC()
	prev := analytics.MonthWindow(now, 1)
	totals, err := s.sumWindows(ctx, []store.ExpenseFilter{
		{OwnerID: subject, From: analytics.MonthStart(now), Until: now},
		{OwnerID: subject, From: prev.Start, Before: prev.End},
	})
	if err != nil {
		return core.MonthChange{}, err
	}
	return analytics.MonthOverMonth(totals[1], totals[0]), nil
}

// PredictNextMonth averages the totals of the last complete months.
func (s *StatsService) PredictNextMonth(ctx context.Context, p core.Principal, target string) (core.Forecast, error) {
	subject, err := access.Subject(p, target)
	if err != nil {
		return core.Forecast{}, err
	}

	windows := analytics.CompleteMonths(s.now().UTC(), analytics.ForecastMonths)
	filters := make([]store.ExpenseFilter, len(windows))
	for i, w := range windows {
		filters[i] = store.ExpenseFilter{OwnerID: subject, From: w.Start, Before: w.End}
	}
	totals, err := s.sumWindows(ctx, filters)
	if err != nil {
		return core.Forecast{}, err
	}
	return core.Forecast{PredictedNextMonth: analytics.Average(totals)}, nil
}

// sumWindows fetches and sums each filter concurrently. The first failure
// cancels the remaining queries.
func (s *StatsService) sumWindows(ctx context.Context, filters []store.ExpenseFilter) ([]decimal.Decimal, error) {
	totals := make([]decimal.Decimal, len(filters))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range filters {
		g.Go(func() error {
			expenses, err := s.expenses.ListExpenses(ctx, f)
			if err != nil {
				return err
			}
			totals[i] = analytics.Sum(expenses)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, core.Internal("sum expenses", err)
	}
	return totals, nil
}
